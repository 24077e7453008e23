// Package agent implements the run state machine: the event emitter and
// the built-in agent behaviors (echo, tool, state, hitl).
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/agui/internal/domain"
)

// Sink receives each emitted event in order. A sink error (typically a
// dropped connection) stops emission; mutations already applied to thread
// state are not rolled back.
type Sink func(event domain.Event) error

// Emitter emits a run's events onto a sink in strict order, pausing for
// the configured delay between consecutive events of a span to produce the
// streaming effect. A zero delay disables pacing (tests).
type Emitter struct {
	sink  Sink
	delay time.Duration
}

// NewEmitter creates an emitter over sink.
func NewEmitter(sink Sink, delay time.Duration) *Emitter {
	return &Emitter{sink: sink, delay: delay}
}

// Emit sends one event.
func (em *Emitter) Emit(event domain.Event) error {
	return em.sink(event)
}

func (em *Emitter) pace(ctx context.Context) error {
	if em.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(em.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StreamText emits one complete text span for an assistant message,
// streaming the content rune by rune. Empty content yields START
// immediately followed by END.
func (em *Emitter) StreamText(ctx context.Context, content string) error {
	messageID := "msg_" + uuid.New().String()[:8]

	if err := em.Emit(domain.NewTextMessageStartEvent(messageID, "assistant")); err != nil {
		return err
	}
	for _, r := range content {
		if err := em.pace(ctx); err != nil {
			return err
		}
		if err := em.Emit(domain.NewTextMessageContentEvent(messageID, string(r))); err != nil {
			return err
		}
	}
	return em.Emit(domain.NewTextMessageEndEvent(messageID))
}

// EmitToolCall emits one complete tool call record: START, one ARGS event
// carrying the full argument document, END. Returns the tool call id.
func (em *Emitter) EmitToolCall(ctx context.Context, toolName string, args any) (string, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s args: %w", toolName, err)
	}
	toolCallID := "call_" + uuid.New().String()[:8]

	if err := em.Emit(domain.NewToolCallStartEvent(toolCallID, toolName)); err != nil {
		return "", err
	}
	if err := em.pace(ctx); err != nil {
		return "", err
	}
	if err := em.Emit(domain.NewToolCallArgsEvent(toolCallID, string(argsJSON))); err != nil {
		return "", err
	}
	if err := em.pace(ctx); err != nil {
		return "", err
	}
	if err := em.Emit(domain.NewToolCallEndEvent(toolCallID)); err != nil {
		return "", err
	}
	return toolCallID, nil
}

// EmitSnapshot sends a STATE_SNAPSHOT replacing the consumer's state tree.
func (em *Emitter) EmitSnapshot(snapshot any) error {
	return em.Emit(domain.NewStateSnapshotEvent(snapshot))
}

// EmitDelta sends a STATE_DELTA carrying JSON Patch operations.
func (em *Emitter) EmitDelta(ops ...domain.PatchOp) error {
	return em.Emit(domain.NewStateDeltaEvent(ops))
}

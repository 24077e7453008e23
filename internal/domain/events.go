package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEventType reports a wire frame whose type is outside the closed
// event vocabulary. Callers treat it as unrecognized, not fatal.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is the tagged union over the protocol's event vocabulary. Exactly
// one concrete struct exists per EventType.
type Event interface {
	EventType() EventType
}

// RunStartedEvent opens a run's event sequence.
type RunStartedEvent struct {
	Type     EventType `json:"type"`
	ThreadID string    `json:"threadId"`
	RunID    string    `json:"runId"`
}

// RunFinishedEvent closes a run's event sequence. Nothing may follow it.
type RunFinishedEvent struct {
	Type     EventType `json:"type"`
	ThreadID string    `json:"threadId"`
	RunID    string    `json:"runId"`
}

// TextMessageStartEvent opens a text span.
type TextMessageStartEvent struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
	Role      string    `json:"role"`
}

// TextMessageContentEvent carries one content fragment of a text span.
// Fragments concatenate in emission order.
type TextMessageContentEvent struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
	Delta     string    `json:"delta"`
}

// TextMessageEndEvent closes a text span.
type TextMessageEndEvent struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
}

// ToolCallStartEvent opens a tool call record.
type ToolCallStartEvent struct {
	Type         EventType `json:"type"`
	ToolCallID   string    `json:"toolCallId"`
	ToolCallName string    `json:"toolCallName"`
}

// ToolCallArgsEvent carries a JSON-encoded argument fragment. The shape
// permits incremental fragments; the built-in agents always send one
// complete document.
type ToolCallArgsEvent struct {
	Type       EventType `json:"type"`
	ToolCallID string    `json:"toolCallId"`
	Delta      string    `json:"delta"`
}

// ToolCallEndEvent closes a tool call record.
type ToolCallEndEvent struct {
	Type       EventType `json:"type"`
	ToolCallID string    `json:"toolCallId"`
}

// StateSnapshotEvent replaces the consumer's entire state tree.
type StateSnapshotEvent struct {
	Type     EventType `json:"type"`
	Snapshot any       `json:"snapshot"`
}

// StateDeltaEvent mutates the consumer's state tree. Delta is canonically a
// JSON Patch array; a legacy flat key/value object form is still accepted on
// the read path (deprecated).
type StateDeltaEvent struct {
	Type  EventType       `json:"type"`
	Delta json.RawMessage `json:"delta"`
}

// ErrorEvent reports a run-internal failure. The run still finishes.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

func (e *RunStartedEvent) EventType() EventType         { return EventTypeRunStarted }
func (e *RunFinishedEvent) EventType() EventType        { return EventTypeRunFinished }
func (e *TextMessageStartEvent) EventType() EventType   { return EventTypeTextMessageStart }
func (e *TextMessageContentEvent) EventType() EventType { return EventTypeTextMessageContent }
func (e *TextMessageEndEvent) EventType() EventType     { return EventTypeTextMessageEnd }
func (e *ToolCallStartEvent) EventType() EventType      { return EventTypeToolCallStart }
func (e *ToolCallArgsEvent) EventType() EventType       { return EventTypeToolCallArgs }
func (e *ToolCallEndEvent) EventType() EventType        { return EventTypeToolCallEnd }
func (e *StateSnapshotEvent) EventType() EventType      { return EventTypeStateSnapshot }
func (e *StateDeltaEvent) EventType() EventType         { return EventTypeStateDelta }
func (e *ErrorEvent) EventType() EventType              { return EventTypeError }

// NewRunStartedEvent creates a RUN_STARTED event.
func NewRunStartedEvent(threadID, runID string) *RunStartedEvent {
	return &RunStartedEvent{Type: EventTypeRunStarted, ThreadID: threadID, RunID: runID}
}

// NewRunFinishedEvent creates a RUN_FINISHED event.
func NewRunFinishedEvent(threadID, runID string) *RunFinishedEvent {
	return &RunFinishedEvent{Type: EventTypeRunFinished, ThreadID: threadID, RunID: runID}
}

// NewTextMessageStartEvent creates a TEXT_MESSAGE_START event.
func NewTextMessageStartEvent(messageID, role string) *TextMessageStartEvent {
	return &TextMessageStartEvent{Type: EventTypeTextMessageStart, MessageID: messageID, Role: role}
}

// NewTextMessageContentEvent creates a TEXT_MESSAGE_CONTENT event.
func NewTextMessageContentEvent(messageID, delta string) *TextMessageContentEvent {
	return &TextMessageContentEvent{Type: EventTypeTextMessageContent, MessageID: messageID, Delta: delta}
}

// NewTextMessageEndEvent creates a TEXT_MESSAGE_END event.
func NewTextMessageEndEvent(messageID string) *TextMessageEndEvent {
	return &TextMessageEndEvent{Type: EventTypeTextMessageEnd, MessageID: messageID}
}

// NewToolCallStartEvent creates a TOOL_CALL_START event.
func NewToolCallStartEvent(toolCallID, toolCallName string) *ToolCallStartEvent {
	return &ToolCallStartEvent{Type: EventTypeToolCallStart, ToolCallID: toolCallID, ToolCallName: toolCallName}
}

// NewToolCallArgsEvent creates a TOOL_CALL_ARGS event.
func NewToolCallArgsEvent(toolCallID, delta string) *ToolCallArgsEvent {
	return &ToolCallArgsEvent{Type: EventTypeToolCallArgs, ToolCallID: toolCallID, Delta: delta}
}

// NewToolCallEndEvent creates a TOOL_CALL_END event.
func NewToolCallEndEvent(toolCallID string) *ToolCallEndEvent {
	return &ToolCallEndEvent{Type: EventTypeToolCallEnd, ToolCallID: toolCallID}
}

// NewStateSnapshotEvent creates a STATE_SNAPSHOT event.
func NewStateSnapshotEvent(snapshot any) *StateSnapshotEvent {
	return &StateSnapshotEvent{Type: EventTypeStateSnapshot, Snapshot: snapshot}
}

// NewStateDeltaEvent creates a STATE_DELTA event carrying JSON Patch ops.
func NewStateDeltaEvent(ops []PatchOp) *StateDeltaEvent {
	raw, err := json.Marshal(ops)
	if err != nil {
		// PatchOp values are marshaled at construction; an array of them
		// cannot fail to marshal.
		panic(err)
	}
	return &StateDeltaEvent{Type: EventTypeStateDelta, Delta: raw}
}

// NewErrorEvent creates an ERROR event.
func NewErrorEvent(message string) *ErrorEvent {
	return &ErrorEvent{Type: EventTypeError, Message: message}
}

// PatchOps decodes the delta as a JSON Patch array. Returns false when the
// payload is the legacy key/value object form.
func (e *StateDeltaEvent) PatchOps() ([]PatchOp, bool, error) {
	trimmed := firstNonSpace(e.Delta)
	if trimmed == '{' {
		return nil, false, nil
	}
	var ops []PatchOp
	if err := json.Unmarshal(e.Delta, &ops); err != nil {
		return nil, true, fmt.Errorf("failed to parse patch delta: %w", err)
	}
	return ops, true, nil
}

// LegacyDelta decodes the deprecated flat key/value delta form.
func (e *StateDeltaEvent) LegacyDelta() (map[string]any, error) {
	var kv map[string]any
	if err := json.Unmarshal(e.Delta, &kv); err != nil {
		return nil, fmt.Errorf("failed to parse legacy delta: %w", err)
	}
	return kv, nil
}

func firstNonSpace(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

// ParseEvent decodes one JSON document into its concrete event struct.
// Unknown types yield ErrUnknownEventType; the stream is expected to carry
// on past them.
func ParseEvent(data []byte) (Event, error) {
	var envelope struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse event envelope: %w", err)
	}

	var event Event
	switch envelope.Type {
	case EventTypeRunStarted:
		event = &RunStartedEvent{}
	case EventTypeRunFinished:
		event = &RunFinishedEvent{}
	case EventTypeTextMessageStart:
		event = &TextMessageStartEvent{}
	case EventTypeTextMessageContent:
		event = &TextMessageContentEvent{}
	case EventTypeTextMessageEnd:
		event = &TextMessageEndEvent{}
	case EventTypeToolCallStart:
		event = &ToolCallStartEvent{}
	case EventTypeToolCallArgs:
		event = &ToolCallArgsEvent{}
	case EventTypeToolCallEnd:
		event = &ToolCallEndEvent{}
	case EventTypeStateSnapshot:
		event = &StateSnapshotEvent{}
	case EventTypeStateDelta:
		event = &StateDeltaEvent{}
	case EventTypeError:
		event = &ErrorEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, envelope.Type)
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", envelope.Type, err)
	}
	return event, nil
}

package client

import (
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/state"
)

// ToolCall is one assembled tool call record.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// Session accumulates a conversation against one thread: message history,
// assembled tool calls, and the mirrored state tree.
type Session struct {
	ThreadID  string
	AgentType domain.AgentType
	Messages  []domain.Message
	ToolCalls []ToolCall
	State     map[string]any

	currentID   string
	currentText strings.Builder
	openCalls   map[string]*ToolCall
}

// NewSession starts a fresh session with a generated thread id.
func NewSession() *Session {
	return &Session{
		ThreadID:  "thread_" + uuid.New().String()[:8],
		AgentType: domain.AgentTypeEcho,
		State:     map[string]any{},
		openCalls: make(map[string]*ToolCall),
	}
}

// Request builds the run request for one user utterance, appending it to
// the history first.
func (s *Session) Request(content string) *domain.RunAgentRequest {
	s.Messages = append(s.Messages, domain.Message{
		ID:      "msg_" + uuid.New().String()[:8],
		Role:    "user",
		Content: content,
	})
	return &domain.RunAgentRequest{
		ThreadID:  s.ThreadID,
		Messages:  s.Messages,
		Tools:     []any{},
		State:     s.State,
		Context:   []any{},
		AgentType: s.AgentType,
	}
}

// HandleEvent folds one stream event into the session.
func (s *Session) HandleEvent(event domain.Event) {
	switch e := event.(type) {
	case *domain.TextMessageStartEvent:
		s.currentID = e.MessageID
		s.currentText.Reset()

	case *domain.TextMessageContentEvent:
		s.currentText.WriteString(e.Delta)

	case *domain.TextMessageEndEvent:
		s.Messages = append(s.Messages, domain.Message{
			ID:      s.currentID,
			Role:    "assistant",
			Content: s.currentText.String(),
		})
		s.currentID = ""
		s.currentText.Reset()

	case *domain.ToolCallStartEvent:
		s.openCalls[e.ToolCallID] = &ToolCall{ID: e.ToolCallID, Name: e.ToolCallName}

	case *domain.ToolCallArgsEvent:
		if call, ok := s.openCalls[e.ToolCallID]; ok {
			call.Args += e.Delta
		}

	case *domain.ToolCallEndEvent:
		if call, ok := s.openCalls[e.ToolCallID]; ok {
			s.ToolCalls = append(s.ToolCalls, *call)
			delete(s.openCalls, e.ToolCallID)
		}

	case *domain.StateSnapshotEvent:
		if tree, ok := e.Snapshot.(map[string]any); ok {
			s.State = tree
		} else {
			log.Printf("WARN: ignoring non-object state snapshot")
		}

	case *domain.StateDeltaEvent:
		s.applyDelta(e)
	}
}

// applyDelta handles both delta forms: the canonical JSON Patch array goes
// through the patch engine; the legacy key/value object form is filtered by
// the safety validator and merged at the top level.
func (s *Session) applyDelta(e *domain.StateDeltaEvent) {
	ops, isPatch, err := e.PatchOps()
	if err != nil {
		log.Printf("WARN: skipping unreadable state delta: %v", err)
		return
	}

	if !isPatch {
		kv, err := e.LegacyDelta()
		if err != nil {
			log.Printf("WARN: skipping unreadable legacy delta: %v", err)
			return
		}
		for key, value := range kv {
			if !IsValidStateKey(key, value) {
				log.Printf("WARN: dropping unsafe state key %q", key)
				continue
			}
			s.State[key] = value
		}
		return
	}

	var root any = s.State
	for _, op := range ops {
		next, err := state.Apply(root, op)
		if err != nil {
			log.Printf("WARN: skipping patch op %s %s: %v", op.Op, op.Path, err)
			continue
		}
		root = next
	}
	if tree, ok := root.(map[string]any); ok {
		s.State = tree
	}
}

// AssistantTranscript returns the assistant messages in arrival order.
func (s *Session) AssistantTranscript() []string {
	var out []string
	for _, m := range s.Messages {
		if m.Role == "assistant" {
			out = append(out, m.Content)
		}
	}
	return out
}

package domain

import (
	"encoding/json"
	"time"
)

// Message is one entry of a thread's conversation history. Role alternation
// is not enforced; any order is legal input.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunAgentRequest is the client-submitted run request. A client-supplied
// run_id is ignored; the server assigns a fresh one.
type RunAgentRequest struct {
	ThreadID       string          `json:"thread_id"`
	RunID          string          `json:"run_id,omitempty"`
	Messages       []Message       `json:"messages"`
	Tools          []any           `json:"tools"`
	State          map[string]any  `json:"state"`
	Context        []any           `json:"context"`
	ForwardedProps json.RawMessage `json:"forwardedProps,omitempty"`
	AgentType      AgentType       `json:"agent_type"`
}

// RunAgentInput is the server-side input handed to an agent: the request
// with the server-assigned run id.
type RunAgentInput struct {
	ThreadID string
	RunID    string
	Messages []Message
	State    map[string]any
}

// LatestUserMessage returns the last message with role "user", or nil.
func (in *RunAgentInput) LatestUserMessage() *Message {
	for i := len(in.Messages) - 1; i >= 0; i-- {
		if in.Messages[i].Role == "user" {
			return &in.Messages[i]
		}
	}
	return nil
}

// AgentDescriptor describes one registered agent for GET /agents.
type AgentDescriptor struct {
	Description     string   `json:"description"`
	Features        []string `json:"features"`
	Tools           []string `json:"tools,omitempty"`
	StateOperations []string `json:"state_operations,omitempty"`
	UseCase         string   `json:"use_case,omitempty"`
}

// RunRecord is a journaled run.
type RunRecord struct {
	RunID     string     `json:"run_id"`
	ThreadID  string     `json:"thread_id"`
	AgentType AgentType  `json:"agent_type"`
	Status    RunStatus  `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// EventRecord is one journaled event of a run.
type EventRecord struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Seq     int             `json:"seq"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

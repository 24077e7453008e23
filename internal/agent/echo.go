package agent

import (
	"context"

	"github.com/xiaot623/agui/internal/domain"
)

// EchoAgent repeats the latest user message back with an "Echo: " prefix.
// No tools, no state.
type EchoAgent struct{}

// NewEchoAgent creates the echo agent.
func NewEchoAgent() *EchoAgent {
	return &EchoAgent{}
}

// Run implements Agent.
func (a *EchoAgent) Run(ctx context.Context, input *domain.RunAgentInput, em *Emitter) error {
	msg := input.LatestUserMessage()
	if msg == nil {
		return nil
	}
	return em.StreamText(ctx, "Echo: "+msg.Content)
}

// Descriptor implements Agent.
func (a *EchoAgent) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		Description: "Simple echo agent that repeats messages",
		Features:    []string{"text_messages"},
		UseCase:     "Testing basic streaming functionality",
	}
}

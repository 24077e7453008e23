package agent

import (
	"context"

	"github.com/xiaot623/agui/internal/domain"
)

// Agent is one run behavior. Run emits the events between RUN_STARTED and
// RUN_FINISHED (both emitted by the caller); an error return is converted
// by the caller into a terminal ERROR event, never a broken stream.
type Agent interface {
	Run(ctx context.Context, input *domain.RunAgentInput, em *Emitter) error
	Descriptor() domain.AgentDescriptor
}

// Registry maps agent types to their implementations.
type Registry struct {
	agents map[domain.AgentType]Agent
	order  []domain.AgentType
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[domain.AgentType]Agent)}
}

// Register adds an agent under its type.
func (r *Registry) Register(agentType domain.AgentType, a Agent) {
	if _, exists := r.agents[agentType]; !exists {
		r.order = append(r.order, agentType)
	}
	r.agents[agentType] = a
}

// Get returns the agent for agentType.
func (r *Registry) Get(agentType domain.AgentType) (Agent, bool) {
	a, ok := r.agents[agentType]
	return a, ok
}

// Types lists registered agent types in registration order.
func (r *Registry) Types() []domain.AgentType {
	out := make([]domain.AgentType, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors returns the descriptor map served by GET /agents.
func (r *Registry) Descriptors() map[string]domain.AgentDescriptor {
	out := make(map[string]domain.AgentDescriptor, len(r.agents))
	for agentType, a := range r.agents {
		out[string(agentType)] = a.Descriptor()
	}
	return out
}

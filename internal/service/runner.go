// Package service executes agent runs: request validation, run id
// assignment, per-thread serialization, event sequencing, and journaling.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/agui/internal/agent"
	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/journal"
	"github.com/xiaot623/agui/internal/state"
)

// UnknownAgentTypeError rejects a run request before any event is emitted.
type UnknownAgentTypeError struct {
	AgentType  domain.AgentType
	ValidTypes []domain.AgentType
}

func (e *UnknownAgentTypeError) Error() string {
	return fmt.Sprintf("Unknown agent_type '%s'. Valid types are: %v.", e.AgentType, e.ValidTypes)
}

// Runner validates run requests and drives agent runs to completion.
type Runner struct {
	agents  *agent.Registry
	store   state.Store
	journal *journal.Journal
	delay   time.Duration
}

// NewRunner creates a runner. journal may be nil to disable run recording.
func NewRunner(agents *agent.Registry, store state.Store, j *journal.Journal, delay time.Duration) *Runner {
	return &Runner{agents: agents, store: store, journal: j, delay: delay}
}

// Agents exposes the registry for the read endpoints.
func (r *Runner) Agents() *agent.Registry {
	return r.agents
}

// Journal exposes the run recorder for the replay endpoint. May be nil.
func (r *Runner) Journal() *journal.Journal {
	return r.journal
}

// Resolve validates the request and returns the agent that will serve it.
// A client-supplied run_id is ignored; an empty agent_type means echo.
func (r *Runner) Resolve(req *domain.RunAgentRequest) (agent.Agent, domain.AgentType, error) {
	agentType := req.AgentType
	if agentType == "" {
		agentType = domain.AgentTypeEcho
	}
	a, ok := r.agents.Get(agentType)
	if !ok {
		return nil, "", &UnknownAgentTypeError{AgentType: agentType, ValidTypes: r.agents.Types()}
	}
	return a, agentType, nil
}

// Execute runs the request to completion, emitting every event onto sink.
// The returned error reports validation or transport failure only; agent
// failures surface as an ERROR event inside a still well-formed stream.
func (r *Runner) Execute(ctx context.Context, req *domain.RunAgentRequest, sink agent.Sink) error {
	a, agentType, err := r.Resolve(req)
	if err != nil {
		return err
	}

	runID := "run_" + uuid.New().String()[:8]
	input := &domain.RunAgentInput{
		ThreadID: req.ThreadID,
		RunID:    runID,
		Messages: req.Messages,
		State:    req.State,
	}

	// One run at a time per thread. Other threads proceed concurrently.
	unlock := r.store.LockThread(req.ThreadID)
	defer unlock()

	r.recordStart(ctx, runID, req.ThreadID, agentType)

	seq := 0
	journaling := func(event domain.Event) error {
		if r.journal != nil {
			if err := r.journal.AppendEvent(ctx, runID, seq, event); err != nil {
				log.Printf("WARN: failed to journal %s event for run %s: %v", event.EventType(), runID, err)
			}
		}
		seq++
		return sink(event)
	}
	em := agent.NewEmitter(journaling, r.delay)

	if err := em.Emit(domain.NewRunStartedEvent(req.ThreadID, runID)); err != nil {
		r.recordFinish(ctx, runID, domain.RunStatusFailed)
		return err
	}

	status := domain.RunStatusDone
	if runErr := r.runAgent(ctx, a, input, em); runErr != nil {
		status = domain.RunStatusFailed
		log.Printf("ERROR: agent %s run %s failed: %v", agentType, runID, runErr)
		if err := em.Emit(domain.NewErrorEvent(runErr.Error())); err != nil {
			r.recordFinish(ctx, runID, domain.RunStatusFailed)
			return err
		}
	}

	if err := em.Emit(domain.NewRunFinishedEvent(req.ThreadID, runID)); err != nil {
		r.recordFinish(ctx, runID, domain.RunStatusFailed)
		return err
	}
	r.recordFinish(ctx, runID, status)
	return nil
}

// runAgent converts agent panics into run errors so the stream still closes
// with ERROR and RUN_FINISHED.
func (r *Runner) runAgent(ctx context.Context, a agent.Agent, input *domain.RunAgentInput, em *agent.Emitter) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent panicked: %v", rec)
		}
	}()
	return a.Run(ctx, input, em)
}

func (r *Runner) recordStart(ctx context.Context, runID, threadID string, agentType domain.AgentType) {
	if r.journal == nil {
		return
	}
	err := r.journal.CreateRun(ctx, &domain.RunRecord{
		RunID:     runID,
		ThreadID:  threadID,
		AgentType: agentType,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now(),
	})
	if err != nil {
		log.Printf("WARN: failed to journal run %s: %v", runID, err)
	}
}

func (r *Runner) recordFinish(ctx context.Context, runID string, status domain.RunStatus) {
	if r.journal == nil {
		return
	}
	if err := r.journal.FinishRun(ctx, runID, status); err != nil {
		log.Printf("WARN: failed to finish journaled run %s: %v", runID, err)
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/agui/internal/agent"
	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/journal"
	"github.com/xiaot623/agui/internal/state"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	agents := agent.NewRegistry()
	agents.Register(domain.AgentTypeEcho, agent.NewEchoAgent())
	return NewRunner(agents, state.NewMemoryStore(), j, 0)
}

func collectEvents(t *testing.T, r *Runner, req *domain.RunAgentRequest) []domain.Event {
	t.Helper()
	var events []domain.Event
	err := r.Execute(context.Background(), req, func(e domain.Event) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	return events
}

func TestRunnerExecuteEcho(t *testing.T) {
	r := newTestRunner(t)

	events := collectEvents(t, r, &domain.RunAgentRequest{
		ThreadID:  "thread_1",
		AgentType: domain.AgentTypeEcho,
		Messages:  []domain.Message{{ID: "m1", Role: "user", Content: "hi"}},
	})

	require.NotEmpty(t, events)
	started := events[0].(*domain.RunStartedEvent)
	finished := events[len(events)-1].(*domain.RunFinishedEvent)
	assert.Equal(t, "thread_1", started.ThreadID)
	assert.True(t, len(started.RunID) > 4 && started.RunID[:4] == "run_")
	assert.Equal(t, started.RunID, finished.RunID)

	run, err := r.Journal().GetRun(context.Background(), started.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusDone, run.Status)
	assert.Equal(t, domain.AgentTypeEcho, run.AgentType)

	records, err := r.Journal().GetEvents(context.Background(), started.RunID)
	require.NoError(t, err)
	assert.Len(t, records, len(events))
	assert.Equal(t, domain.EventTypeRunStarted, records[0].Type)
	assert.Equal(t, domain.EventTypeRunFinished, records[len(records)-1].Type)
}

func TestRunnerDefaultsToEcho(t *testing.T) {
	r := newTestRunner(t)

	events := collectEvents(t, r, &domain.RunAgentRequest{
		ThreadID: "thread_1",
		Messages: []domain.Message{{ID: "m1", Role: "user", Content: "hi"}},
	})

	var text string
	for _, e := range events {
		if c, ok := e.(*domain.TextMessageContentEvent); ok {
			text += c.Delta
		}
	}
	assert.Equal(t, "Echo: hi", text)
}

func TestRunnerUnknownAgentType(t *testing.T) {
	r := newTestRunner(t)

	var events []domain.Event
	err := r.Execute(context.Background(), &domain.RunAgentRequest{
		ThreadID:  "thread_1",
		AgentType: "mystery",
	}, func(e domain.Event) error {
		events = append(events, e)
		return nil
	})

	var unknownErr *UnknownAgentTypeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, domain.AgentType("mystery"), unknownErr.AgentType)
	assert.Empty(t, events, "a rejected request must not emit any event")
}

type failingAgent struct {
	err   error
	panic bool
}

func (a *failingAgent) Run(ctx context.Context, input *domain.RunAgentInput, em *agent.Emitter) error {
	if err := em.StreamText(ctx, "partial"); err != nil {
		return err
	}
	if a.panic {
		panic("boom")
	}
	return a.err
}

func (a *failingAgent) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{Description: "always fails"}
}

func TestRunnerAgentErrorStillFinishesRun(t *testing.T) {
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	agents := agent.NewRegistry()
	agents.Register("failing", &failingAgent{err: errors.New("tool backend down")})
	r := NewRunner(agents, state.NewMemoryStore(), j, 0)

	events := collectEvents(t, r, &domain.RunAgentRequest{
		ThreadID:  "thread_1",
		AgentType: "failing",
		Messages:  []domain.Message{{ID: "m1", Role: "user", Content: "hi"}},
	})

	errorEvent := events[len(events)-2].(*domain.ErrorEvent)
	assert.Equal(t, "tool backend down", errorEvent.Message)
	assert.Equal(t, domain.EventTypeRunFinished, events[len(events)-1].EventType())

	started := events[0].(*domain.RunStartedEvent)
	run, err := j.GetRun(context.Background(), started.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
}

func TestRunnerAgentPanicBecomesErrorEvent(t *testing.T) {
	agents := agent.NewRegistry()
	agents.Register("failing", &failingAgent{panic: true})
	r := NewRunner(agents, state.NewMemoryStore(), nil, 0)

	events := collectEvents(t, r, &domain.RunAgentRequest{
		ThreadID:  "thread_1",
		AgentType: "failing",
		Messages:  []domain.Message{{ID: "m1", Role: "user", Content: "hi"}},
	})

	errorEvent := events[len(events)-2].(*domain.ErrorEvent)
	assert.Contains(t, errorEvent.Message, "agent panicked")
	assert.Equal(t, domain.EventTypeRunFinished, events[len(events)-1].EventType())
}

type blockingAgent struct {
	entered chan string
	release chan struct{}
}

func (a *blockingAgent) Run(ctx context.Context, input *domain.RunAgentInput, em *agent.Emitter) error {
	a.entered <- input.ThreadID
	<-a.release
	return nil
}

func (a *blockingAgent) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{Description: "blocks until released"}
}

func TestRunnerSerializesRunsPerThread(t *testing.T) {
	blocker := &blockingAgent{entered: make(chan string, 2), release: make(chan struct{})}
	agents := agent.NewRegistry()
	agents.Register("blocking", blocker)
	r := NewRunner(agents, state.NewMemoryStore(), nil, 0)

	discard := func(domain.Event) error { return nil }
	run := func(threadID string) {
		_ = r.Execute(context.Background(), &domain.RunAgentRequest{
			ThreadID:  threadID,
			AgentType: "blocking",
		}, discard)
	}

	go run("thread_a")
	<-blocker.entered

	// A second run on the same thread must wait for the first to finish.
	go run("thread_a")
	select {
	case <-blocker.entered:
		t.Fatal("second run on the same thread started concurrently")
	case <-time.After(50 * time.Millisecond):
	}

	// A run on a different thread is not blocked.
	go run("thread_b")
	select {
	case threadID := <-blocker.entered:
		assert.Equal(t, "thread_b", threadID)
	case <-time.After(time.Second):
		t.Fatal("run on a different thread was blocked")
	}

	close(blocker.release)
	<-blocker.entered // second thread_a run proceeds after release
}

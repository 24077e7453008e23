package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/agui/internal/agent"
	"github.com/xiaot623/agui/internal/approval"
	"github.com/xiaot623/agui/internal/codec"
	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/journal"
	"github.com/xiaot623/agui/internal/policy"
	"github.com/xiaot623/agui/internal/service"
	"github.com/xiaot623/agui/internal/state"
	"github.com/xiaot623/agui/internal/tools"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	store := state.NewMemoryStore()
	agents := agent.NewRegistry()
	agents.Register(domain.AgentTypeEcho, agent.NewEchoAgent())
	agents.Register(domain.AgentTypeTool, agent.NewToolAgent(tools.NewBuiltinRegistry(time.Now)))
	agents.Register(domain.AgentTypeState, agent.NewStateAgent(store))
	agents.Register(domain.AgentTypeHitl, agent.NewHitlAgent(store, approval.NewQueue(), engine))

	return NewHandler(service.NewRunner(agents, store, j, 0))
}

func postAgent(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/agent", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.RunAgent(c))
	return rec
}

func decodeFrames(t *testing.T, body string) []domain.Event {
	t.Helper()
	var events []domain.Event
	err := codec.ScanStream(strings.NewReader(body), func(e domain.Event) error {
		events = append(events, e)
		return nil
	}, nil)
	require.NoError(t, err)
	return events
}

func TestRunAgentStreamsSSE(t *testing.T) {
	h := newTestHandler(t)

	rec := postAgent(t, h, `{"thread_id":"t1","agent_type":"echo","messages":[{"id":"m1","role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))

	events := decodeFrames(t, body)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventTypeRunStarted, events[0].EventType())
	assert.Equal(t, domain.EventTypeRunFinished, events[len(events)-1].EventType())

	var text string
	for _, e := range events {
		if c, ok := e.(*domain.TextMessageContentEvent); ok {
			text += c.Delta
		}
	}
	assert.Equal(t, "Echo: hi", text)
}

func TestRunAgentUnknownType(t *testing.T) {
	h := newTestHandler(t)

	rec := postAgent(t, h, `{"thread_id":"t1","agent_type":"mystery","messages":[]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "Unknown agent_type 'mystery'")
}

func TestRunAgentInvalidBody(t *testing.T) {
	h := newTestHandler(t)
	rec := postAgent(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAgents(t *testing.T) {
	h := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListAgents(e.NewContext(req, rec)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]domain.AgentDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 4)
	assert.Equal(t, "Simple echo agent that repeats messages", resp["echo"].Description)
	assert.Contains(t, resp["tool"].Tools, "calculator")
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Health(e.NewContext(req, rec)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status   string   `json:"status"`
		Agents   []string `json:"agents"`
		Features []string `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, []string{"echo", "tool", "state", "hitl"}, resp.Agents)
	assert.Equal(t, []string{"streaming", "tools", "state"}, resp.Features)
}

func TestGetRunEventsReplay(t *testing.T) {
	h := newTestHandler(t)

	rec := postAgent(t, h, `{"thread_id":"t1","agent_type":"echo","messages":[{"id":"m1","role":"user","content":"hi"}]}`)
	events := decodeFrames(t, rec.Body.String())
	runID := events[0].(*domain.RunStartedEvent).RunID

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+runID+"/events", nil)
	getRec := httptest.NewRecorder()
	c := e.NewContext(req, getRec)
	c.SetParamNames("run_id")
	c.SetParamValues(runID)
	require.NoError(t, h.GetRunEvents(c))

	require.Equal(t, http.StatusOK, getRec.Code)
	var resp struct {
		Run    domain.RunRecord     `json:"run"`
		Events []domain.EventRecord `json:"events"`
	}
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, domain.RunStatusDone, resp.Run.Status)
	require.Len(t, resp.Events, len(events))
	assert.Equal(t, domain.EventTypeRunStarted, resp.Events[0].Type)
}

func TestGetRunEventsNotFound(t *testing.T) {
	h := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_missing/events", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("run_id")
	c.SetParamValues("run_missing")
	require.NoError(t, h.GetRunEvents(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

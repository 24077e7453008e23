package ingress

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/agui/internal/agent"
	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/service"
	"github.com/xiaot623/agui/internal/state"
)

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()

	agents := agent.NewRegistry()
	agents.Register(domain.AgentTypeEcho, agent.NewEchoAgent())
	runner := service.NewRunner(agents, state.NewMemoryStore(), nil, 0)

	e := echo.New()
	NewServer(runner, time.Second).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestWebSocketRunStreamsEvents(t *testing.T) {
	ws := dialTestServer(t)

	req := domain.RunAgentRequest{
		ThreadID:  "t1",
		AgentType: domain.AgentTypeEcho,
		Messages:  []domain.Message{{ID: "m1", Role: "user", Content: "hi"}},
	}
	require.NoError(t, ws.WriteJSON(req))

	var events []domain.Event
	var text string
	for {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := ws.ReadMessage()
		require.NoError(t, err)

		event, err := domain.ParseEvent(frame)
		require.NoError(t, err)
		events = append(events, event)
		if c, ok := event.(*domain.TextMessageContentEvent); ok {
			text += c.Delta
		}
		if event.EventType() == domain.EventTypeRunFinished {
			break
		}
	}

	assert.Equal(t, domain.EventTypeRunStarted, events[0].EventType())
	assert.Equal(t, "Echo: hi", text)
}

func TestWebSocketUnknownAgentType(t *testing.T) {
	ws := dialTestServer(t)

	require.NoError(t, ws.WriteJSON(domain.RunAgentRequest{ThreadID: "t1", AgentType: "mystery"}))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(frame, &resp))
	assert.Contains(t, resp["error"], "Unknown agent_type 'mystery'")
}

func TestWebSocketInvalidJSON(t *testing.T) {
	ws := dialTestServer(t)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(frame, &resp))
	assert.Equal(t, "invalid request body", resp["error"])
}

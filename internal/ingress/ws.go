// Package ingress provides the WebSocket transport variant: one run
// request per client message, answered with the run's events as bare JSON
// frames on the same connection.
package ingress

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/agui/internal/codec"
	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/service"
)

// Server handles WebSocket connections.
type Server struct {
	runner       *service.Runner
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// NewServer creates a new WebSocket server over runner.
func NewServer(runner *service.Runner, writeTimeout time.Duration) *Server {
	return &Server{
		runner:       runner,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

type errorFrame struct {
	Error string `json:"error"`
}

// HandleWebSocket upgrades the connection and serves run requests until
// the client disconnects. Requests on one connection run sequentially.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ERROR: failed to upgrade WebSocket: %v", err)
		return err
	}
	defer ws.Close()

	ctx := c.Request().Context()
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARN: WebSocket read failed: %v", err)
			}
			return nil
		}

		var req domain.RunAgentRequest
		if err := json.Unmarshal(message, &req); err != nil {
			if err := s.writeJSON(ws, errorFrame{Error: "invalid request body"}); err != nil {
				return nil
			}
			continue
		}

		sink := func(event domain.Event) error {
			frame, err := codec.EncodeJSON(event)
			if err != nil {
				return err
			}
			ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			return ws.WriteMessage(websocket.TextMessage, frame)
		}

		if err := s.runner.Execute(ctx, &req, sink); err != nil {
			// Validation failures answer with an error frame; transport
			// failures end the connection.
			if writeErr := s.writeJSON(ws, errorFrame{Error: err.Error()}); writeErr != nil {
				return nil
			}
		}
	}
}

func (s *Server) writeJSON(ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

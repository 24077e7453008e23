// Package api provides the HTTP surface: the SSE run endpoint and the
// read endpoints for agents, health, and journaled runs.
package api

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/agui/internal/codec"
	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	runner *service.Runner
}

// NewHandler creates a new handler.
func NewHandler(runner *service.Runner) *Handler {
	return &Handler{runner: runner}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/agent", h.RunAgent)
	e.GET("/agents", h.ListAgents)
	e.GET("/health", h.Health)

	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
}

// RunAgent streams a run as SSE frames.
// POST /agent
func (h *Handler) RunAgent(c echo.Context) error {
	var req domain.RunAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	// Validate before the stream opens: a rejected request is a plain JSON
	// error response, never a partial stream.
	if _, _, err := h.runner.Resolve(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("Access-Control-Allow-Origin", "*")
	resp.WriteHeader(http.StatusOK)

	sink := func(event domain.Event) error {
		frame, err := codec.EncodeFrame(event)
		if err != nil {
			return err
		}
		if _, err := resp.Write(frame); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}

	if err := h.runner.Execute(c.Request().Context(), &req, sink); err != nil {
		// Headers are already out; all we can do is drop the connection.
		log.Printf("ERROR: run stream aborted: %v", err)
	}
	return nil
}

// ListAgents returns the registered agents and their capabilities.
// GET /agents
func (h *Handler) ListAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, h.runner.Agents().Descriptors())
}

// Health returns health status.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	types := h.runner.Agents().Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "healthy",
		"agents":   names,
		"features": []string{"streaming", "tools", "state"},
	})
}

// GetRunEvents replays a journaled run.
// GET /v1/runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	j := h.runner.Journal()
	if j == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run journaling is disabled"})
	}

	run, err := j.GetRun(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to get run: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get run"})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	events, err := j.GetEvents(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to get events: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get events"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"run":    run,
		"events": events,
	})
}

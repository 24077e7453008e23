// Package client is the consumer side of the protocol: an SSE client for
// the run endpoint, a session assembler for spans and tool calls, and the
// safety validator for legacy state deltas.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/agui/internal/codec"
	"github.com/xiaot623/agui/internal/domain"
)

// Client talks to one server.
type Client struct {
	baseURL    string
	httpc      *http.Client
	inactivity time.Duration
}

// NewClient creates a client for baseURL. inactivity bounds the gap between
// consecutive stream events; zero disables the watchdog.
func NewClient(baseURL string, inactivity time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpc:      &http.Client{},
		inactivity: inactivity,
	}
}

// RunAgent submits a run request and invokes handle for every event of the
// response stream, in order. A stream that goes quiet past the inactivity
// window is treated as ended, not failed.
func (c *Client) RunAgent(ctx context.Context, req *domain.RunAgentRequest, handle func(domain.Event) error) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal run request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agent", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server rejected run: %s", errResp.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var timer *time.Timer
	if c.inactivity > 0 {
		timer = time.AfterFunc(c.inactivity, cancel)
		defer timer.Stop()
	}

	err = codec.ScanStream(resp.Body, func(event domain.Event) error {
		if timer != nil {
			timer.Reset(c.inactivity)
		}
		return handle(event)
	}, func(line string, decodeErr error) {
		log.Printf("WARN: skipping malformed frame: %v", decodeErr)
	})
	if err != nil && ctx.Err() != nil {
		// Watchdog fired or caller canceled mid-stream.
		return nil
	}
	return err
}

// Agents fetches the server's agent descriptors.
func (c *Client) Agents(ctx context.Context) (map[string]domain.AgentDescriptor, error) {
	var out map[string]domain.AgentDescriptor
	if err := c.getJSON(ctx, "/agents", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health fetches the server's health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

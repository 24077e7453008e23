package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/tools"
)

// ToolAgent routes the latest user message through intent predicates in
// fixed priority order (calculation before weather before time before
// fallback) and emits one tool call record plus a result text span for a
// matched intent.
type ToolAgent struct {
	tools *tools.Registry
}

// NewToolAgent creates the tool-invoking agent over the given registry.
func NewToolAgent(registry *tools.Registry) *ToolAgent {
	return &ToolAgent{tools: registry}
}

// Run implements Agent.
func (a *ToolAgent) Run(ctx context.Context, input *domain.RunAgentInput, em *Emitter) error {
	msg := input.LatestUserMessage()
	if msg == nil {
		return nil
	}
	content := strings.ToLower(msg.Content)

	switch {
	case strings.Contains(content, "calculate") || strings.Contains(content, "math"):
		return a.runCalculator(ctx, content, em)
	case strings.Contains(content, "weather"):
		return a.runWeather(ctx, em)
	case strings.Contains(content, "time"):
		return a.runTime(ctx, em)
	default:
		return em.StreamText(ctx, "I can help you with calculations, weather, or time. Try asking 'calculate 5 + 3' or 'what's the weather?'")
	}
}

func (a *ToolAgent) runCalculator(ctx context.Context, content string, em *Emitter) error {
	expression := strings.TrimSpace(strings.ReplaceAll(content, "calculate", ""))
	args := tools.CalculatorArgs{Expression: expression}

	if _, err := em.EmitToolCall(ctx, tools.ToolCalculator, args); err != nil {
		return err
	}

	argsJSON, _ := json.Marshal(args)
	result, err := a.tools.Execute(ctx, tools.ToolCalculator, argsJSON)
	if err != nil {
		return em.StreamText(ctx, fmt.Sprintf("Sorry, I couldn't calculate that expression: %v", err))
	}

	var out struct {
		Expression string `json:"expression"`
		Result     string `json:"result"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return fmt.Errorf("failed to parse calculator result: %w", err)
	}
	return em.StreamText(ctx, fmt.Sprintf("Calculation result: %s = %s", out.Expression, out.Result))
}

func (a *ToolAgent) runWeather(ctx context.Context, em *Emitter) error {
	args := tools.WeatherArgs{Location: "current"}
	if _, err := em.EmitToolCall(ctx, tools.ToolWeather, args); err != nil {
		return err
	}

	argsJSON, _ := json.Marshal(args)
	result, err := a.tools.Execute(ctx, tools.ToolWeather, argsJSON)
	if err != nil {
		return em.StreamText(ctx, fmt.Sprintf("Sorry, the weather service is unavailable: %v", err))
	}

	var out struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return fmt.Errorf("failed to parse weather result: %w", err)
	}
	return em.StreamText(ctx, out.Summary)
}

func (a *ToolAgent) runTime(ctx context.Context, em *Emitter) error {
	args := tools.TimeArgs{Timezone: "local"}
	if _, err := em.EmitToolCall(ctx, tools.ToolGetTime, args); err != nil {
		return err
	}

	argsJSON, _ := json.Marshal(args)
	result, err := a.tools.Execute(ctx, tools.ToolGetTime, argsJSON)
	if err != nil {
		return em.StreamText(ctx, fmt.Sprintf("Sorry, the clock is unavailable: %v", err))
	}

	var out struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return fmt.Errorf("failed to parse time result: %w", err)
	}
	return em.StreamText(ctx, "Current time: "+out.Time)
}

// Descriptor implements Agent.
func (a *ToolAgent) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		Description: "Tool-calling agent with multiple tools",
		Features:    []string{"text_messages", "tool_calls"},
		Tools:       []string{tools.ToolCalculator, tools.ToolWeather, tools.ToolGetTime},
		UseCase:     "Demonstrations of tool calling workflows",
	}
}

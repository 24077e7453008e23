package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Builtin tool names used by the tool-invoking agent.
const (
	ToolCalculator = "calculator"
	ToolWeather    = "weather"
	ToolGetTime    = "get_time"
)

// CalculatorArgs is the argument document for the calculator tool.
type CalculatorArgs struct {
	Expression string `json:"expression"`
}

// WeatherArgs is the argument document for the weather tool.
type WeatherArgs struct {
	Location string `json:"location"`
}

// TimeArgs is the argument document for the get_time tool.
type TimeArgs struct {
	Timezone string `json:"timezone"`
}

// NewBuiltinRegistry returns a registry with the demo tools registered.
// The weather response is canned; the clock defaults to time.Now.
func NewBuiltinRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	r := NewRegistry()

	r.MustRegister(ToolCalculator, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var a CalculatorArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
		}
		result, err := Evaluate(a.Expression)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"expression": a.Expression, "result": result})
	})

	r.MustRegister(ToolWeather, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"summary":"Current weather: 72°F, partly cloudy with light winds. (This is a simulated response)"}`), nil
	})

	r.MustRegister(ToolGetTime, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		stamp := now().Format("2006-01-02 15:04:05")
		return json.Marshal(map[string]string{"time": stamp})
	})

	return r
}

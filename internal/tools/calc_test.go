package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"5 + 3", "8"},
		{"2 - 5", "-3"},
		{"6*7", "42"},
		{"10 / 4", "2.5"},
		{"10 % 3", "1"},
		{"2 ** 10", "1024"},
		{"2 ^ 3", "8"},
		{"2**3**2", "512"}, // right associative
		{"-2^2", "-4"},
		{"2 * -3", "-6"},
		{"(2 + 3) * 4", "20"},
		{"3 x 4", "12"},
		{"8 ÷ 2", "4"},
		{"1/3", "0.333333"},
		{"0.1 + 0.2", "0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	for _, expr := range []string{"", "5 +* 3", "hello", "(2 + 3", "5 + ", "1;2"} {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr)
			assert.ErrorIs(t, err, ErrInvalidExpression)
		})
	}

	_, err := Evaluate("1/0")
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Evaluate("5 % 0")
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "8", FormatResult(8))
	assert.Equal(t, "-3", FormatResult(-3))
	assert.Equal(t, "2.5", FormatResult(2.5))
	assert.Equal(t, "0.333333", FormatResult(1.0/3.0))
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("upper", func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return args, nil
	})

	out, err := r.Execute(context.Background(), "upper", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(out))

	_, err = r.Execute(context.Background(), "missing", nil)
	assert.Error(t, err)

	err = r.Register("upper", func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	})
	assert.Error(t, err, "duplicate registration is rejected")
}

func TestBuiltinRegistry(t *testing.T) {
	now := func() time.Time {
		return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	r := NewBuiltinRegistry(now)
	ctx := context.Background()

	assert.ElementsMatch(t, []string{ToolCalculator, ToolWeather, ToolGetTime}, r.Names())

	out, err := r.Execute(ctx, ToolCalculator, json.RawMessage(`{"expression":"5 + 3"}`))
	require.NoError(t, err)
	var calc map[string]string
	require.NoError(t, json.Unmarshal(out, &calc))
	assert.Equal(t, "8", calc["result"])

	_, err = r.Execute(ctx, ToolCalculator, json.RawMessage(`{"expression":"nope"}`))
	assert.ErrorIs(t, err, ErrInvalidExpression)

	out, err = r.Execute(ctx, ToolWeather, json.RawMessage(`{"location":"current"}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), "72°F, partly cloudy")

	out, err = r.Execute(ctx, ToolGetTime, json.RawMessage(`{"timezone":"local"}`))
	require.NoError(t, err)
	var clock map[string]string
	require.NoError(t, json.Unmarshal(out, &clock))
	assert.Equal(t, "2025-03-14 09:26:53", clock["time"])
}

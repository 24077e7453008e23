package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/agui/internal/domain"
)

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame(domain.NewRunStartedEvent("t1", "run_1"))
	require.NoError(t, err)

	s := string(frame)
	assert.True(t, strings.HasPrefix(s, "data: {"))
	assert.True(t, strings.HasSuffix(s, "}\n\n"))
	assert.Contains(t, s, `"type":"RUN_STARTED"`)
	assert.Contains(t, s, `"threadId":"t1"`)
	assert.Contains(t, s, `"runId":"run_1"`)
}

func TestEncodeJSONHasNoFraming(t *testing.T) {
	payload, err := EncodeJSON(domain.NewTextMessageEndEvent("m1"))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"TEXT_MESSAGE_END","messageId":"m1"}`, string(payload))
}

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want domain.EventType
	}{
		{"plain frame", `data: {"type":"RUN_STARTED","threadId":"t","runId":"r"}`, domain.EventTypeRunStarted},
		{"double prefix", `data: data: {"type":"RUN_FINISHED","threadId":"t","runId":"r"}`, domain.EventTypeRunFinished},
		{"no prefix", `{"type":"TEXT_MESSAGE_END","messageId":"m"}`, domain.EventTypeTextMessageEnd},
		{"trailing whitespace", `data: {"type":"TEXT_MESSAGE_END","messageId":"m"}  `, domain.EventTypeTextMessageEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeLine(tt.line)
			require.NoError(t, err)
			require.NotNil(t, event)
			assert.Equal(t, tt.want, event.EventType())
		})
	}
}

func TestDecodeLineSkipsBlanksAndComments(t *testing.T) {
	for _, line := range []string{"", "   ", ": keepalive", ":"} {
		event, err := DecodeLine(line)
		require.NoError(t, err)
		assert.Nil(t, event)
	}
}

func TestDecodeLineErrors(t *testing.T) {
	_, err := DecodeLine("data: {broken")
	assert.Error(t, err)

	_, err = DecodeLine(`data: {"type":"MYSTERY_EVENT"}`)
	assert.ErrorIs(t, err, domain.ErrUnknownEventType)
}

func TestScanStream(t *testing.T) {
	input := ": hello\n" +
		"\n" +
		`data: {"type":"RUN_STARTED","threadId":"t","runId":"r"}` + "\n\n" +
		"data: {junk\n\n" +
		`data: {"type":"RUN_FINISHED","threadId":"t","runId":"r"}` + "\n\n"

	var types []domain.EventType
	var badLines []string
	err := ScanStream(strings.NewReader(input), func(e domain.Event) error {
		types = append(types, e.EventType())
		return nil
	}, func(line string, err error) {
		badLines = append(badLines, line)
	})

	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventTypeRunStarted, domain.EventTypeRunFinished}, types)
	assert.Equal(t, []string{"data: {junk"}, badLines)
}

func TestScanStreamHandlerErrorStops(t *testing.T) {
	input := `data: {"type":"RUN_STARTED","threadId":"t","runId":"r"}` + "\n\n" +
		`data: {"type":"RUN_FINISHED","threadId":"t","runId":"r"}` + "\n\n"

	stop := errors.New("enough")
	count := 0
	err := ScanStream(strings.NewReader(input), func(e domain.Event) error {
		count++
		return stop
	}, nil)

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

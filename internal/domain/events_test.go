package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWireNames(t *testing.T) {
	data, err := json.Marshal(NewToolCallStartEvent("call_1", "calculator"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TOOL_CALL_START","toolCallId":"call_1","toolCallName":"calculator"}`, string(data))

	data, err = json.Marshal(NewTextMessageContentEvent("msg_1", "h"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TEXT_MESSAGE_CONTENT","messageId":"msg_1","delta":"h"}`, string(data))
}

func TestParseEventRoundTrip(t *testing.T) {
	events := []Event{
		NewRunStartedEvent("t1", "run_1"),
		NewRunFinishedEvent("t1", "run_1"),
		NewTextMessageStartEvent("m1", "assistant"),
		NewTextMessageContentEvent("m1", "x"),
		NewTextMessageEndEvent("m1"),
		NewToolCallStartEvent("c1", "calculator"),
		NewToolCallArgsEvent("c1", `{"expression":"1"}`),
		NewToolCallEndEvent("c1"),
		NewStateSnapshotEvent(map[string]any{"k": "v"}),
		NewStateDeltaEvent([]PatchOp{AddOp("/k", "v")}),
		NewErrorEvent("boom"),
	}

	for _, original := range events {
		data, err := json.Marshal(original)
		require.NoError(t, err)
		parsed, err := ParseEvent(data)
		require.NoError(t, err)
		assert.Equal(t, original.EventType(), parsed.EventType())
	}
}

func TestParseEventUnknownType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"SOMETHING_NEW","x":1}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestParseEventMalformed(t *testing.T) {
	_, err := ParseEvent([]byte(`{broken`))
	assert.Error(t, err)
}

func TestStateDeltaPatchForm(t *testing.T) {
	event := NewStateDeltaEvent([]PatchOp{
		ReplaceOp("/conversation_count", 3),
		RemoveOp("/pending_actions/0"),
	})

	ops, isPatch, err := event.PatchOps()
	require.NoError(t, err)
	require.True(t, isPatch)
	require.Len(t, ops, 2)
	assert.Equal(t, "replace", ops[0].Op)
	assert.Equal(t, "/conversation_count", ops[0].Path)
	value, err := ops[0].DecodedValue()
	require.NoError(t, err)
	assert.Equal(t, float64(3), value)

	assert.Equal(t, "remove", ops[1].Op)
	assert.Nil(t, ops[1].Value)
}

func TestStateDeltaLegacyForm(t *testing.T) {
	var event StateDeltaEvent
	require.NoError(t, json.Unmarshal([]byte(`{"type":"STATE_DELTA","delta":{"user_name":"Alice"}}`), &event))

	_, isPatch, err := event.PatchOps()
	require.NoError(t, err)
	assert.False(t, isPatch)

	kv, err := event.LegacyDelta()
	require.NoError(t, err)
	assert.Equal(t, "Alice", kv["user_name"])
}

func TestRemoveOpOmitsValue(t *testing.T) {
	data, err := json.Marshal(RemoveOp("/pending_actions/0"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"remove","path":"/pending_actions/0"}`, string(data))
}

func TestLatestUserMessage(t *testing.T) {
	input := &RunAgentInput{Messages: []Message{
		{ID: "1", Role: "user", Content: "first"},
		{ID: "2", Role: "assistant", Content: "reply"},
		{ID: "3", Role: "user", Content: "second"},
		{ID: "4", Role: "assistant", Content: "reply"},
	}}
	msg := input.LatestUserMessage()
	require.NotNil(t, msg)
	assert.Equal(t, "second", msg.Content)

	empty := &RunAgentInput{Messages: []Message{{ID: "1", Role: "system", Content: "x"}}}
	assert.Nil(t, empty.LatestUserMessage())
}

func TestRunAgentRequestFieldNames(t *testing.T) {
	var req RunAgentRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"thread_id":"t1",
		"agent_type":"state",
		"messages":[{"id":"m1","role":"user","content":"hi"}],
		"state":{"k":"v"},
		"forwardedProps":{"a":1}
	}`), &req))

	assert.Equal(t, "t1", req.ThreadID)
	assert.Equal(t, AgentType("state"), req.AgentType)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hi", req.Messages[0].Content)
	assert.Equal(t, "v", req.State["k"])
	assert.JSONEq(t, `{"a":1}`, string(req.ForwardedProps))
}

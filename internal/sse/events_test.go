package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversa/cli/internal/domain"
)

func TestParseFrame_Token(t *testing.T) {
	ev, err := ParseFrame(Frame{Name: "token", Data: `{"text":"hi"}`})
	require.NoError(t, err)
	assert.Equal(t, domain.TokenEvent{Text: "hi"}, ev)
}

func TestParseFrame_CaseAndPrefixNormalization(t *testing.T) {
	tests := []struct {
		name     string
		wantType domain.StreamEvent
	}{
		{"TOKEN", domain.TokenEvent{}},
		{"Token_Delta", domain.TokenEvent{}},
		{"tool_event", domain.ToolEvent{}},
		{"Transcript", domain.TranscriptEvent{}},
		{"DONE", domain.DoneEvent{}},
		{"log", domain.LogEvent{}},
		{"audio_chunk", domain.AudioEvent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseFrame(Frame{Name: tt.name, Data: "{}"})
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, ev)
		})
	}
}

func TestParseFrame_UnknownNameIgnored(t *testing.T) {
	ev, err := ParseFrame(Frame{Name: "telemetry", Data: "{}"})
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseFrame_MalformedPayloadIsDecodeError(t *testing.T) {
	ev, err := ParseFrame(Frame{Name: "token", Data: `{"text":`})
	assert.Nil(t, ev)

	var decodeErr *domain.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "token", decodeErr.EventName)
}

func TestParseFrame_Heartbeat(t *testing.T) {
	ev, err := ParseFrame(Frame{Name: "heartbeat", Data: "{}"})
	require.NoError(t, err)
	assert.Equal(t, domain.HeartbeatEvent{}, ev)

	// heartbeats with unparseable bodies are still heartbeats
	ev, err = ParseFrame(Frame{Name: "ping", Data: "whatever"})
	require.NoError(t, err)
	assert.Equal(t, domain.HeartbeatEvent{}, ev)
}

func TestParseFrame_ToolPayload(t *testing.T) {
	ev, err := ParseFrame(Frame{Name: "tool", Data: `{"tool":"search","status":"end","run_id":3,"latency_ms":250}`})
	require.NoError(t, err)

	tool, ok := ev.(domain.ToolEvent)
	require.True(t, ok)
	assert.Equal(t, "search", tool.Tool)
	assert.Equal(t, "end", tool.Status)
	require.NotNil(t, tool.RunID)
	assert.Equal(t, int64(3), *tool.RunID)
	require.NotNil(t, tool.LatencyMs)
	assert.Equal(t, int64(250), *tool.LatencyMs)
}

func TestParseFrame_DoneWithMetadataAndReplays(t *testing.T) {
	data := `{
		"content": "final answer",
		"metadata": {"session_id": 42, "session_external_id": "abc"},
		"tool_events": [{"tool":"search","status":"ok"}],
		"logs": [{"level":"info","msg":"done"}]
	}`
	ev, err := ParseFrame(Frame{Name: "done", Data: data})
	require.NoError(t, err)

	done, ok := ev.(domain.DoneEvent)
	require.True(t, ok)
	assert.Equal(t, "final answer", done.Content)
	require.NotNil(t, done.Metadata.SessionID)
	assert.Equal(t, int64(42), *done.Metadata.SessionID)
	require.NotNil(t, done.Metadata.SessionExternalID)
	assert.Equal(t, "abc", *done.Metadata.SessionExternalID)
	require.Len(t, done.ToolEvents, 1)
	assert.Equal(t, "search", done.ToolEvents[0].Tool)
	require.Len(t, done.Logs, 1)
}

func TestParseFrame_TranscriptFinality(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name string
		ev   domain.TranscriptEvent
		want bool
	}{
		{"is_final true", domain.TranscriptEvent{IsFinal: boolPtr(true)}, true},
		{"is_final false", domain.TranscriptEvent{IsFinal: boolPtr(false)}, false},
		{"partial false", domain.TranscriptEvent{Partial: boolPtr(false)}, true},
		{"partial true", domain.TranscriptEvent{Partial: boolPtr(true)}, false},
		{"neither set", domain.TranscriptEvent{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Final())
		})
	}
}

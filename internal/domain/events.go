package domain

// StreamEvent is one typed event decoded from the backend's chat stream.
// Values are immutable once constructed.
type StreamEvent interface {
	streamEvent()
}

// TokenEvent carries one increment of assistant text
type TokenEvent struct {
	Text string `json:"text"`
}

// ToolEvent reports a tool invocation transition as observed by the backend
type ToolEvent struct {
	Tool          string         `json:"tool"`
	Status        string         `json:"status"`
	RunID         *int64         `json:"run_id,omitempty"`
	LatencyMs     *int64         `json:"latency_ms,omitempty"`
	Error         string         `json:"error,omitempty"`
	Args          map[string]any `json:"args,omitempty"`
	ResultPreview any            `json:"result_preview,omitempty"`
}

// LogEvent is ephemeral progress text ("Thinking…") with no durable effect
type LogEvent struct {
	Level   string `json:"level"`
	Message string `json:"msg"`
}

// TranscriptEvent carries a speech-to-text update for voice turns. The
// server signals finality either as is_final=true or partial=false.
type TranscriptEvent struct {
	Text       string   `json:"text"`
	IsFinal    *bool    `json:"is_final,omitempty"`
	Partial    *bool    `json:"partial,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Language   string   `json:"language,omitempty"`
}

// Final reports whether this transcript update freezes the text.
func (e TranscriptEvent) Final() bool {
	if e.IsFinal != nil {
		return *e.IsFinal
	}
	if e.Partial != nil {
		return !*e.Partial
	}
	return false
}

// AudioEvent carries a chunk of synthesized audio
type AudioEvent struct {
	PayloadB64 string `json:"audio_b64"`
	SampleRate int    `json:"sample_rate"`
}

// DoneMetadata is the authoritative session identity attached to a
// completed turn. A brand-new session receives its identifiers here.
type DoneMetadata struct {
	SessionID         *int64  `json:"session_id,omitempty"`
	SessionExternalID *string `json:"session_external_id,omitempty"`
}

// DoneEvent terminates a turn's stream
type DoneEvent struct {
	Content         string       `json:"content,omitempty"`
	Transcript      string       `json:"transcript,omitempty"`
	Metadata        DoneMetadata `json:"metadata,omitempty"`
	AudioB64        string       `json:"audio_b64,omitempty"`
	AudioSampleRate int          `json:"audio_sample_rate,omitempty"`
	ToolEvents      []ToolEvent  `json:"tool_events,omitempty"`
	Logs            []LogEvent   `json:"logs,omitempty"`
}

// HeartbeatEvent keeps the connection alive and carries no payload
type HeartbeatEvent struct{}

func (TokenEvent) streamEvent()      {}
func (ToolEvent) streamEvent()       {}
func (LogEvent) streamEvent()        {}
func (TranscriptEvent) streamEvent() {}
func (AudioEvent) streamEvent()      {}
func (DoneEvent) streamEvent()       {}
func (HeartbeatEvent) streamEvent()  {}

package services

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conversa/cli/internal/domain"
	"github.com/conversa/cli/internal/logger"
)

// TurnStatus is the lifecycle state of one send-message turn
type TurnStatus string

const (
	TurnStreaming TurnStatus = "streaming"
	TurnCommitted TurnStatus = "committed"
	TurnDiscarded TurnStatus = "discarded"
	TurnCancelled TurnStatus = "cancelled"
	TurnErrored   TurnStatus = "errored"
)

// Turn is the handle for one in-flight send. It owns the transient
// accumulators (buffered text, tool runs, live transcript) and the
// session identity snapshot captured when the send began. A resolved
// turn is inert: events that race in afterwards are dropped.
type Turn struct {
	ID       string
	snapshot domain.SessionIdentity
	voice    bool

	buffered        strings.Builder
	toolRuns        []domain.ToolRunRecord
	transcript      string
	transcriptFinal bool
	authRetried     bool

	statusMu sync.RWMutex
	status   TurnStatus
}

// Status returns the turn's lifecycle state. Safe to read from the
// send loop while the manager resolves the turn.
func (t *Turn) Status() TurnStatus {
	t.statusMu.RLock()
	defer t.statusMu.RUnlock()
	return t.status
}

func (t *Turn) setStatus(s TurnStatus) {
	t.statusMu.Lock()
	t.status = s
	t.statusMu.Unlock()
}

// Snapshot returns the identity captured at turn start.
func (t *Turn) Snapshot() domain.SessionIdentity { return t.snapshot }

// TurnManager reconciles streamed responses against the currently
// active session. It owns the durable transcript and the durable
// session identity; all mutations of either happen through it. At most
// one turn is active at a time — preventing concurrent sends is the
// caller's job, and a second BeginTurn while one is streaming is a
// caller error.
type TurnManager struct {
	mu         sync.Mutex
	identity   domain.SessionIdentity
	entries    []domain.ConversationEntry
	active     *Turn
	statusLine string

	now func() time.Time
}

// NewTurnManager creates a manager for a fresh, unassigned session.
func NewTurnManager() *TurnManager {
	return &TurnManager{now: time.Now}
}

// BeginTurn snapshots the active identity, appends the optimistic user
// message and returns the handle correlating subsequent events. For
// voice turns the user message is a placeholder until the transcript
// finalizes.
func (m *TurnManager) BeginTurn(outgoingText string, voice bool) (*Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, domain.ErrTurnActive
	}

	t := &Turn{
		ID:       uuid.NewString(),
		snapshot: m.identity,
		voice:    voice,
		status:   TurnStreaming,
	}

	entry := domain.ConversationEntry{
		Message: domain.Message{Role: domain.RoleUser, Content: outgoingText},
		Time:    m.now(),
	}
	if voice {
		entry.Placeholder = true
	}
	m.entries = append(m.entries, entry)
	m.active = t

	logger.Debug("turn started",
		"turn_id", t.ID,
		"voice", voice,
		"session", t.snapshot.RequestID())
	return t, nil
}

// Apply dispatches one decoded stream event onto the turn's
// accumulators. Events for a turn that is no longer streaming are
// ignored, which covers anything buffered in flight when the turn was
// cancelled or resolved.
func (m *TurnManager) Apply(t *Turn, ev domain.StreamEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.turnLive(t) {
		return
	}

	switch e := ev.(type) {
	case domain.TokenEvent:
		t.buffered.WriteString(e.Text)
	case domain.ToolEvent:
		t.toolRuns = domain.MergeToolRun(t.toolRuns, e, m.now())
	case domain.LogEvent:
		m.statusLine = e.Message
	case domain.TranscriptEvent:
		if e.Text != "" {
			t.transcript = e.Text
		}
		if e.Final() {
			t.transcriptFinal = true
		}
	case domain.DoneEvent:
		m.applyDone(t, e)
	case domain.AudioEvent, domain.HeartbeatEvent:
		// carried for the caller's benefit, no turn state
	}
}

// applyDone is the correctness-critical step: the durable transcript is
// mutated only when the identity snapshot still matches the session the
// user is looking at. A response must never be attributed to a session
// the user has navigated away from.
func (m *TurnManager) applyDone(t *Turn, done domain.DoneEvent) {
	defer m.clearTransient(t)

	if !domain.IdentityMatches(t.snapshot, m.identity) {
		// stale turn: user switched conversations mid-stream.
		// Silent by design, not an error.
		t.setStatus(TurnDiscarded)
		logger.Debug("discarding stale turn",
			"turn_id", t.ID,
			"snapshot", t.snapshot.RequestID(),
			"current", m.identity.RequestID())
		return
	}

	finalText := done.Content
	if finalText == "" {
		finalText = t.buffered.String()
	}

	if t.voice {
		transcript := done.Transcript
		if transcript == "" {
			transcript = t.transcript
		}
		m.replacePlaceholder(transcript)
	}

	m.entries = append(m.entries, domain.ConversationEntry{
		Message: domain.Message{Role: domain.RoleAssistant, Content: finalText},
		Time:    m.now(),
	})

	m.identity = m.identity.Merge(done.Metadata)
	t.setStatus(TurnCommitted)

	logger.Debug("turn committed",
		"turn_id", t.ID,
		"session", m.identity.RequestID(),
		"tool_runs", len(t.toolRuns))
}

// Fail resolves the turn as a final failure: transient state is
// cleared and the optimistically added user message is rolled back.
func (m *TurnManager) Fail(t *Turn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.turnLive(t) {
		return
	}

	m.rollbackOptimistic()
	t.setStatus(TurnErrored)
	m.clearTransient(t)

	logger.Debug("turn failed", "turn_id", t.ID, "error", err)
}

// PrepareRetry rewinds the turn for the single allowed resend after
// re-authentication. It reports false once the retry budget is spent.
func (m *TurnManager) PrepareRetry(t *Turn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.authRetried || t.Status() != TurnStreaming {
		return false
	}

	t.authRetried = true
	t.buffered.Reset()
	t.toolRuns = nil
	t.transcript = ""
	t.transcriptFinal = false
	m.statusLine = ""
	return true
}

// Cancel resolves the turn without an error. Transient state clears
// immediately and the handle becomes inert, so chunks still in flight
// produce no further effects.
func (m *TurnManager) Cancel(t *Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.turnLive(t) {
		return
	}

	t.setStatus(TurnCancelled)
	m.clearTransient(t)

	logger.Debug("turn cancelled", "turn_id", t.ID)
}

// SwitchSession replaces the active session identity and transcript,
// typically when the user opens another conversation. Any in-flight
// turn keeps streaming; its snapshot no longer matches, so its result
// will be discarded at completion.
func (m *TurnManager) SwitchSession(identity domain.SessionIdentity, entries []domain.ConversationEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = identity
	m.entries = append([]domain.ConversationEntry(nil), entries...)
	m.statusLine = ""
}

// NewSession resets to a fresh, unassigned conversation.
func (m *TurnManager) NewSession() {
	m.SwitchSession(domain.SessionIdentity{}, nil)
}

// Identity returns the durable session identity.
func (m *TurnManager) Identity() domain.SessionIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Entries returns a copy of the durable transcript.
func (m *TurnManager) Entries() []domain.ConversationEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ConversationEntry(nil), m.entries...)
}

// Messages returns the transcript in wire shape for the next request,
// excluding hidden entries and unresolved placeholders.
func (m *TurnManager) Messages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := make([]domain.Message, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Hidden || e.Placeholder {
			continue
		}
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// StreamingText returns the live buffered text of the active turn.
func (m *TurnManager) StreamingText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.buffered.String()
}

// ToolRuns returns the live tool-run records of the active turn.
func (m *TurnManager) ToolRuns() []domain.ToolRunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return append([]domain.ToolRunRecord(nil), m.active.toolRuns...)
}

// StatusLine returns the ephemeral progress line, empty when idle.
func (m *TurnManager) StatusLine() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLine
}

func (m *TurnManager) turnLive(t *Turn) bool {
	return t != nil && t == m.active && t.Status() == TurnStreaming
}

// clearTransient drops the streaming indicator state. Runs on every
// terminal outcome, commit or not.
func (m *TurnManager) clearTransient(t *Turn) {
	m.statusLine = ""
	if m.active == t {
		m.active = nil
	}
}

// replacePlaceholder swaps the pending voice placeholder for the
// finalized transcript text.
func (m *TurnManager) replacePlaceholder(transcript string) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Placeholder {
			m.entries[i].Message.Content = transcript
			m.entries[i].Placeholder = false
			return
		}
	}
}

// rollbackOptimistic removes the most recent user entry, which is the
// optimistic message added at BeginTurn.
func (m *TurnManager) rollbackOptimistic() {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Message.Role == domain.RoleUser {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

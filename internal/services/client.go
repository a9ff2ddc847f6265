package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conversa/cli/internal/domain"
	"github.com/conversa/cli/internal/infra/storage"
	"github.com/conversa/cli/internal/logger"
)

// EventSink receives chat events for live rendering. It runs on the
// send loop; implementations must not block.
type EventSink func(domain.ChatEvent)

// ChatClient drives whole turns: it begins a turn on the TurnManager,
// streams the response through the chat service, applies events and
// resolves the turn. It owns the bounded auth retry and mirrors
// committed sessions to local storage.
type ChatClient struct {
	turns *TurnManager
	chat  *StreamingChatService
	auth  Authenticator
	store storage.SessionStorage
	sink  EventSink

	enableTools bool
	expectAudio bool

	mu         sync.Mutex
	activeTurn *Turn
	localKey   string
	createdAt  time.Time
}

// ChatClientOptions configures a ChatClient.
type ChatClientOptions struct {
	EnableTools bool
	ExpectAudio bool
	Store       storage.SessionStorage
	Sink        EventSink
}

// NewChatClient creates a client bound to a fresh session.
func NewChatClient(chat *StreamingChatService, auth Authenticator, opts ChatClientOptions) *ChatClient {
	return &ChatClient{
		turns:       NewTurnManager(),
		chat:        chat,
		auth:        auth,
		store:       opts.Store,
		sink:        opts.Sink,
		enableTools: opts.EnableTools,
		expectAudio: opts.ExpectAudio,
		localKey:    uuid.NewString(),
		createdAt:   time.Now(),
	}
}

// Turns exposes the reconciler for read access to live state.
func (c *ChatClient) Turns() *TurnManager { return c.turns }

// Send runs one text turn to completion. The returned error is the
// final user-visible failure; nil covers commit, cancellation and the
// silent stale-turn discard.
func (c *ChatClient) Send(ctx context.Context, text string) error {
	return c.send(ctx, text, "", false)
}

// SendVoice runs one voice turn from base64-encoded audio. The user
// message starts as a placeholder and is replaced by the finalized
// transcript on commit.
func (c *ChatClient) SendVoice(ctx context.Context, audioB64 string) error {
	return c.send(ctx, "Transcribing…", audioB64, true)
}

func (c *ChatClient) send(ctx context.Context, text, audioB64 string, voice bool) error {
	turn, err := c.turns.BeginTurn(text, voice)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.activeTurn = turn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.activeTurn == turn {
			c.activeTurn = nil
		}
		c.mu.Unlock()
	}()

	err = c.runTurn(ctx, turn, audioB64, voice)

	if err != nil && domain.IsAuthError(err) && c.turns.PrepareRetry(turn) {
		logger.Debug("authentication rejected, re-authenticating once", "turn_id", turn.ID)
		if rerr := c.auth.Reauthenticate(ctx); rerr != nil {
			c.turns.Fail(turn, rerr)
			return fmt.Errorf("session expired, please retry manually: %w", rerr)
		}
		err = c.runTurn(ctx, turn, audioB64, voice)
		if err != nil && domain.IsAuthError(err) {
			c.turns.Fail(turn, err)
			return fmt.Errorf("session expired, please retry manually")
		}
	}

	if err != nil {
		c.turns.Fail(turn, err)
		return err
	}

	if turn.Status() == TurnCommitted {
		c.persist(ctx)
	}
	return nil
}

// runTurn performs one network attempt for the turn and applies its
// events in arrival order.
func (c *ChatClient) runTurn(ctx context.Context, turn *Turn, audioB64 string, voice bool) error {
	req := domain.ChatRequest{
		Messages:    c.turns.Messages(),
		SessionID:   c.turns.Identity().RequestID(),
		EnableTools: c.enableTools,
		ExpectAudio: c.expectAudio || voice,
		AudioB64:    audioB64,
	}

	events, err := c.chat.SendMessage(ctx, turn.ID, req)
	if err != nil {
		return err
	}

	var turnErr error
	for ev := range events {
		if c.sink != nil && turn.Status() == TurnStreaming {
			c.sink(ev)
		}
		switch e := ev.(type) {
		case domain.ChatStreamEvent:
			c.turns.Apply(turn, e.Event)
		case domain.ChatErrorEvent:
			turnErr = e.Err
		}
	}

	// a turn still streaming after its channel closed never saw a
	// completion event; the stream ended early and the turn must fail
	// so the optimistic message rolls back and the manager is released
	if turnErr == nil && turn.Status() == TurnStreaming {
		turnErr = &domain.TransportError{Err: fmt.Errorf("stream ended before the turn completed")}
	}
	return turnErr
}

// Cancel aborts the in-flight turn, if any. It raises no error and the
// turn handle becomes inert immediately.
func (c *ChatClient) Cancel() {
	c.mu.Lock()
	turn := c.activeTurn
	c.mu.Unlock()

	if turn == nil {
		return
	}

	_ = c.chat.CancelRequest(turn.ID)
	c.turns.Cancel(turn)
}

// NewSession resets to a fresh, unassigned conversation.
func (c *ChatClient) NewSession() {
	c.turns.NewSession()
	c.mu.Lock()
	c.localKey = uuid.NewString()
	c.createdAt = time.Now()
	c.mu.Unlock()
}

// ResumeSession loads a cached session from local storage and makes it
// the active conversation.
func (c *ChatClient) ResumeSession(ctx context.Context, key string) error {
	if c.store == nil {
		return fmt.Errorf("no session storage configured")
	}

	entries, metadata, err := c.store.LoadSession(ctx, key)
	if err != nil {
		return err
	}

	c.turns.SwitchSession(metadata.Identity(), entries)
	c.mu.Lock()
	c.localKey = key
	c.createdAt = metadata.CreatedAt
	c.mu.Unlock()
	return nil
}

// persist mirrors the committed transcript to local storage. Failures
// are logged, never surfaced: the backend remains the durable record.
func (c *ChatClient) persist(ctx context.Context) {
	if c.store == nil {
		return
	}

	entries := c.turns.Entries()
	identity := c.turns.Identity()

	c.mu.Lock()
	key := c.localKey
	createdAt := c.createdAt
	c.mu.Unlock()

	title := "New Conversation"
	for _, e := range entries {
		if e.Message.Role == domain.RoleUser {
			title = domain.TitleFromContent(e.Message.Content)
			break
		}
	}

	metadata := storage.SessionMetadata{
		Key:          key,
		Title:        title,
		SessionID:    identity.ID,
		ExternalID:   identity.ExternalID,
		CreatedAt:    createdAt,
		UpdatedAt:    time.Now(),
		MessageCount: len(entries),
	}

	if err := c.store.SaveSession(ctx, key, entries, metadata); err != nil {
		logger.Warn("failed to mirror session to local storage", "key", key, "error", err)
	}
}

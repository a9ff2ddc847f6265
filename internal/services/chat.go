package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/conversa/cli/internal/domain"
	"github.com/conversa/cli/internal/logger"
	"github.com/conversa/cli/internal/sse"
)

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token() string
}

// StreamingChatService performs one HTTP POST per turn against the
// backend chat endpoint and decodes the SSE response into ChatEvents.
type StreamingChatService struct {
	baseURL string
	tokens  TokenSource
	timeout time.Duration
	client  *RetryableHTTPClient

	activeRequests map[string]context.CancelFunc
	requestsMux    sync.RWMutex
}

// NewStreamingChatService creates a streaming chat service for the
// given backend base URL.
func NewStreamingChatService(baseURL string, tokens TokenSource, timeout time.Duration, retry RetryConfig) *StreamingChatService {
	return &StreamingChatService{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		tokens:         tokens,
		timeout:        timeout,
		client:         NewRetryableHTTPClient(timeout, retry),
		activeRequests: make(map[string]context.CancelFunc),
	}
}

// SendMessage starts one turn's request and returns its event channel.
// The channel carries a start event, the decoded stream events in
// arrival order, and at most one error event; it closes when the turn's
// stream ends. Cancellation via CancelRequest produces no error event.
func (s *StreamingChatService) SendMessage(ctx context.Context, turnID string, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	if len(req.Messages) == 0 && req.TextInput == "" && req.AudioB64 == "" {
		return nil, fmt.Errorf("no input provided")
	}
	req.Stream = true

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	timeoutCtx = logger.With(timeoutCtx, zap.String("turn_id", turnID))

	s.requestsMux.Lock()
	s.activeRequests[turnID] = cancel
	s.requestsMux.Unlock()

	events := make(chan domain.ChatEvent, 100)
	go s.processStreamingRequest(timeoutCtx, cancel, turnID, req, events)

	return events, nil
}

// CancelRequest aborts the transport for an in-flight turn. The abort
// itself is silent: no further events are delivered for the turn.
func (s *StreamingChatService) CancelRequest(turnID string) error {
	s.requestsMux.RLock()
	cancel, exists := s.activeRequests[turnID]
	s.requestsMux.RUnlock()

	if !exists {
		return fmt.Errorf("request %s not found or already completed", turnID)
	}

	cancel()
	return nil
}

func (s *StreamingChatService) processStreamingRequest(ctx context.Context, cancel context.CancelFunc, turnID string, req domain.ChatRequest, events chan<- domain.ChatEvent) {
	defer close(events)
	defer cancel()
	defer s.cleanupRequest(turnID)

	resp, err := s.openStream(ctx, req)
	if err != nil {
		s.sendError(ctx, events, turnID, err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	events <- domain.ChatStartEvent{BaseChatEvent: domain.BaseChatEvent{TurnID: turnID, Timestamp: time.Now()}}

	err = sse.DecodeStream(ctx, resp.Body, func(ev domain.StreamEvent) error {
		events <- domain.ChatStreamEvent{
			BaseChatEvent: domain.BaseChatEvent{TurnID: turnID, Timestamp: time.Now()},
			Event:         ev,
		}
		return nil
	})
	if err != nil {
		s.sendError(ctx, events, turnID, err)
	}
}

// openStream issues the POST and validates the response status before
// any streaming begins.
func (s *StreamingChatService) openStream(ctx context.Context, chatReq domain.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if token := s.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger.Debug("chat request",
		"url", req.URL.String(),
		"session_id", chatReq.SessionID,
		"messages", len(chatReq.Messages))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, &domain.TransportError{StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// sendError reports a transport failure exactly once. A caller-driven
// abort is not a failure and produces nothing.
func (s *StreamingChatService) sendError(ctx context.Context, events chan<- domain.ChatEvent, turnID string, err error) {
	if ctx.Err() == context.Canceled {
		return
	}
	if ctx.Err() == context.DeadlineExceeded {
		err = &domain.TransportError{Err: fmt.Errorf("request timed out after %s", s.timeout)}
	}
	events <- domain.ChatErrorEvent{
		BaseChatEvent: domain.BaseChatEvent{TurnID: turnID, Timestamp: time.Now()},
		Err:           err,
	}
}

func (s *StreamingChatService) cleanupRequest(turnID string) {
	s.requestsMux.Lock()
	delete(s.activeRequests, turnID)
	s.requestsMux.Unlock()
}

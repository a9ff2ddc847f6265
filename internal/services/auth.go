package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/conversa/cli/internal/domain"
	"github.com/conversa/cli/internal/logger"
)

// Authenticator is the external collaborator that restores credentials
// after the backend rejects them. Implementations must be safe for use
// from the send loop.
type Authenticator interface {
	TokenSource
	Reauthenticate(ctx context.Context) error
}

// HTTPAuthenticator exchanges an API key for a bearer token at the
// backend auth endpoint.
type HTTPAuthenticator struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPAuthenticator creates an authenticator for the given backend.
func NewHTTPAuthenticator(baseURL, apiKey string, timeout time.Duration) *HTTPAuthenticator {
	return &HTTPAuthenticator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Token returns the current bearer token, empty before the first
// successful authentication.
func (a *HTTPAuthenticator) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Reauthenticate exchanges the API key for a fresh bearer token.
func (a *HTTPAuthenticator) Reauthenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"api_key": a.apiKey})
	if err != nil {
		return fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return &domain.TransportError{StatusCode: resp.StatusCode}
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	if payload.Token == "" {
		return fmt.Errorf("auth response contained no token")
	}

	a.mu.Lock()
	a.token = payload.Token
	a.mu.Unlock()

	logger.Debug("re-authenticated against backend")
	return nil
}

// StaticTokenSource wraps a fixed token, for configurations where the
// API key itself is the bearer credential.
type StaticTokenSource string

func (s StaticTokenSource) Token() string { return string(s) }

// Reauthenticate on a static token can only report the failure; there
// is nothing to refresh.
func (s StaticTokenSource) Reauthenticate(ctx context.Context) error {
	return fmt.Errorf("static credentials cannot be refreshed")
}

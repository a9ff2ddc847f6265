package services

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/conversa/cli/internal/logger"
)

// RetryConfig contains retry logic settings for transient transport
// failures. This is separate from the single authentication retry,
// which the send loop owns.
type RetryConfig struct {
	Enabled           bool
	MaxAttempts       int
	InitialBackoffSec int
	MaxBackoffSec     int
	BackoffMultiplier int
}

// RetryableHTTPClient wraps http.Client with retry logic. The overall
// deadline comes from the request context, not the client, so a
// long-lived streaming response body is never cut off by a client
// timeout.
type RetryableHTTPClient struct {
	client *http.Client
	config RetryConfig
}

// NewRetryableHTTPClient creates a new retryable HTTP client. The
// timeout bounds the response headers only; body reads are governed by
// the request context.
func NewRetryableHTTPClient(headerTimeout time.Duration, config RetryConfig) *RetryableHTTPClient {
	transport := http.DefaultTransport
	if headerTimeout > 0 {
		transport = &http.Transport{ResponseHeaderTimeout: headerTimeout}
	}
	return &RetryableHTTPClient{
		client: &http.Client{Transport: transport},
		config: config,
	}
}

// Do executes an HTTP request, retrying transient failures with capped
// exponential backoff.
func (r *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if !r.config.Enabled {
		return r.client.Do(req)
	}

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		reqClone, err := r.cloneRequest(req)
		if err != nil {
			return nil, err
		}

		logger.Debug("HTTP request attempt",
			"attempt", attempt,
			"max_attempts", r.config.MaxAttempts,
			"url", req.URL.String(),
			"method", req.Method)

		resp, err := r.client.Do(reqClone)

		if err == nil {
			if !r.isRetryableStatusCode(resp.StatusCode) || attempt >= r.config.MaxAttempts {
				return resp, nil
			}
			_ = resp.Body.Close()
			logger.Debug("received retryable status code",
				"status_code", resp.StatusCode,
				"attempt", attempt)
		} else if !r.isRetryableError(err) {
			return nil, err
		} else {
			logger.Debug("retryable error encountered",
				"error", err.Error(),
				"attempt", attempt)
		}

		lastErr = err

		if attempt < r.config.MaxAttempts {
			backoff := r.calculateBackoff(attempt)
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(backoff) * time.Second):
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("max retry attempts (%d) exceeded, last error: %w", r.config.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("max retry attempts (%d) exceeded", r.config.MaxAttempts)
}

// cloneRequest copies the request with a rewound body so it can be
// reissued.
func (r *RetryableHTTPClient) cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

// isRetryableError determines if an error should trigger a retry
func (r *RetryableHTTPClient) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout awaiting response headers") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "EOF")
}

// isRetryableStatusCode determines if an HTTP status code should trigger a retry
func (r *RetryableHTTPClient) isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// calculateBackoff calculates the backoff delay for a given attempt
func (r *RetryableHTTPClient) calculateBackoff(attempt int) int {
	backoff := r.config.InitialBackoffSec
	for i := 1; i < attempt; i++ {
		backoff *= r.config.BackoffMultiplier
	}
	if backoff > r.config.MaxBackoffSec {
		backoff = r.config.MaxBackoffSec
	}
	return backoff
}

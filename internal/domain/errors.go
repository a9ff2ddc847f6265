package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTurnActive is returned when a new turn is begun while another is
// still streaming. The caller must resolve the active turn first.
var ErrTurnActive = errors.New("a turn is already in flight")

// DecodeError reports a malformed payload for a single stream event.
// It never aborts the stream; earlier and later events are unaffected.
type DecodeError struct {
	EventName string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %q event: %v", e.EventName, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError reports a connection-level or HTTP-level failure that
// terminates the whole turn. StatusCode is zero for network failures.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthError reports whether err signals that the backend rejected the
// caller's credentials and re-authentication is required.
func IsAuthError(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode == http.StatusUnauthorized
	}
	return false
}

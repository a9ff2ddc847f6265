package sse

import (
	"encoding/json"
	"strings"

	"github.com/conversa/cli/internal/domain"
)

// ParseFrame converts a raw frame into a typed StreamEvent. The event
// name is case-normalized and matched by prefix against the known set,
// so "token_delta" parses the same as "token". An unknown name returns
// (nil, nil); a payload that fails to parse returns a DecodeError that
// affects only this frame.
func ParseFrame(f Frame) (domain.StreamEvent, error) {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	data := []byte(f.Data)

	switch {
	case strings.HasPrefix(name, "token"):
		var ev domain.TokenEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &domain.DecodeError{EventName: f.Name, Err: err}
		}
		return ev, nil

	case strings.HasPrefix(name, "tool"):
		var ev domain.ToolEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &domain.DecodeError{EventName: f.Name, Err: err}
		}
		return ev, nil

	case strings.HasPrefix(name, "log"):
		var ev domain.LogEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &domain.DecodeError{EventName: f.Name, Err: err}
		}
		return ev, nil

	case strings.HasPrefix(name, "transcript"):
		var ev domain.TranscriptEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &domain.DecodeError{EventName: f.Name, Err: err}
		}
		return ev, nil

	case strings.HasPrefix(name, "audio"):
		var ev domain.AudioEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &domain.DecodeError{EventName: f.Name, Err: err}
		}
		return ev, nil

	case strings.HasPrefix(name, "done"):
		var ev domain.DoneEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, &domain.DecodeError{EventName: f.Name, Err: err}
		}
		return ev, nil

	case strings.HasPrefix(name, "heartbeat"), strings.HasPrefix(name, "ping"):
		return domain.HeartbeatEvent{}, nil

	default:
		return nil, nil
	}
}

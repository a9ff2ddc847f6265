package domain

import "time"

// ChatEvent is delivered on the chat service's event channel while a turn
// is in flight.
type ChatEvent interface {
	GetTurnID() string
	GetTimestamp() time.Time
}

// BaseChatEvent provides common implementation for ChatEvent
type BaseChatEvent struct {
	TurnID    string
	Timestamp time.Time
}

func (e BaseChatEvent) GetTurnID() string       { return e.TurnID }
func (e BaseChatEvent) GetTimestamp() time.Time { return e.Timestamp }

// ChatStartEvent indicates the request was accepted and streaming began
type ChatStartEvent struct {
	BaseChatEvent
}

// ChatStreamEvent wraps one decoded StreamEvent from the wire
type ChatStreamEvent struct {
	BaseChatEvent
	Event StreamEvent
}

// ChatErrorEvent reports a transport-level failure for the turn
type ChatErrorEvent struct {
	BaseChatEvent
	Err error
}

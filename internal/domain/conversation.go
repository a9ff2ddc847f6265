package domain

import (
	"strings"
	"time"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one durable transcript message in the backend's wire shape
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationEntry wraps a message with client-side bookkeeping.
// Placeholder marks the optimistic "transcribing…" user message of a
// voice turn until the final transcript replaces its content.
type ConversationEntry struct {
	Message     Message   `json:"message"`
	Time        time.Time `json:"time"`
	Hidden      bool      `json:"hidden,omitempty"`
	Placeholder bool      `json:"placeholder,omitempty"`
}

// TitleFromContent derives a short session title from the first user
// message.
func TitleFromContent(content string) string {
	words := strings.Fields(strings.TrimSpace(content))
	if len(words) == 0 {
		return "New Conversation"
	}

	maxWords := 10
	if len(words) < maxWords {
		maxWords = len(words)
	}

	title := strings.Join(words[:maxWords], " ")
	if len(title) > 80 {
		title = title[:77] + "..."
	}
	return title
}

// ChatRequest is the outgoing body of one turn's POST to the chat
// endpoint.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	SessionID   string    `json:"session_id,omitempty"`
	EnableTools bool      `json:"enable_tools,omitempty"`
	ExpectAudio bool      `json:"expect_audio,omitempty"`
	TextInput   string    `json:"text_input,omitempty"`
	AudioB64    string    `json:"audio_b64,omitempty"`
	Stream      bool      `json:"stream"`
}

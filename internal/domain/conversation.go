package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a session history.
type Turn struct {
	Role    Role
	Content string
	At      time.Time
}

// Session is the bounded per-key conversation history used to build prompts.
type Session struct {
	Key   string
	Turns []Turn
}

// InboundMessage is one chat-platform message handed to the relay.
// MessageID doubles as the deduplication key; SessionKey partitions
// the conversation store.
type InboundMessage struct {
	SessionKey string
	MessageID  string
	ChatID     string
	Text       string
	ImagePaths []string
	FilePaths  []string
}

// RenderTarget is the handle for an in-progress streaming card on the
// remote surface. Update sequence numbers for one target are assigned by
// the relay and are strictly increasing.
type RenderTarget struct {
	CardID    string
	ElementID string
	MessageID string
}

// TranscriptRecord captures one persisted exchange entry.
type TranscriptRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	SessionKey string    `json:"session_key"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Action     string    `json:"action,omitempty"`
	ActionOK   bool      `json:"action_ok,omitempty"`
}

// ChatResult is the canonical response for the blocking (non-streaming)
// chat path.
type ChatResult struct {
	Response     string
	SessionKey   string
	Action       *ActionRequest
	ActionResult string
}

// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and
// external adapters (infrastructure). The relay service depends only on these
// abstractions; concrete implementations (the claude CLI, the Feishu API,
// SQLite) live in the infrastructure layer.
package ports

import (
	"context"

	"github.com/doeshing/chatwork/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.chatwork/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ConversationStore holds the bounded per-session turn history.
// A single session is only mutated by the one relay invocation handling it;
// different sessions never interfere.
type ConversationStore interface {
	Get(sessionKey string) domain.Session
	Append(sessionKey string, role domain.Role, content string)
	Clear(sessionKey string)
}

// FragmentStream delivers incremental assistant output. Fragments arrive in
// order; once the channel is closed, Err reports the terminal stream error,
// if any.
type FragmentStream interface {
	Fragments() <-chan string
	Err() error
}

// Assistant is the external AI process boundary. Chat blocks for the full
// reply; ChatStream yields it incrementally.
type Assistant interface {
	Chat(ctx context.Context, prompt string, sessionKey string) (string, error)
	ChatStream(ctx context.Context, prompt string, sessionKey string) (FragmentStream, error)
}

// ChatSurface renders an in-progress reply on the remote chat platform.
// Open must succeed before any Update; a false Update return means the remote
// rejected or timed out that call and the caller should move on, relying on a
// later call to converge. Sequence numbers are assigned by the caller,
// strictly increasing from 1 per target.
type ChatSurface interface {
	Open(ctx context.Context, replyTo string) (domain.RenderTarget, error)
	Update(ctx context.Context, target domain.RenderTarget, fullText string, seq int) bool
	Finalize(ctx context.Context, target domain.RenderTarget, fullText string, seq int) bool
	ReplyText(ctx context.Context, replyTo string, text string) error
}

// PolicyService evaluates filesystem paths and shell commands against the
// static allow/deny configuration.
type PolicyService interface {
	CheckPath(path string) domain.PolicyDecision
	CheckCommand(command string) domain.PolicyDecision
}

// ActionParser extracts at most one structured action from assistant output.
type ActionParser interface {
	Parse(responseText string) (domain.ActionRequest, bool)
}

// ActionRunner executes a parsed action under policy and reports the outcome.
// It never returns an error; failures are part of the report.
type ActionRunner interface {
	Execute(ctx context.Context, req domain.ActionRequest) domain.ExecutionReport
}

// TranscriptStore persists exchange records for later inspection.
type TranscriptStore interface {
	Save(rec domain.TranscriptRecord) error
	Records(limit int, search string) ([]domain.TranscriptRecord, error)
	Clear() error
}

// DedupRegistry remembers recently processed message ids so the relay sees
// each inbound message at most once within the dedup window.
type DedupRegistry interface {
	Seen(messageID string) bool
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, zap).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}

package domain

import "time"

// File permission constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and pacing constants
const (
	// DefaultActionTimeout bounds subprocess execution for action requests
	DefaultActionTimeout = 60 * time.Second
	// DefaultClaudeTimeout bounds one full claude CLI invocation
	DefaultClaudeTimeout = 300 * time.Second
	// DefaultUpdateInterval is the minimum gap between streaming card updates
	DefaultUpdateInterval = 800 * time.Millisecond
	// DefaultSurfaceCallTimeout bounds a single call to the chat surface
	DefaultSurfaceCallTimeout = 10 * time.Second
	// DedupWindow is how long a processed message id is remembered
	DedupWindow = 300 * time.Second
)

// Limit constants
const (
	// SessionTurnCap is the maximum number of turns kept per session
	SessionTurnCap = 20
	// DefaultHistoryLimit is the default number of transcript records to display
	DefaultHistoryLimit = 20
)

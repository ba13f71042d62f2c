// Package dedup remembers recently processed message ids so repeated webhook
// deliveries of the same message are dropped at the boundary.
package dedup

import (
	"sync"
	"time"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// Registry implements the DedupRegistry port with a mutex-guarded map and
// lazy expiry of entries older than the window.
type Registry struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewRegistry creates a Registry. A non-positive window uses the default.
func NewRegistry(window time.Duration) *Registry {
	if window <= 0 {
		window = domain.DedupWindow
	}
	return &Registry{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Seen reports whether messageID was already observed within the window and
// records it otherwise. Expired entries are swept on each call.
func (r *Registry) Seen(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, at := range r.seen {
		if now.Sub(at) > r.window {
			delete(r.seen, id)
		}
	}

	if _, ok := r.seen[messageID]; ok {
		return true
	}
	r.seen[messageID] = now
	return false
}

var _ ports.DedupRegistry = (*Registry)(nil)

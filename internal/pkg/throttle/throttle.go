// Package throttle paces a fast fragment stream down to a slower sink.
//
// The remote chat surface tolerates far fewer updates than the assistant
// produces fragments, so accumulated text is flushed at most once per
// interval, with one guaranteed final flush so the sink always converges to
// the complete text.
package throttle

import (
	"strings"
	"time"
)

// Throttler accumulates text fragments and decides when to flush.
type Throttler struct {
	interval time.Duration
	now      func() time.Time
}

// New creates a Throttler with the given minimum flush interval.
func New(interval time.Duration) *Throttler {
	return &Throttler{interval: interval, now: time.Now}
}

// Run consumes fragments until the channel closes. emit is invoked with the
// full accumulated buffer whenever at least the interval has elapsed since
// the previous flush, and exactly once more with final=true after the source
// is exhausted, regardless of timing. Each emission's text is a prefix
// extension of the previous one. Returns the complete accumulated text.
//
// A source that terminates abnormally closes its channel early; Run still
// performs the final flush with whatever accumulated, so partial output is
// delivered before the caller surfaces the stream error.
func (t *Throttler) Run(fragments <-chan string, emit func(fullText string, final bool)) string {
	var buf strings.Builder
	var last time.Time
	for frag := range fragments {
		if frag == "" {
			continue
		}
		buf.WriteString(frag)
		if now := t.now(); last.IsZero() || now.Sub(last) >= t.interval {
			emit(buf.String(), false)
			last = now
		}
	}
	full := buf.String()
	emit(full, true)
	return full
}

package transcript

import (
	"sync"
	"time"
)

// Debouncer suppresses a repeat of the same text inside a time window.
// Distinct texts always pass.
type Debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	last     time.Time
	lastText string
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, now: time.Now}
}

// Allow reports whether text may pass and, if so, records it as the latest.
func (d *Debouncer) Allow(text string) bool {
	if d == nil || d.window <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.repeatLocked(text) {
		return false
	}
	d.markLocked(text)
	return true
}

// Repeat reports whether text matches the last recorded text inside the
// window. It records nothing.
func (d *Debouncer) Repeat(text string) bool {
	if d == nil || d.window <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.repeatLocked(text)
}

// Mark records text as the latest accepted text.
func (d *Debouncer) Mark(text string) {
	if d == nil || d.window <= 0 {
		return
	}
	d.mu.Lock()
	d.markLocked(text)
	d.mu.Unlock()
}

func (d *Debouncer) repeatLocked(text string) bool {
	return !d.last.IsZero() && text == d.lastText && d.now().Sub(d.last) < d.window
}

func (d *Debouncer) markLocked(text string) {
	d.last = d.now()
	d.lastText = text
}

// Reset forgets the last accepted text.
func (d *Debouncer) Reset() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.last = time.Time{}
	d.lastText = ""
	d.mu.Unlock()
}

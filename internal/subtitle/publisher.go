// Package subtitle holds the latest transcription result and turns it into
// timed cues for renderers.
package subtitle

import (
	"sync"
	"time"
)

// Result is the most recent published text and when it was published
type Result struct {
	Text      string
	UpdatedAt time.Time
}

// Publisher is a single-slot store for the latest result. The inference
// worker is the only writer. Readers never observe a partially updated
// result.
type Publisher struct {
	mu     sync.RWMutex
	result Result
	set    bool
}

// NewPublisher returns an empty publisher
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish replaces the slot
func (p *Publisher) Publish(text string, ts time.Time) {
	p.mu.Lock()
	p.result = Result{Text: text, UpdatedAt: ts}
	p.set = true
	p.mu.Unlock()
}

// Read returns the slot, or false when nothing was published since the
// last Clear.
func (p *Publisher) Read() (Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result, p.set
}

// ReadIfFresh returns the text when it was published no more than threshold
// before now.
func (p *Publisher) ReadIfFresh(now time.Time, threshold time.Duration) (string, bool) {
	r, ok := p.Read()
	if !ok || now.Sub(r.UpdatedAt) > threshold {
		return "", false
	}
	return r.Text, true
}

// Clear empties the slot
func (p *Publisher) Clear() {
	p.mu.Lock()
	p.result = Result{}
	p.set = false
	p.mu.Unlock()
}

package testfixtures

import "sync"

// IDSequence produces deterministic numeric identifiers for tests. Separate
// sequences keep spaces, units and reservations from colliding.
type IDSequence struct {
	mu      sync.Mutex
	counter int64
}

// NewIDSequence constructs a sequence starting after the given value.
func NewIDSequence(start int64) *IDSequence {
	return &IDSequence{counter: start}
}

// Next returns the next identifier in the sequence.
func (g *IDSequence) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.counter
}

// Reset overrides the internal counter, enabling deterministic resets.
func (g *IDSequence) Reset(counter int64) {
	g.mu.Lock()
	g.counter = counter
	g.mu.Unlock()
}

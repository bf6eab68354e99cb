package testutil

import (
	"fmt"
	"sync"
)

// SequentialRequestIDs hands out request ids "req-1", "req-2", ... so log
// and outcome assertions do not depend on UUIDv7 timestamps.
// It satisfies engine.RequestIDGenerator.
type SequentialRequestIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRequestIDs creates a generator. An empty prefix means "req".
func NewSequentialRequestIDs(prefix string) *SequentialRequestIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &SequentialRequestIDs{prefix: prefix}
}

// Generate returns the next request id.
func (g *SequentialRequestIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

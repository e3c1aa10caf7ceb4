package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator generates predictable, unique event ids.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario produces byte-identical event logs.
//
// Thread-safety: SequentialIDGenerator is safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator returning "<prefix>-000001",
// "<prefix>-000002", and so on. If prefix is empty, "test-event" is used.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "test-event"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements recorder.IDGenerator interface.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}

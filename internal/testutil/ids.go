package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialIDs generates compilation ids "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario compiled with a fresh SequentialIDs produces the same ids.
//
// Thread-safety: safe for concurrent use. Under concurrency the ids stay
// unique but their assignment order follows the scheduler.
type SequentialIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDs creates a generator. An empty prefix means "q".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "q"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.IDGenerator.
func (g *SequentialIDs) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.n.Add(1))
}

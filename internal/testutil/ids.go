package testutil

import (
	"fmt"
	"sync/atomic"
)

// Sequence generates predictable IDs: prefix-1, prefix-2, ...
//
// Unlike engine.FixedGenerator, which panics once its list is exhausted,
// Sequence never runs out. Use it where the number of generated IDs is not
// known up front, such as scenario replays. Implements engine.IDGenerator.
//
// Thread-safety: Sequence is safe for concurrent use.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence creates a generator. An empty prefix uses "id".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "id"
	}
	return &Sequence{prefix: prefix}
}

// Generate returns the next ID.
func (s *Sequence) Generate() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}

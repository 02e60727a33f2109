package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_Generate(t *testing.T) {
	seq := NewSequence("adj")

	assert.Equal(t, "adj-1", seq.Generate())
	assert.Equal(t, "adj-2", seq.Generate())
	assert.Equal(t, "adj-3", seq.Generate())
}

func TestSequence_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "id-1", NewSequence("").Generate())
}

func TestSequence_ThreadSafe(t *testing.T) {
	seq := NewSequence("x")

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := seq.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}

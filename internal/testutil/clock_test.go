package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineClock_Sequence(t *testing.T) {
	c := NewLineClock()
	assert.Equal(t, uint64(0), c.Current())
	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Next())
	assert.Equal(t, uint64(2), c.Current())
}

func TestLineClock_Jump(t *testing.T) {
	c := NewLineClock()
	c.Next() // 1

	c.Jump(5)
	assert.Equal(t, uint64(5), c.Next())

	// Backwards jumps are ignored
	c.Jump(3)
	assert.Equal(t, uint64(6), c.Next())

	// Jumping to the next line is a no-op
	c.Jump(7)
	assert.Equal(t, uint64(7), c.Next())
}

func TestLineClock_ThreadSafe(t *testing.T) {
	c := NewLineClock()
	const goroutines = 50
	const calls = 100

	var wg sync.WaitGroup
	lines := make(chan uint64, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				lines <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(lines)

	seen := make(map[uint64]bool)
	for l := range lines {
		assert.False(t, seen[l], "line %d handed out twice", l)
		seen[l] = true
	}
	assert.Len(t, seen, goroutines*calls)
}

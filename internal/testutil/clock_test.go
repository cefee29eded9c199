package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HGData/basex/internal/expr"
)

var _ expr.Sequencer = (*TraceClock)(nil)

func TestTraceClock_Stamps(t *testing.T) {
	clock := NewTraceClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())
}

func TestTraceClock_ResetRepeatsStamps(t *testing.T) {
	clock := NewTraceClock()
	first := []int64{clock.Next(), clock.Next(), clock.Next()}

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	second := []int64{clock.Next(), clock.Next(), clock.Next()}
	assert.Equal(t, first, second)
}

func TestTraceClock_Concurrent(t *testing.T) {
	clock := NewTraceClock()

	const goroutines, perG = 8, 100
	seen := make(chan int64, goroutines*perG)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perG {
				seen <- clock.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for s := range seen {
		assert.False(t, unique[s], "stamp %d handed out twice", s)
		unique[s] = true
	}
	assert.Len(t, unique, goroutines*perG)
	assert.Equal(t, int64(goroutines*perG), clock.Current())
}

package inference

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackResponder_Cyclic(t *testing.T) {
	list := []string{"one", "two", "three"}
	f, err := NewFallbackResponder(list)
	require.NoError(t, err)

	for i := 0; i < 3*len(list); i++ {
		assert.Equal(t, list[i%len(list)], f.Next(), "call %d", i)
	}
}

func TestFallbackResponder_NoRepeatWithinCycle(t *testing.T) {
	f, err := NewFallbackResponder(DefaultFallbackResponses)
	require.NoError(t, err)

	seen := map[string]bool{}
	for range DefaultFallbackResponses {
		text := f.Next()
		assert.False(t, seen[text], "repeated %q within one cycle", text)
		seen[text] = true
	}
}

func TestFallbackResponder_Empty(t *testing.T) {
	_, err := NewFallbackResponder(nil)
	assert.Error(t, err)
}

func TestFallbackResponder_CopiesInput(t *testing.T) {
	list := []string{"a", "b"}
	f, err := NewFallbackResponder(list)
	require.NoError(t, err)

	list[0] = "mutated"
	assert.Equal(t, "a", f.Next())
}

func TestFallbackResponder_Concurrent(t *testing.T) {
	list := []string{"a", "b", "c", "d"}
	f, err := NewFallbackResponder(list)
	require.NoError(t, err)

	const perList = 25
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for i := 0; i < perList*len(list); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := f.Next()
			mu.Lock()
			counts[text]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, s := range list {
		assert.Equal(t, perList, counts[s], "response %q", s)
	}
}

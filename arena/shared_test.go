package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedConcurrentUse(t *testing.T) {
	s := NewShared(WithInlineSize(128), WithBlockIncrement(256))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			var mine []Allocation
			for i := 0; i < 100; i++ {
				mine = append(mine, s.Allocate(8+(seed+i)%24))
			}
			for _, alloc := range mine {
				s.Release(alloc)
			}
		}(g)
	}
	wg.Wait()

	require.True(t, s.IsEmpty())
	require.Equal(t, 0, s.Stats().Live)
}

func TestSharedIsAllocator(t *testing.T) {
	var al Allocator = NewShared()
	words, alloc := Slice[uint16](al, 3)
	require.Len(t, words, 3)
	al.Release(alloc)
}

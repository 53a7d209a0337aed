package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type slabItem struct {
	name string
	next *slabItem
}

func TestSlabPointersStable(t *testing.T) {
	s := NewSlab[slabItem](4)
	var ptrs []*slabItem
	for i := 0; i < 10; i++ {
		p := s.New()
		p.name = "item"
		ptrs = append(ptrs, p)
	}
	require.Equal(t, 10, s.Len())
	for i := 1; i < len(ptrs); i++ {
		require.NotSame(t, ptrs[i-1], ptrs[i])
		require.Equal(t, "item", ptrs[i].name)
	}
}

func TestSlabReset(t *testing.T) {
	s := NewSlab[slabItem](0)
	p := s.New()
	p.name = "stale"
	p.next = p

	s.Reset()
	require.Equal(t, 0, s.Len())

	q := s.New()
	require.Same(t, p, q)
	require.Empty(t, q.name)
	require.Nil(t, q.next)
}

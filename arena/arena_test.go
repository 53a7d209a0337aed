package arena

import (
	"errors"
	"math/rand/v2"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func TestArenaAllocateAlignment(t *testing.T) {
	a := New()
	for _, size := range []int{1, 3, 7, 16, 17, 100} {
		alloc := a.Allocate(size)
		require.Len(t, alloc.Bytes, size)
		require.Zero(t, addr(alloc.Bytes)%maxAlignment, "size %d misaligned", size)
	}

	c := New(WithConstrainedAlignment())
	require.Equal(t, constrainedAlignment, c.Alignment())
	for _, size := range []int{1, 5, 9} {
		alloc := c.Allocate(size)
		require.Zero(t, addr(alloc.Bytes)%constrainedAlignment)
	}
}

func TestArenaAllocateZeroed(t *testing.T) {
	a := New()
	first := a.Allocate(32)
	for i := range first.Bytes {
		first.Bytes[i] = 0xFF
	}
	a.Release(first)

	second := a.Allocate(32)
	for i, b := range second.Bytes {
		require.Zerof(t, b, "byte %d not zeroed", i)
	}
}

func TestArenaIsEmpty(t *testing.T) {
	a := New()
	require.True(t, a.IsEmpty())

	x := a.Allocate(8)
	require.False(t, a.IsEmpty())

	a.Release(x)
	require.True(t, a.IsEmpty())
}

func TestArenaRandomReleaseOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	a := New(WithInlineSize(256), WithBlockIncrement(512))

	for round := 0; round < 20; round++ {
		var live []Allocation
		for i := 0; i < 200; i++ {
			if len(live) > 0 && rng.IntN(3) == 0 {
				j := rng.IntN(len(live))
				a.Release(live[j])
				live = append(live[:j], live[j+1:]...)
			} else {
				live = append(live, a.Allocate(1+rng.IntN(300)))
			}
			require.Equal(t, len(live), a.Live())
			require.Equal(t, len(live) == 0, a.IsEmpty())
		}

		rng.Shuffle(len(live), func(i, j int) { live[i], live[j] = live[j], live[i] })
		for i, alloc := range live {
			require.False(t, a.IsEmpty(), "round %d: empty with %d live", round, len(live)-i)
			a.Release(alloc)
		}
		require.True(t, a.IsEmpty())
		require.Equal(t, 1, a.Stats().ActiveBlocks)
	}
}

func TestArenaReleaseReturnsBlockToFreePool(t *testing.T) {
	a := New(WithInlineSize(64), WithBlockIncrement(256))

	inHead := a.Allocate(40)
	spill := a.Allocate(100)

	s := a.Stats()
	require.Equal(t, 2, s.ActiveBlocks)
	require.Equal(t, 1, s.BlocksCreated)
	require.Equal(t, 0, s.FreeBlocks)

	a.Release(spill)
	s = a.Stats()
	require.Equal(t, 1, s.ActiveBlocks)
	require.Equal(t, 1, s.FreeBlocks)

	reused := a.Allocate(90)
	s = a.Stats()
	require.Equal(t, 1, s.BlocksCreated, "free block should be reused")
	require.Equal(t, 0, s.FreeBlocks)
	require.Equal(t, addr(spill.Bytes), addr(reused.Bytes))

	a.Release(reused)
	a.Release(inHead)
	require.True(t, a.IsEmpty())
}

func TestArenaLIFORewind(t *testing.T) {
	a := New()
	_ = a.Allocate(16)
	b := a.Allocate(16)
	a.Release(b)
	c := a.Allocate(16)
	require.Equal(t, addr(b.Bytes), addr(c.Bytes))
}

func TestArenaResetScratchSpace(t *testing.T) {
	a := New(WithInlineSize(32), WithBlockIncrement(128))
	keep := a.Allocate(16)
	spill := a.Allocate(64)
	a.Release(spill)
	require.Equal(t, 1, a.Stats().FreeBlocks)

	a.ResetScratchSpace()
	s := a.Stats()
	require.Equal(t, 0, s.FreeBlocks)
	require.Equal(t, 1, s.ActiveBlocks)
	require.Equal(t, 1, s.Live)

	a.Release(keep)
	require.True(t, a.IsEmpty())
}

func TestArenaReset(t *testing.T) {
	a := New(WithInlineSize(32), WithBlockIncrement(64))
	for i := 0; i < 10; i++ {
		a.Allocate(48)
	}
	require.Greater(t, a.Stats().ActiveBlocks, 1)

	a.Reset()
	require.True(t, a.IsEmpty())
	require.Equal(t, 0, a.Live())
	require.Greater(t, a.Stats().FreeBlocks, 0)
}

func TestArenaCeilingPanics(t *testing.T) {
	a := New()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		require.True(t, errors.Is(err, ErrAllocationTooLarge))
	}()
	a.Allocate(MaxAllocationSize + 1)
}

func TestArenaDoubleReleasePanics(t *testing.T) {
	a := New()
	x := a.Allocate(8)
	a.Release(x)
	defer func() {
		r := recover()
		require.NotNil(t, r)
		require.True(t, errors.Is(r.(error), ErrUnknownAllocation))
	}()
	a.Release(x)
}

func TestArenaZeroSize(t *testing.T) {
	a := New()
	x := a.Allocate(0)
	require.Empty(t, x.Bytes)
	require.False(t, a.IsEmpty())
	a.Release(x)
	require.True(t, a.IsEmpty())
}

func TestNextBlockSize(t *testing.T) {
	tests := []struct {
		policy GrowthPolicy
		n      int
		want   int
	}{
		{GrowthFixed, 1, 100},
		{GrowthFixed, 5, 100},
		{GrowthLinear, 3, 300},
		{GrowthFibonacci, 1, 100},
		{GrowthFibonacci, 2, 100},
		{GrowthFibonacci, 5, 500},
		{GrowthExponential, 4, 800},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			require.Equal(t, tt.want, nextBlockSize(tt.policy, 100, tt.n, 1))
		})
	}
	require.Equal(t, 1024, nextBlockSize(GrowthFixed, 100, 1, 1010))
}

func TestSlice(t *testing.T) {
	a := New()
	words, alloc := Slice[uint32](a, 4)
	require.Len(t, words, 4)
	require.Len(t, alloc.Bytes, 16)

	words[1] = 0x01020304
	require.NotZero(t, alloc.Bytes[4]|alloc.Bytes[5]|alloc.Bytes[6]|alloc.Bytes[7])

	empty, alloc2 := Slice[float32](a, 0)
	require.Nil(t, empty)
	a.Release(alloc2)
	a.Release(alloc)
	require.True(t, a.IsEmpty())
}

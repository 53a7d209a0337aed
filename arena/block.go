package arena

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// block owns one contiguous byte range.
type block struct {
	buf       []byte
	base      uintptr
	cursor    int
	live      int
	permanent bool
}

func newBlock(size int, permanent bool) *block {
	buf := make([]byte, size)
	return &block{
		buf:       buf,
		base:      uintptr(unsafe.Pointer(unsafe.SliceData(buf))),
		permanent: permanent,
	}
}

// fit returns the aligned data offset for a size-byte allocation, or false
// when the block has no room.
func (b *block) fit(size, align int) (int, bool) {
	addr := b.base + uintptr(b.cursor)
	start := b.cursor + int(alignUp(addr, uintptr(align))-addr)
	if start+size > len(b.buf) {
		return 0, false
	}
	return start, true
}

// reset makes the whole block available again.
func (b *block) reset() {
	b.cursor = 0
	b.live = 0
}

func alignUp[T constraints.Integer](x, align T) T {
	return (x + align - 1) &^ (align - 1)
}

// nextBlockSize computes the size of the n-th growth block (n starts at 1)
// for the policy, never smaller than need.
func nextBlockSize(p GrowthPolicy, increment, n, need int) int {
	var size int
	switch p {
	case GrowthFixed:
		size = increment
	case GrowthLinear:
		size = increment * n
	case GrowthFibonacci:
		a, b := 1, 1
		for i := 1; i < n; i++ {
			a, b = b, a+b
		}
		size = increment * a
	case GrowthExponential:
		shift := min(n-1, 16)
		size = increment << shift
	default:
		size = increment
	}
	if size > MaxAllocationSize {
		size = MaxAllocationSize
	}
	if size < need {
		size = alignUp(need, maxAlignment)
	}
	return size
}

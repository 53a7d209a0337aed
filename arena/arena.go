package arena

import (
	"fmt"
	"slices"
	"unsafe"

	"honnef.co/go/safeish"

	"github.com/gogpu/gpucmd/internal/debug"
	"github.com/gogpu/gpucmd/internal/logging"
)

// Allocation is a byte range handed out by an Arena. The zero value is not
// a valid allocation.
type Allocation struct {
	ID    uint64
	Bytes []byte
}

// Allocator is the subset of Arena used by components that only carve and
// return memory. Both *Arena and *Shared implement it.
type Allocator interface {
	Allocate(size int) Allocation
	Release(a Allocation)
}

// header records the exact range consumed by one allocation.
type header struct {
	blk      *block
	start    int // cursor before alignment padding
	data     int
	end      int
	sentinel uint32
}

// Stats is a snapshot of arena bookkeeping.
type Stats struct {
	Live          int // live allocations
	ActiveBlocks  int // permanent block included
	FreeBlocks    int
	BlocksCreated int // growth blocks created over the arena lifetime
	BytesInUse    int
	Capacity      int
	Peak          int
}

// Arena is a growth-policy block allocator. See the package documentation.
type Arena struct {
	head    *block
	active  []*block
	free    []*block
	headers map[uint64]header
	nextID  uint64

	align      int
	inlineSize int
	increment  int
	policy     GrowthPolicy
	grown      int
	peak       int

	dbg *tracker
}

// New creates an Arena with its permanent block allocated.
func New(opts ...Option) *Arena {
	a := &Arena{
		headers:    make(map[uint64]header),
		align:      maxAlignment,
		inlineSize: DefaultInlineSize,
		increment:  DefaultBlockIncrement,
		policy:     GrowthFibonacci,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.head = newBlock(a.inlineSize, true)
	a.active = append(a.active, a.head)
	if debug.Enabled {
		a.dbg = newTracker()
	}
	return a
}

// Alignment returns the alignment guaranteed for every allocation.
func (a *Arena) Alignment() int { return a.align }

// Allocate returns size zeroed bytes aligned to Alignment. Requests larger
// than MaxAllocationSize panic with ErrAllocationTooLarge.
func (a *Arena) Allocate(size int) Allocation {
	if size < 0 || size > MaxAllocationSize {
		panic(fmt.Errorf("%w: %d bytes", ErrAllocationTooLarge, size))
	}

	blk := a.active[len(a.active)-1]
	data, ok := blk.fit(size, a.align)
	if !ok {
		blk = a.acquireBlock(size)
		data, _ = blk.fit(size, a.align)
	}

	a.nextID++
	id := a.nextID
	h := header{blk: blk, start: blk.cursor, data: data, end: data + size}
	blk.cursor = h.end
	blk.live++

	b := blk.buf[h.data:h.end:h.end]
	clear(b)
	if a.dbg != nil {
		h.sentinel = a.dbg.track(id)
	}
	a.headers[id] = h

	if used := a.bytesInUse(); used > a.peak {
		a.peak = used
	}
	a.validate()
	return Allocation{ID: id, Bytes: b}
}

// Release returns an allocation to its block. When the block's live count
// reaches zero it is recycled: the permanent block is rewound, any other
// block moves to the free pool.
func (a *Arena) Release(alloc Allocation) {
	h, ok := a.headers[alloc.ID]
	if !ok {
		panic(fmt.Errorf("%w: id %d", ErrUnknownAllocation, alloc.ID))
	}
	delete(a.headers, alloc.ID)
	if a.dbg != nil {
		a.dbg.untrack(alloc.ID, h.sentinel)
		poison(h.blk.buf[h.data:h.end])
	}

	blk := h.blk
	if blk.cursor == h.end {
		blk.cursor = h.start
	}
	blk.live--
	debug.Assertf(blk.live >= 0, "block live count %d", blk.live)
	if blk.live == 0 {
		blk.cursor = 0
		if !blk.permanent {
			a.retire(blk)
		}
	}
	a.validate()
}

// IsEmpty reports whether only the permanent block remains and it holds no
// live allocation.
func (a *Arena) IsEmpty() bool {
	return len(a.active) == 1 && a.head.live == 0
}

// Live returns the number of live allocations.
func (a *Arena) Live() int { return len(a.headers) }

// ResetScratchSpace drops every block sitting in the free pool. The
// permanent block and blocks holding live allocations are kept.
func (a *Arena) ResetScratchSpace() {
	clear(a.free)
	a.free = a.free[:0]
}

// Reset releases every allocation at once, as at the end of a pass. Growth
// blocks go to the free pool. In debug builds outstanding allocations are
// logged as leaks.
func (a *Arena) Reset() {
	if a.dbg != nil {
		if leaked := a.dbg.leaked(); len(leaked) > 0 {
			logging.Logger().Warn("arena: reset with live allocations", "count", len(leaked), "ids", leaked)
		}
		a.dbg.clear()
	}
	clear(a.headers)
	for _, blk := range a.active[1:] {
		blk.reset()
		a.free = append(a.free, blk)
	}
	clear(a.active[1:])
	a.active = a.active[:1]
	a.head.reset()
	a.validate()
}

// LeakedIDs returns the ids of live allocations in allocation order. It is
// empty in release builds.
func (a *Arena) LeakedIDs() []uint64 {
	if a.dbg == nil {
		return nil
	}
	return a.dbg.leaked()
}

// Stats returns a snapshot of the arena bookkeeping.
func (a *Arena) Stats() Stats {
	s := Stats{
		Live:          len(a.headers),
		ActiveBlocks:  len(a.active),
		FreeBlocks:    len(a.free),
		BlocksCreated: a.grown,
		BytesInUse:    a.bytesInUse(),
		Peak:          a.peak,
	}
	for _, blk := range a.active {
		s.Capacity += len(blk.buf)
	}
	for _, blk := range a.free {
		s.Capacity += len(blk.buf)
	}
	return s
}

// acquireBlock appends a block able to hold size bytes, preferring the free
// pool over a fresh allocation.
func (a *Arena) acquireBlock(size int) *block {
	need := size + a.align
	for i, blk := range a.free {
		if len(blk.buf) >= need {
			a.free = slices.Delete(a.free, i, i+1)
			blk.reset()
			a.active = append(a.active, blk)
			return blk
		}
	}

	a.grown++
	blk := newBlock(nextBlockSize(a.policy, a.increment, a.grown, need), false)
	a.active = append(a.active, blk)
	logging.Logger().Debug("arena: new block", "size", len(blk.buf), "policy", a.policy, "blocks", a.grown)
	return blk
}

// retire moves an empty growth block from the active chain to the free pool.
func (a *Arena) retire(blk *block) {
	i := slices.Index(a.active, blk)
	debug.Assert(i > 0, "retired block not in active chain")
	if i > 0 {
		a.active = slices.Delete(a.active, i, i+1)
	}
	a.free = append(a.free, blk)
}

func (a *Arena) bytesInUse() int {
	n := 0
	for _, blk := range a.active {
		n += blk.cursor
	}
	return n
}

// validate cross-checks block metadata against the side table. Only runs
// in debug builds.
func (a *Arena) validate() {
	if !debug.Enabled {
		return
	}
	debug.Assert(len(a.active) > 0 && a.active[0] == a.head, "permanent block must head the chain")
	sum := 0
	for _, blk := range a.active {
		debug.Assertf(blk.live >= 0, "negative live count %d", blk.live)
		debug.Assertf(blk.cursor <= len(blk.buf), "cursor %d beyond block size %d", blk.cursor, len(blk.buf))
		debug.Assert(blk.permanent || blk.live > 0, "empty growth block left in active chain")
		sum += blk.live
	}
	for _, blk := range a.free {
		debug.Assert(blk.live == 0, "free block has live allocations")
	}
	debug.Assertf(sum == len(a.headers), "block live sum %d != %d tracked allocations", sum, len(a.headers))
	if a.dbg != nil {
		debug.Assertf(len(a.dbg.live) == len(a.headers), "leak set %d != %d tracked allocations", len(a.dbg.live), len(a.headers))
	}
}

// Slice allocates n elements of E from al. E must not contain Go pointers;
// the memory is invisible to the garbage collector.
func Slice[E any](al Allocator, n int) ([]E, Allocation) {
	var zero E
	alloc := al.Allocate(n * int(unsafe.Sizeof(zero)))
	if n == 0 {
		return nil, alloc
	}
	return safeish.SliceCast[[]E](alloc.Bytes), alloc
}

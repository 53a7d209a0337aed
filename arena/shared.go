package arena

import "sync"

// Shared is a lock-guarded Arena handle. Pass one Shared to every recording
// context that allocates small fixed-size metadata from a common pool; the
// lock lives inside the handle.
type Shared struct {
	mu sync.Mutex
	a  *Arena
}

// NewShared wraps a new Arena configured by opts.
func NewShared(opts ...Option) *Shared {
	return &Shared{a: New(opts...)}
}

// Allocate satisfies Allocator.
func (s *Shared) Allocate(size int) Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Allocate(size)
}

// Release satisfies Allocator.
func (s *Shared) Release(alloc Allocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Release(alloc)
}

// IsEmpty reports whether the underlying arena holds no live allocation.
func (s *Shared) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.IsEmpty()
}

// ResetScratchSpace drops the free pool of the underlying arena.
func (s *Shared) ResetScratchSpace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.ResetScratchSpace()
}

// Stats returns a snapshot of the underlying arena.
func (s *Shared) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Stats()
}

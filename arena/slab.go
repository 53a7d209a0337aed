package arena

// DefaultSlabChunk is the number of elements per slab chunk.
const DefaultSlabChunk = 64

// Slab is a typed, chunked allocator for values that hold Go pointers and
// therefore cannot live in Arena bytes. Pointers returned by New stay valid
// until Reset; chunks are never reallocated.
type Slab[T any] struct {
	chunks    [][]T
	chunkSize int
	n         int
}

// NewSlab creates a slab with the given chunk size (DefaultSlabChunk if <= 0).
func NewSlab[T any](chunkSize int) *Slab[T] {
	if chunkSize <= 0 {
		chunkSize = DefaultSlabChunk
	}
	return &Slab[T]{chunkSize: chunkSize}
}

// New returns a pointer to a zeroed T owned by the slab.
func (s *Slab[T]) New() *T {
	ci, i := s.n/s.chunkSize, s.n%s.chunkSize
	if ci == len(s.chunks) {
		s.chunks = append(s.chunks, make([]T, s.chunkSize))
	}
	s.n++
	return &s.chunks[ci][i]
}

// Len returns the number of values handed out since the last Reset.
func (s *Slab[T]) Len() int { return s.n }

// Reset zeroes every value handed out so far and makes the slab reusable.
// Pointers obtained before Reset must not be used afterwards.
func (s *Slab[T]) Reset() {
	for ci := range s.chunks {
		used := min(s.n-ci*s.chunkSize, s.chunkSize)
		if used <= 0 {
			break
		}
		clear(s.chunks[ci][:used])
	}
	s.n = 0
}

package arena

import (
	"slices"

	"github.com/gogpu/gpucmd/internal/debug"
)

const (
	poisonByte    = 0xDD
	sentinelMagic = 0xA110C8ED
)

// tracker is the debug-only companion of an Arena. It is nil in release
// builds.
type tracker struct {
	live map[uint64]uint32
}

func newTracker() *tracker {
	return &tracker{live: make(map[uint64]uint32)}
}

func (t *tracker) track(id uint64) uint32 {
	s := sentinelMagic ^ uint32(id)
	t.live[id] = s
	return s
}

func (t *tracker) untrack(id uint64, sentinel uint32) {
	s, ok := t.live[id]
	debug.Assertf(ok, "release of untracked allocation %d", id)
	debug.Assertf(s == sentinel, "allocation %d sentinel corrupted", id)
	delete(t.live, id)
}

func (t *tracker) leaked() []uint64 {
	ids := make([]uint64, 0, len(t.live))
	for id := range t.live {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *tracker) clear() { clear(t.live) }

func poison(b []byte) {
	for i := range b {
		b[i] = poisonByte
	}
}

//go:build gpucmd_debug

package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArenaDebugPoison(t *testing.T) {
	a := New()
	_ = a.Allocate(8)
	x := a.Allocate(16)
	stale := x.Bytes
	a.Release(x)
	for _, b := range stale {
		require.Equal(t, byte(poisonByte), b)
	}
}

func TestArenaDebugLeakedIDs(t *testing.T) {
	a := New()
	x := a.Allocate(8)
	y := a.Allocate(8)
	z := a.Allocate(8)
	a.Release(y)
	require.Equal(t, []uint64{x.ID, z.ID}, a.LeakedIDs())

	a.Reset()
	require.Empty(t, a.LeakedIDs())
}

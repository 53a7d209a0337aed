package program

import (
	"fmt"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/cache"
	"github.com/gogpu/gpucmd/internal/logging"
)

// DefaultCacheSize is the number of compiled programs kept by NewCache.
const DefaultCacheSize = 256

// Executable is a compiled program owned by the cache.
type Executable interface {
	// Release frees backend objects. It runs when the program is evicted.
	Release()
}

// BuildFunc compiles the program for info.
type BuildFunc func(info *Info) (Executable, error)

// Cache maps program keys to compiled programs. It is the only state that
// survives a flush and is safe for concurrent use.
type Cache struct {
	caps    *gpucore.Caps
	entries *cache.Cache[Key, Executable]
}

// CacheStats reports lookups and evictions.
type CacheStats = cache.Stats

// NewCache creates a cache holding at most size programs; 0 means
// DefaultCacheSize.
func NewCache(caps *gpucore.Caps, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		caps: caps,
		entries: cache.New[Key, Executable](size, func(_ Key, e Executable) {
			e.Release()
		}),
	}
}

// FindOrCreate returns the program for info, building it on a miss.
func (c *Cache) FindOrCreate(info *Info, build BuildFunc) (Executable, error) {
	key := info.Key(c.caps)
	e, hit, err := c.entries.GetOrCreate(key, func() (Executable, error) {
		return build(info)
	})
	if err != nil {
		return nil, fmt.Errorf("program: build %s: %w", info.Stage.Name(), err)
	}
	if !hit {
		logging.Logger().Info("program compiled", "stage", info.Stage.Name(),
			"processors", info.Pipeline.NumProcessors(), "programs", c.entries.Len())
	}
	return e, nil
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats { return c.entries.Stats() }

// Len returns the number of cached programs.
func (c *Cache) Len() int { return c.entries.Len() }

// Clear releases every cached program.
func (c *Cache) Clear() { c.entries.Clear() }

// Package cache provides the generic LRU cache behind the compiled-program
// cache.
//
//	c := cache.New[string, *Program](256, func(_ string, p *Program) { p.Release() })
//	p, hit, err := c.GetOrCreate(key, compile)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache

package cache

import (
	"errors"
	"sync"
	"testing"
)

func TestGetOrCreate(t *testing.T) {
	c := New[string, int](0, nil)
	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}

	v, hit, err := c.GetOrCreate("a", create)
	if err != nil || hit || v != 42 {
		t.Fatalf("GetOrCreate() = %d, %v, %v, want 42, false, nil", v, hit, err)
	}
	v, hit, err = c.GetOrCreate("a", create)
	if err != nil || !hit || v != 42 {
		t.Fatalf("GetOrCreate() = %d, %v, %v, want 42, true, nil", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.HitRate != 0.5 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestGetOrCreateError(t *testing.T) {
	c := New[string, int](0, nil)
	errBoom := errors.New("boom")
	_, _, err := c.GetOrCreate("a", func() (int, error) { return 0, errBoom })
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want %v", err, errBoom)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed create", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := New[string, int](2, func(k string, _ int) { evicted = append(evicted, k) })
	mk := func(v int) func() (int, error) { return func() (int, error) { return v, nil } }

	c.GetOrCreate("a", mk(1))
	c.GetOrCreate("b", mk(2))
	c.Get("a") // b is now oldest
	c.GetOrCreate("c", mk(3))

	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b still cached")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was evicted")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestClearAndDelete(t *testing.T) {
	n := 0
	c := New[int, int](0, func(int, int) { n++ })
	for i := 0; i < 5; i++ {
		c.GetOrCreate(i, func() (int, error) { return i, nil })
	}
	if !c.Delete(3) || c.Delete(3) {
		t.Error("Delete() should succeed once")
	}
	c.Clear()
	if n != 5 {
		t.Errorf("eviction callback ran %d times, want 5", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	c := New[int, int](16, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				k := i % 32
				v, _, err := c.GetOrCreate(k, func() (int, error) { return k * 2, nil })
				if err != nil || v != k*2 {
					t.Errorf("GetOrCreate(%d) = %d, %v", k, v, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if c.Len() > 16 {
		t.Errorf("Len() = %d exceeds limit", c.Len())
	}
}

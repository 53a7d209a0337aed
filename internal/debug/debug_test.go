package debug

import "testing"

func TestAssertPassing(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Assert(true) panicked: %v", r)
		}
	}()
	Assert(true, "never")
	Assertf(true, "never %d", 1)
}

func TestAssertFailing(t *testing.T) {
	defer func() {
		r := recover()
		if Enabled && r == nil {
			t.Error("Assert(false) should panic in debug builds")
		}
		if !Enabled && r != nil {
			t.Errorf("Assert(false) panicked in release build: %v", r)
		}
	}()
	Assert(false, "expected")
}

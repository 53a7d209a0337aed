package gpucore

import (
	"slices"
	"testing"
)

func TestKeyBuilderPacking(t *testing.T) {
	var b KeyBuilder
	b.AddBits(4, 0xA)
	b.AddBool(true)
	b.AddBits(3, 0x5)
	got := b.Words()
	want := []uint32{0xA | 1<<4 | 0x5<<5}
	if !slices.Equal(got, want) {
		t.Errorf("Words() = %#x, want %#x", got, want)
	}
}

func TestKeyBuilderSplitsWords(t *testing.T) {
	var b KeyBuilder
	b.AddBits(28, 0)
	b.AddBits(8, 0xFF)
	got := b.Words()
	want := []uint32{0xF << 28, 0xF}
	if !slices.Equal(got, want) {
		t.Errorf("Words() = %#x, want %#x", got, want)
	}
}

func TestKeyBuilderAdd32(t *testing.T) {
	var b KeyBuilder
	b.AddBool(true)
	b.Flush()
	b.Add32(0xDEADBEEF)
	if got := b.Words(); !slices.Equal(got, []uint32{1, 0xDEADBEEF}) {
		t.Errorf("Words() = %#x", got)
	}
}

func TestKeyBuilderEqualInputsEqualKeys(t *testing.T) {
	build := func(v uint32) string {
		var b KeyBuilder
		b.AddBits(6, v)
		b.Add32(7)
		return b.String()
	}
	if build(3) != build(3) {
		t.Error("equal inputs produced different keys")
	}
	if build(3) == build(4) {
		t.Error("different inputs produced equal keys")
	}
}

func TestKeyBuilderOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AddBits with oversized value should panic")
		}
	}()
	var b KeyBuilder
	b.AddBits(2, 4)
}

func TestKeyBuilderReset(t *testing.T) {
	var b KeyBuilder
	b.Add32(1)
	b.Reset()
	if b.Len() != 0 || len(b.Words()) != 0 {
		t.Error("Reset() should empty the builder")
	}
}

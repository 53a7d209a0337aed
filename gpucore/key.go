package gpucore

import (
	"encoding/binary"
	"fmt"
)

// KeyBuilder packs bit fields into 32-bit words. Every piece of state that
// changes generated shader text is appended, so equal keys mean
// interchangeable programs.
type KeyBuilder struct {
	words []uint32
	cur   uint32
	used  uint
}

// AddBits appends the low numBits of val. val must fit.
func (b *KeyBuilder) AddBits(numBits uint, val uint32) {
	if numBits == 0 {
		return
	}
	if numBits > 32 || (numBits < 32 && val>>numBits != 0) {
		panic(fmt.Sprintf("gpucore: key value %#x does not fit in %d bits", val, numBits))
	}
	if b.used+numBits > 32 {
		// Split across the word boundary.
		lo := 32 - b.used
		b.cur |= val << b.used
		b.words = append(b.words, b.cur)
		b.cur, b.used = 0, 0
		if lo < 32 {
			val >>= lo
		} else {
			val = 0
		}
		numBits -= lo
	}
	b.cur |= val << b.used
	b.used += numBits
	if b.used == 32 {
		b.words = append(b.words, b.cur)
		b.cur, b.used = 0, 0
	}
}

// AddBool appends one bit.
func (b *KeyBuilder) AddBool(v bool) {
	var bit uint32
	if v {
		bit = 1
	}
	b.AddBits(1, bit)
}

// Add32 appends a full word.
func (b *KeyBuilder) Add32(v uint32) { b.AddBits(32, v) }

// Flush pads the partial word so the next field starts word-aligned.
func (b *KeyBuilder) Flush() {
	if b.used > 0 {
		b.words = append(b.words, b.cur)
		b.cur, b.used = 0, 0
	}
}

// Words flushes and returns the packed key.
func (b *KeyBuilder) Words() []uint32 {
	b.Flush()
	return b.words
}

// String flushes and returns the key as a string usable as a map key.
func (b *KeyBuilder) String() string {
	w := b.Words()
	buf := make([]byte, 4*len(w))
	for i, v := range w {
		binary.LittleEndian.PutUint32(buf[4*i:], v)
	}
	return string(buf)
}

// Len returns the number of flushed words.
func (b *KeyBuilder) Len() int { return len(b.words) }

// Reset empties the builder for reuse.
func (b *KeyBuilder) Reset() {
	b.words = b.words[:0]
	b.cur, b.used = 0, 0
}

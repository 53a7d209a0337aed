package emit

import (
	"encoding/binary"
	"math"

	"golang.org/x/image/math/f32"
)

// DataManager writes per-draw uniform values into the packed block laid
// out by a UniformHandler. Writing the same values twice leaves the block
// unchanged, so SetData implementations are naturally idempotent.
type DataManager struct {
	layout []Uniform
	data   []byte
	dirty  bool
}

// NewDataManager creates a manager over storage. storage is typically carved
// from a flush arena; it must be at least h.Size() bytes, otherwise a heap
// buffer is used.
func NewDataManager(h *UniformHandler, storage []byte) *DataManager {
	size := h.Size()
	if len(storage) < size {
		storage = make([]byte, size)
	}
	return &DataManager{layout: h.Uniforms(), data: storage[:size]}
}

// Bytes returns the packed uniform block.
func (d *DataManager) Bytes() []byte { return d.data }

// Dirty reports whether any value changed since the last ClearDirty.
func (d *DataManager) Dirty() bool { return d.dirty }

// ClearDirty resets the dirty flag after an upload.
func (d *DataManager) ClearDirty() { d.dirty = false }

func (d *DataManager) putF32(off int, v float32) {
	bits := math.Float32bits(v)
	if binary.LittleEndian.Uint32(d.data[off:]) != bits {
		binary.LittleEndian.PutUint32(d.data[off:], bits)
		d.dirty = true
	}
}

func (d *DataManager) offset(h UniformHandle, want Type) int {
	u := d.layout[h]
	if u.Type != want {
		panic("emit: uniform " + u.Name + " is " + u.Type.WGSL() + ", not " + want.WGSL())
	}
	return u.Offset
}

// Set1f writes a float uniform.
func (d *DataManager) Set1f(h UniformHandle, v float32) {
	d.putF32(d.offset(h, Float), v)
}

// Set1u writes an unsigned uniform.
func (d *DataManager) Set1u(h UniformHandle, v uint32) {
	off := d.offset(h, UInt)
	if binary.LittleEndian.Uint32(d.data[off:]) != v {
		binary.LittleEndian.PutUint32(d.data[off:], v)
		d.dirty = true
	}
}

// Set2f writes a vec2 uniform.
func (d *DataManager) Set2f(h UniformHandle, v f32.Vec2) {
	off := d.offset(h, Float2)
	d.putF32(off, v[0])
	d.putF32(off+4, v[1])
}

// Set4f writes a vec4 uniform.
func (d *DataManager) Set4f(h UniformHandle, v [4]float32) {
	off := d.offset(h, Float4)
	for i, c := range v {
		d.putF32(off+4*i, c)
	}
}

// SetMatrix3x3 writes a column-major 3x3 matrix; each column is padded to
// 16 bytes.
func (d *DataManager) SetMatrix3x3(h UniformHandle, cols [9]float32) {
	off := d.offset(h, Float3x3)
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			d.putF32(off+16*c+4*r, cols[3*c+r])
		}
	}
}

// SetAffine writes a 2D affine transform as a 3x3 matrix uniform.
func (d *DataManager) SetAffine(h UniformHandle, m f32.Aff3) {
	d.SetMatrix3x3(h, AffineColumns(m))
}

// AffineColumns expands a row-major 2x3 affine transform to column-major
// 3x3 order.
func AffineColumns(m f32.Aff3) [9]float32 {
	return [9]float32{
		m[0], m[3], 0,
		m[1], m[4], 0,
		m[2], m[5], 1,
	}
}

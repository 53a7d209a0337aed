package stage

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// VertexType is the client-side storage type of an attribute.
type VertexType uint8

// Client storage types.
const (
	VertexFloat VertexType = iota
	VertexFloat2
	VertexFloat3
	VertexFloat4
	VertexUByte4Norm
	VertexUShort2
	VertexUShort2Norm
	VertexUInt
)

var vertexFormats = [...]gputypes.VertexFormat{
	VertexFloat:       gputypes.VertexFormatFloat32,
	VertexFloat2:      gputypes.VertexFormatFloat32x2,
	VertexFloat3:      gputypes.VertexFormatFloat32x3,
	VertexFloat4:      gputypes.VertexFormatFloat32x4,
	VertexUByte4Norm:  gputypes.VertexFormatUnorm8x4,
	VertexUShort2:     gputypes.VertexFormatUint16x2,
	VertexUShort2Norm: gputypes.VertexFormatUnorm16x2,
	VertexUInt:        gputypes.VertexFormatUint32,
}

// Format returns the vertex fetch format.
func (t VertexType) Format() gputypes.VertexFormat { return vertexFormats[t] }

// Size returns the byte size of one value.
func (t VertexType) Size() int { return int(t.Format().Size()) }

const noOffset = -1

// Attribute describes one vertex or instance input. The zero value is an
// uninitialized attribute, which attribute sets skip; this lets descriptors
// declare optional inputs unconditionally.
type Attribute struct {
	name    string
	cpuType VertexType
	gpuType emit.Type
	offset  int
}

// NewAttribute declares an attribute whose offset is assigned by an
// implicit AttributeSet.
func NewAttribute(name string, cpu VertexType, gpu emit.Type) Attribute {
	return Attribute{name: name, cpuType: cpu, gpuType: gpu, offset: noOffset}
}

// NewAttributeAt declares an attribute at an explicit byte offset, which
// must be 4-byte aligned.
func NewAttributeAt(name string, cpu VertexType, gpu emit.Type, offset int) Attribute {
	if offset < 0 || offset%4 != 0 {
		panic(fmt.Sprintf("stage: attribute %q offset %d is not 4-byte aligned", name, offset))
	}
	return Attribute{name: name, cpuType: cpu, gpuType: gpu, offset: offset}
}

// IsInitialized reports whether the attribute was declared.
func (a Attribute) IsInitialized() bool { return a.name != "" }

// Name returns the shader-visible name.
func (a Attribute) Name() string { return a.name }

// CPUType returns the client storage type.
func (a Attribute) CPUType() VertexType { return a.cpuType }

// GPUType returns the type seen by the shader.
func (a Attribute) GPUType() emit.Type { return a.gpuType }

// Size returns the client storage size in bytes.
func (a Attribute) Size() int { return a.cpuType.Size() }

// HasExplicitOffset reports whether the offset was given by the descriptor.
func (a Attribute) HasExplicitOffset() bool { return a.offset != noOffset }

// ResolvedAttribute is an attribute with its final byte offset.
type ResolvedAttribute struct {
	Attribute
	Offset int
}

// AttributeSet is the ordered attribute layout of one vertex buffer.
type AttributeSet struct {
	attrs    []ResolvedAttribute
	stride   int
	explicit bool
}

// Implicit packs the initialized attributes in order, each occupying its
// size rounded up to 4 bytes.
func Implicit(attrs ...Attribute) AttributeSet {
	var s AttributeSet
	for _, a := range attrs {
		if !a.IsInitialized() {
			continue
		}
		if a.HasExplicitOffset() {
			panic(fmt.Sprintf("stage: attribute %q has an explicit offset in an implicit set", a.name))
		}
		s.attrs = append(s.attrs, ResolvedAttribute{Attribute: a, Offset: s.stride})
		s.stride += align4(a.Size())
	}
	return s
}

// Explicit uses the attributes' own offsets and the given stride.
func Explicit(stride int, attrs ...Attribute) AttributeSet {
	if stride%4 != 0 {
		panic(fmt.Sprintf("stage: stride %d is not 4-byte aligned", stride))
	}
	s := AttributeSet{stride: stride, explicit: true}
	for _, a := range attrs {
		if !a.IsInitialized() {
			continue
		}
		if !a.HasExplicitOffset() {
			panic(fmt.Sprintf("stage: attribute %q needs an explicit offset", a.name))
		}
		if a.offset+a.Size() > stride {
			panic(fmt.Sprintf("stage: attribute %q overruns stride %d", a.name, stride))
		}
		s.attrs = append(s.attrs, ResolvedAttribute{Attribute: a, Offset: a.offset})
	}
	return s
}

// Len returns the number of initialized attributes.
func (s AttributeSet) Len() int { return len(s.attrs) }

// Stride returns the byte distance between consecutive elements.
func (s AttributeSet) Stride() int { return s.stride }

// IsExplicit reports whether offsets were supplied by the descriptor.
func (s AttributeSet) IsExplicit() bool { return s.explicit }

// Resolved returns the attributes with their final offsets.
func (s AttributeSet) Resolved() []ResolvedAttribute { return s.attrs }

// Layout returns the vertex buffer layout, assigning shader locations from
// firstLocation on.
func (s AttributeSet) Layout(step gputypes.VertexStepMode, firstLocation uint32) gputypes.VertexBufferLayout {
	l := gputypes.VertexBufferLayout{
		ArrayStride: uint64(s.stride),
		StepMode:    step,
		Attributes:  make([]gputypes.VertexAttribute, len(s.attrs)),
	}
	for i, a := range s.attrs {
		l.Attributes[i] = gputypes.VertexAttribute{
			Format:         a.cpuType.Format(),
			Offset:         uint64(a.Offset),
			ShaderLocation: firstLocation + uint32(i),
		}
	}
	return l
}

// AddToKey appends the layout to a program key.
func (s AttributeSet) AddToKey(b *gpucore.KeyBuilder) {
	b.AddBits(8, uint32(len(s.attrs)))
	b.AddBool(s.explicit)
	for _, a := range s.attrs {
		b.AddBits(4, uint32(a.cpuType))
		b.AddBits(4, uint32(a.gpuType))
		b.AddBits(16, uint32(a.Offset))
	}
	if s.explicit {
		b.AddBits(16, uint32(s.stride))
	}
}

func align4(n int) int { return (n + 3) &^ 3 }

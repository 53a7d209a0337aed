package stage

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// ClassID distinguishes descriptor implementations in program keys.
type ClassID uint32

// Descriptor class ids.
const (
	ClassQuadPerEdgeAA ClassID = iota + 1
	ClassMesh
	ClassGlyph
	ClassPathStencil
	ClassBoundingBoxCover
	ClassAtlasInstance
)

// Sampler is the static description of one texture sampled by a stage.
type Sampler struct {
	State   gpucore.SamplerState
	Swizzle gpucore.Swizzle
	Format  gputypes.TextureFormat
	Target  gpucore.TextureTarget
}

// SamplerFor describes sampling proxy with state.
func SamplerFor(proxy *gpucore.TextureProxy, state gpucore.SamplerState, swizzle gpucore.Swizzle) Sampler {
	return Sampler{State: state, Swizzle: swizzle, Format: proxy.Format, Target: proxy.Target}
}

// addToKey appends the parts of the sampler that change shader text.
func (s Sampler) addToKey(b *gpucore.KeyBuilder) {
	b.AddBits(16, s.Swizzle.Key())
	b.AddBits(2, uint32(s.Target))
}

// Descriptor is the immutable description of a program's input stage.
type Descriptor interface {
	Name() string
	ClassID() ClassID
	VertexAttributes() AttributeSet
	InstanceAttributes() AttributeSet
	NumTextureSamplers() int
	TextureSampler(i int) Sampler

	// AddToKey appends every bit of state that changes emitted shader text.
	AddToKey(caps *gpucore.ShaderCaps, b *gpucore.KeyBuilder)

	// MakeProgramImpl returns the code emitter for this key.
	MakeProgramImpl(caps *gpucore.ShaderCaps) ProgramImpl
}

// ProgramImpl emits shader code for one descriptor key and pushes per-draw
// uniforms. An implementation is cached with the compiled program and
// reused by every descriptor with the same key.
type ProgramImpl interface {
	// EmitCode writes vertex and fragment code. It must return a position
	// and assign args.OutputColor or args.OutputCoverage.
	EmitCode(args *EmitArgs) EmitResult

	// SetData writes uniforms for d. Calling it twice with the same d has
	// no further effect.
	SetData(dm *emit.DataManager, caps *gpucore.ShaderCaps, d Descriptor)
}

// EmitArgs is the emit context shared between a stage and the assembler.
type EmitArgs struct {
	Vert     *emit.ShaderBuilder
	Frag     *emit.ShaderBuilder
	Varyings *emit.VaryingHandler
	Uniforms *emit.UniformHandler
	Caps     *gpucore.ShaderCaps
	Samplers []emit.SamplerHandle

	// OutputColor and OutputCoverage name the fragment variables the stage
	// writes. Both are declared by the assembler.
	OutputColor    string
	OutputCoverage string

	// NeedsLocalCoords is set when a fragment effect consumes local
	// coordinates.
	NeedsLocalCoords bool
}

// EmitResult reports the vertex-stage variables produced by EmitCode.
type EmitResult struct {
	// Position is the device-space position, Float2 or Float3 (with w).
	Position emit.Var

	// LocalCoords is the Float2 local coordinate, invalid if none.
	LocalCoords emit.Var
}

// Input returns the vertex-stage expression reading attribute a.
func Input(a Attribute) string { return "in." + a.name }

// base carries the state shared by all descriptors.
type base struct {
	name          string
	classID       ClassID
	vertexAttrs   AttributeSet
	instanceAttrs AttributeSet
	samplers      []Sampler
}

func (b *base) Name() string                     { return b.name }
func (b *base) ClassID() ClassID                 { return b.classID }
func (b *base) VertexAttributes() AttributeSet   { return b.vertexAttrs }
func (b *base) InstanceAttributes() AttributeSet { return b.instanceAttrs }
func (b *base) NumTextureSamplers() int          { return len(b.samplers) }
func (b *base) TextureSampler(i int) Sampler     { return b.samplers[i] }

// NumAttributes returns the vertex plus instance attribute count of d.
func NumAttributes(d Descriptor) int {
	return d.VertexAttributes().Len() + d.InstanceAttributes().Len()
}

// GenKey builds the complete stage key: class id, attribute layouts,
// sampler keys and the descriptor's own bits.
func GenKey(d Descriptor, caps *gpucore.ShaderCaps, b *gpucore.KeyBuilder) {
	b.Add32(uint32(d.ClassID()))
	d.VertexAttributes().AddToKey(b)
	d.InstanceAttributes().AddToKey(b)
	b.AddBits(4, uint32(d.NumTextureSamplers()))
	for i := 0; i < d.NumTextureSamplers(); i++ {
		d.TextureSampler(i).addToKey(b)
	}
	d.AddToKey(caps, b)
	b.Flush()
}

// isIdentity reports whether m is the identity transform.
func isIdentity(m [6]float32) bool {
	return m == [6]float32{1, 0, 0, 0, 1, 0}
}

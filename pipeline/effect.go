package pipeline

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// EffectClassID distinguishes effect implementations in keys.
type EffectClassID uint32

// Effect class ids.
const (
	ClassTexture EffectClassID = iota + 1
	ClassMatrix
	ClassModulate
	ClassUniformColor
	ClassColorSpaceXform
	ClassDeviceRect
)

// SampleUsage describes how a parent samples one child.
type SampleUsage uint8

const (
	// SamplePassThrough samples the child at the parent's own coordinates.
	SamplePassThrough SampleUsage = iota
	// SampleUniformMatrix samples the child at the parent's coordinates
	// transformed by a uniform matrix the parent provides.
	SampleUniformMatrix
	// SampleExplicit samples the child at coordinates computed in the
	// fragment stage.
	SampleExplicit
)

func (u SampleUsage) String() string {
	switch u {
	case SamplePassThrough:
		return "PassThrough"
	case SampleUniformMatrix:
		return "UniformMatrix"
	case SampleExplicit:
		return "Explicit"
	default:
		return fmt.Sprintf("SampleUsage(%d)", uint8(u))
	}
}

// TextureSampler is one texture sampled by an effect.
type TextureSampler struct {
	Proxy   *gpucore.TextureProxy
	State   gpucore.SamplerState
	Swizzle gpucore.Swizzle
}

// Effect is the static description of one fragment-effect node.
type Effect interface {
	Name() string
	ClassID() EffectClassID

	// AddToKey appends the state that changes the node's emitted code.
	// Uniform values are not part of the key.
	AddToKey(b *gpucore.KeyBuilder)

	// Equal compares every field, uniforms included. o has the same
	// ClassID.
	Equal(o Effect) bool

	// UsesCoords reports whether the node reads its sample coordinates.
	UsesCoords() bool

	// Textures returns the textures sampled by this node only.
	Textures() []TextureSampler

	MakeImpl() EffectImpl
}

// MatrixProvider is implemented by effects that sample a child through
// SampleUniformMatrix. The matrix is applied to the parent's coordinates.
type MatrixProvider interface {
	SampleMatrix() f32.Aff3
}

// EffectImpl emits the body of one node's function and writes its uniforms.
type EffectImpl interface {
	// EmitCode writes a function body that returns a vec4<f32>. The body
	// reads args.InputColor and args.Coords.
	EmitCode(args *EffectArgs)
	SetData(dm *emit.DataManager, e Effect)
}

// EffectArgs is the emit context for one node function.
type EffectArgs struct {
	Frag     *emit.ShaderBuilder
	Uniforms *emit.UniformHandler
	Caps     *gpucore.ShaderCaps

	// InputColor and Coords name the function parameters.
	InputColor string
	Coords     string

	// FragPosition names the device-space fragment position.
	FragPosition string

	// Samplers are the handles of the node's own textures.
	Samplers []emit.SamplerHandle

	// Invoke returns an expression calling child i. coords is used for
	// SampleExplicit children and ignored otherwise.
	Invoke func(i int, input, coords string) string
}

// InvokeChild calls child i at the coordinates its SampleUsage implies.
func (a *EffectArgs) InvokeChild(i int, input string) string {
	return a.Invoke(i, input, "")
}

// InvokeChildAt calls a SampleExplicit child at coords.
func (a *EffectArgs) InvokeChildAt(i int, input, coords string) string {
	return a.Invoke(i, input, coords)
}

// Processor is one node of a fragment-effect tree.
type Processor struct {
	effect   Effect
	children []*Processor
	usages   []SampleUsage
	parent   *Processor
}

// NewProcessor wraps e. Children are attached with AddChild.
func NewProcessor(e Effect) *Processor {
	return &Processor{effect: e}
}

// AddChild registers c as the next child, sampled with usage. The parent
// must implement MatrixProvider for SampleUniformMatrix.
func (p *Processor) AddChild(c *Processor, usage SampleUsage) *Processor {
	if c.parent != nil {
		panic("pipeline: processor " + c.effect.Name() + " already has a parent")
	}
	if usage == SampleUniformMatrix {
		if _, ok := p.effect.(MatrixProvider); !ok {
			panic("pipeline: " + p.effect.Name() + " samples through a matrix but provides none")
		}
	}
	c.parent = p
	p.children = append(p.children, c)
	p.usages = append(p.usages, usage)
	return p
}

// Effect returns the node's effect.
func (p *Processor) Effect() Effect { return p.effect }

// NumChildren returns the number of children.
func (p *Processor) NumChildren() int { return len(p.children) }

// Child returns child i.
func (p *Processor) Child(i int) *Processor { return p.children[i] }

// ChildUsage returns how child i is sampled.
func (p *Processor) ChildUsage(i int) SampleUsage { return p.usages[i] }

// Parent returns the parent node, nil for a root.
func (p *Processor) Parent() *Processor { return p.parent }

// AddToKey appends the subtree's key: class ids, effect keys, child counts
// and sample usages in pre-order.
func (p *Processor) AddToKey(b *gpucore.KeyBuilder) {
	b.AddBits(8, uint32(p.effect.ClassID()))
	p.effect.AddToKey(b)
	b.AddBits(4, uint32(len(p.children)))
	for i, c := range p.children {
		b.AddBits(2, uint32(p.usages[i]))
		c.AddToKey(b)
	}
}

// Equal reports whether two subtrees have the same shape and equal effects.
func (p *Processor) Equal(o *Processor) bool {
	if p == o {
		return true
	}
	if p == nil || o == nil {
		return false
	}
	if p.effect.ClassID() != o.effect.ClassID() || !p.effect.Equal(o.effect) {
		return false
	}
	if len(p.children) != len(o.children) {
		return false
	}
	for i := range p.children {
		if p.usages[i] != o.usages[i] || !p.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// Walk visits the subtree in post-order: children before parents.
func (p *Processor) Walk(fn func(*Processor)) {
	for _, c := range p.children {
		c.Walk(fn)
	}
	fn(p)
}

// VisitProxies calls fn for every texture referenced in the subtree.
func (p *Processor) VisitProxies(fn func(*gpucore.TextureProxy)) {
	p.Walk(func(n *Processor) {
		for _, t := range n.effect.Textures() {
			fn(t.Proxy)
		}
	})
}

// IsHoisted reports whether the node's coordinates can be computed in the
// vertex stage: every edge from the root samples through PassThrough or
// UniformMatrix.
func (p *Processor) IsHoisted() bool {
	for n := p; n.parent != nil; n = n.parent {
		if n.parent.usageOf(n) == SampleExplicit {
			return false
		}
	}
	return true
}

// UsesLocalCoords reports whether any hoisted node in the subtree reads
// its coordinates, which then derive from the stage's local coordinates.
func (p *Processor) UsesLocalCoords() bool {
	uses := false
	p.Walk(func(n *Processor) {
		if n.effect.UsesCoords() && n.IsHoisted() {
			uses = true
		}
	})
	return uses
}

// MatrixAncestor returns the node that owns the innermost uniform matrix
// applied to p's coordinates, or nil if p samples local coordinates
// directly. Nodes with the same matrix ancestor share one coordinate.
func (p *Processor) MatrixAncestor() *Processor {
	for n := p; n.parent != nil; n = n.parent {
		if n.parent.usageOf(n) == SampleUniformMatrix {
			return n.parent
		}
	}
	return nil
}

func (p *Processor) usageOf(c *Processor) SampleUsage {
	for i, ch := range p.children {
		if ch == c {
			return p.usages[i]
		}
	}
	panic("pipeline: not a child")
}

// String formats the subtree for diagnostics, e.g. Modulate(Texture).
func (p *Processor) String() string {
	if len(p.children) == 0 {
		return p.effect.Name()
	}
	s := p.effect.Name() + "("
	for i, c := range p.children {
		if i > 0 {
			s += ", "
		}
		s += c.String()
	}
	return s + ")"
}

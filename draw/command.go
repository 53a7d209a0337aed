package draw

import (
	"fmt"
	"math"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
)

// Kind tags the payload of a Command. Commands of different kinds never
// combine.
type Kind uint8

// Command kinds.
const (
	KindMesh Kind = iota
	KindTexturedQuads
	KindGlyphs
	KindAtlasPaths
	KindTessellatedPath
	KindClear
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "Mesh"
	case KindTexturedQuads:
		return "TexturedQuads"
	case KindGlyphs:
		return "Glyphs"
	case KindAtlasPaths:
		return "AtlasPaths"
	case KindTessellatedPath:
		return "TessellatedPath"
	case KindClear:
		return "Clear"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Ref indexes a command inside its List.
type Ref int32

// NoRef is the nil Ref.
const NoRef Ref = -1

// CombineResult is the outcome of comparing two commands.
type CombineResult uint8

const (
	// CannotCombine means the commands must stay in separate chains.
	CannotCombine CombineResult = iota
	// Merged means the second command's geometry was absorbed by the first.
	Merged
	// MayChain means both can run as consecutive draws of one pipeline.
	MayChain
)

func (r CombineResult) String() string {
	switch r {
	case CannotCombine:
		return "CannotCombine"
	case Merged:
		return "Merged"
	case MayChain:
		return "MayChain"
	default:
		return fmt.Sprintf("CombineResult(%d)", r)
	}
}

// Command is one recorded draw: a kind, its payload and its device bounds.
// Inside a List, commands are linked into chains by Ref.
type Command struct {
	kind   Kind
	op     variant
	bounds gpucore.Rect

	prev, next Ref
	dead       bool
}

func newCommand(kind Kind, op variant, bounds gpucore.Rect) Command {
	return Command{kind: kind, op: op, bounds: bounds, prev: NoRef, next: NoRef}
}

// Kind returns the command kind.
func (c *Command) Kind() Kind { return c.kind }

// Bounds returns the device-space bounds, grown by merges.
func (c *Command) Bounds() gpucore.Rect { return c.bounds }

// Count returns the number of geometry units (quads, glyphs, vertices,
// paths) the command draws.
func (c *Command) Count() int { return c.op.count() }

// VisitProxies calls fn for every texture the command samples.
func (c *Command) VisitProxies(fn func(*gpucore.TextureProxy)) { c.op.visitProxies(fn) }

func (c *Command) String() string {
	return fmt.Sprintf("%s(%d) %v", c.kind, c.op.count(), c.bounds)
}

// variant is the behavior behind one Kind.
type variant interface {
	// finalize freezes color and coverage knowledge. It runs once, before
	// the command may combine.
	finalize(caps *gpucore.Caps, clip *pipeline.AppliedClip, clamp gpucore.ClampMode) pipeline.Analysis

	// combine tries to absorb or chain with that, which has the same kind.
	combine(that variant, args *combineArgs) CombineResult

	// prepare writes vertex data and builds programs for the chain headed
	// by the receiver. execute issues its draws.
	prepare(fs *FlushState, ch *chainState)
	execute(fs *FlushState, ch *chainState)

	visitProxies(fn func(*gpucore.TextureProxy))
	count() int
}

type combineArgs struct {
	caps *gpucore.Caps

	// thisChain and thatChain are the geometry counts of the whole chains
	// holding each side.
	thisChain, thatChain int
}

func isFinite(r gpucore.Rect) bool {
	for _, v := range [...]float32{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// canReorder reports whether draws with bounds a and b may swap order.
func canReorder(a, b gpucore.Rect) bool {
	return a.IsEmpty() || b.IsEmpty() || !a.Overlaps(b)
}

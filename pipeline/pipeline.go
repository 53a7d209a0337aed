package pipeline

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
)

// Flags are the boolean pipeline options.
type Flags uint8

const (
	FlagWireframe Flags = 1 << iota
	FlagConservativeRaster
	FlagSnapVerticesToPixelCenters

	flagHasStencilClip
	flagScissorEnabled
)

// InitArgs are the inputs shared by every constructor.
type InitArgs struct {
	Flags        Flags
	Caps         *gpucore.Caps
	DstProxy     *gpucore.TextureProxy // copy of the destination for texture dst reads
	WriteSwizzle gpucore.Swizzle
}

// Pipeline is the immutable per-draw state. Processors are ordered color
// first, then paint coverage, then clip coverage.
type Pipeline struct {
	flags        Flags
	xfer         Xfer
	dstRead      DstReadKind
	barrier      XferBarrier
	dstProxy     *gpucore.TextureProxy
	windowRects  WindowRects
	writeSwizzle gpucore.Swizzle

	processors []*Processor
	numColor   int
}

// NewTrivial returns a pipeline with no effects.
func NewTrivial(scissorEnabled bool, xfer Xfer, flags Flags) *Pipeline {
	p := &Pipeline{flags: flags &^ (flagHasStencilClip | flagScissorEnabled), xfer: xfer, writeSwizzle: gpucore.SwizzleRGBA}
	if scissorEnabled {
		p.flags |= flagScissorEnabled
	}
	p.dstRead, p.barrier = dstReadFor(xfer, gpucore.DefaultCaps())
	return p
}

// NewWithHardClip returns a pipeline with no effects clipped by fixed
// function state only.
func NewWithHardClip(xfer Xfer, hard HardClip, flags Flags, writeSwizzle gpucore.Swizzle) *Pipeline {
	p := NewTrivial(hard.Scissor.Enabled, xfer, flags)
	p.writeSwizzle = writeSwizzle
	p.windowRects = hard.Windows
	if hard.StencilClip {
		p.flags |= flagHasStencilClip
	}
	return p
}

// New builds the full pipeline from a finalized processor set and clip.
// A nil clip means unclipped.
func New(args InitArgs, set *ProcessorSet, clip *AppliedClip) *Pipeline {
	if !set.IsFinalized() {
		panic("pipeline: processor set is not finalized")
	}
	p := NewWithHardClip(set.Xfer(), clip.HardClipOrZero(), args.Flags, args.WriteSwizzle)
	if p.writeSwizzle == (gpucore.Swizzle{}) {
		p.writeSwizzle = gpucore.SwizzleRGBA
	}
	caps := args.Caps
	if caps == nil {
		caps = gpucore.DefaultCaps()
	}
	p.dstRead, p.barrier = dstReadFor(p.xfer, caps)
	if p.dstRead == DstReadTexture && p.barrier == BarrierNone {
		p.dstProxy = args.DstProxy
	}

	if set.Color() != nil {
		p.processors = append(p.processors, set.Color())
		p.numColor = 1
	}
	if set.Coverage() != nil {
		p.processors = append(p.processors, set.Coverage())
	}
	for i := 0; i < clip.NumCoverage(); i++ {
		p.processors = append(p.processors, clip.Coverage(i))
	}
	return p
}

// NumProcessors returns the number of fragment effects.
func (p *Pipeline) NumProcessors() int { return len(p.processors) }

// NumColorProcessors returns how many leading processors are color.
func (p *Pipeline) NumColorProcessors() int { return p.numColor }

// IsColorProcessor reports whether processor i affects color.
func (p *Pipeline) IsColorProcessor(i int) bool { return i < p.numColor }

// Processor returns processor i.
func (p *Pipeline) Processor(i int) *Processor { return p.processors[i] }

// Xfer returns the transfer.
func (p *Pipeline) Xfer() Xfer { return p.xfer }

// DstReadKind returns how the shader reads the destination.
func (p *Pipeline) DstReadKind() DstReadKind { return p.dstRead }

// DstProxy returns the destination copy sampled for texture dst reads.
func (p *Pipeline) DstProxy() *gpucore.TextureProxy { return p.dstProxy }

// XferBarrier returns the barrier a render pass issues before each draw.
func (p *Pipeline) XferBarrier() XferBarrier { return p.barrier }

// BlendState returns the fixed-function blend, nil for replace.
func (p *Pipeline) BlendState() *gputypes.BlendState { return p.xfer.BlendState() }

// WriteSwizzle returns the swizzle applied to the output color.
func (p *Pipeline) WriteSwizzle() gpucore.Swizzle { return p.writeSwizzle }

// Flags returns the public flags.
func (p *Pipeline) Flags() Flags {
	return p.flags & (FlagWireframe | FlagConservativeRaster | FlagSnapVerticesToPixelCenters)
}

// IsWireframe reports FlagWireframe.
func (p *Pipeline) IsWireframe() bool { return p.flags&FlagWireframe != 0 }

// SnapVerticesToPixelCenters reports FlagSnapVerticesToPixelCenters.
func (p *Pipeline) SnapVerticesToPixelCenters() bool {
	return p.flags&FlagSnapVerticesToPixelCenters != 0
}

// IsScissorTestEnabled reports whether draws set a scissor rectangle.
func (p *Pipeline) IsScissorTestEnabled() bool { return p.flags&flagScissorEnabled != 0 }

// HasStencilClip reports whether the stencil clip bit is tested.
func (p *Pipeline) HasStencilClip() bool { return p.flags&flagHasStencilClip != 0 }

// WindowRects returns the window rectangles.
func (p *Pipeline) WindowRects() WindowRects { return p.windowRects }

// UsesLocalCoords reports whether any effect consumes local coordinates.
func (p *Pipeline) UsesLocalCoords() bool {
	for _, fp := range p.processors {
		if fp.UsesLocalCoords() {
			return true
		}
	}
	return false
}

// NumTextureSamplers returns the textures sampled by all effects, plus the
// destination copy.
func (p *Pipeline) NumTextureSamplers() int {
	n := 0
	p.VisitProxies(func(*gpucore.TextureProxy) { n++ })
	return n
}

// VisitProxies calls fn for every texture referenced by the pipeline, in
// binding order: effects in processor order, then the destination copy.
func (p *Pipeline) VisitProxies(fn func(*gpucore.TextureProxy)) {
	for _, fp := range p.processors {
		fp.VisitProxies(fn)
	}
	if p.dstProxy != nil {
		fn(p.dstProxy)
	}
}

// GenKey appends the pipeline key: flags, window-rect use, processor keys,
// transfer and destination-read configuration.
func (p *Pipeline) GenKey(_ *gpucore.Caps, b *gpucore.KeyBuilder) {
	b.AddBits(8, uint32(p.flags))
	b.AddBool(p.windowRects.Enabled())
	b.AddBits(4, uint32(p.numColor))
	b.AddBits(8, uint32(len(p.processors)))
	for _, fp := range p.processors {
		fp.AddToKey(b)
	}
	p.xfer.AddToKey(b)
	b.AddBits(2, uint32(p.dstRead))
	b.AddBits(2, uint32(p.barrier))
	b.AddBits(16, p.writeSwizzle.Key())
	b.Flush()
}

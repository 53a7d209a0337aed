package draw

import (
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
)

// Paint is the fragment state shared by every kind of drawing command.
type Paint struct {
	// Set holds the color and coverage effects and the transfer. Nil
	// draws with SrcOver and no effects. A set belongs to one command.
	Set *pipeline.ProcessorSet

	AA    gpucore.AAType
	Flags pipeline.Flags

	// Stencil is the user stencil, nil when unused.
	Stencil *pipeline.UserStencil
}

// paint is the per-command helper built from a Paint.
type paint struct {
	set      *pipeline.ProcessorSet
	aa       gpucore.AAType
	flags    pipeline.Flags
	stencil  *pipeline.UserStencil
	analysis pipeline.Analysis
}

func newPaint(p Paint) paint {
	set := p.Set
	if set == nil {
		set = pipeline.EmptyProcessorSet()
	}
	return paint{set: set, aa: p.AA, flags: p.Flags, stencil: p.Stencil}
}

func (p *paint) finalize(caps *gpucore.Caps, clip *pipeline.AppliedClip, clamp gpucore.ClampMode,
	in pipeline.InputColor, cov pipeline.CoverageInput) pipeline.Analysis {
	p.analysis = p.set.Finalize(in, cov, clip, caps, clamp)
	return p.analysis
}

// coverageFor maps an AA type onto the coverage the geometry produces.
func coverageFor(aa gpucore.AAType) pipeline.CoverageInput {
	if aa == gpucore.AACoverage {
		return pipeline.CoverageSingleChannel
	}
	return pipeline.CoverageNone
}

// compatible reports whether two commands may share one pipeline.
func (p *paint) compatible(o *paint, ignoreAA bool) bool {
	if p.flags != o.flags || !p.set.Equal(o.set) {
		return false
	}
	if p.stencil.IsUnused() != o.stencil.IsUnused() {
		return false
	}
	if !p.stencil.IsUnused() && *p.stencil != *o.stencil {
		return false
	}
	return ignoreAA || p.aa == o.aa
}

func (p *paint) usesLocalCoords() bool { return p.analysis.UsesLocalCoords }

func (p *paint) makePipeline(fs *FlushState, ch *chainState) *pipeline.Pipeline {
	return pipeline.New(pipeline.InitArgs{
		Flags:        p.flags,
		Caps:         fs.Caps,
		DstProxy:     ch.dstProxy,
		WriteSwizzle: fs.WriteSwizzle,
	}, p.set, ch.clip)
}

func (p *paint) stencilSettings(fs *FlushState, ch *chainState) pipeline.StencilSettings {
	return resolveStencil(p.stencil, fs, ch)
}

func resolveStencil(s *pipeline.UserStencil, fs *FlushState, ch *chainState) pipeline.StencilSettings {
	hasClip := ch.clip.HardClipOrZero().StencilClip
	if s.IsUnused() {
		if !hasClip {
			return pipeline.StencilSettings{}
		}
		s = pipeline.StencilUnused
	}
	return s.Resolve(hasClip, fs.Caps.StencilBits)
}

func (p *paint) visitProxies(fn func(*gpucore.TextureProxy)) { p.set.VisitProxies(fn) }

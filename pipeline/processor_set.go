package pipeline

import (
	"github.com/gogpu/gpucmd/gpucore"
)

// InputColor is what the geometry stage knows about its output color.
type InputColor struct {
	Known bool
	Color gpucore.Color
}

// CoverageInput is the coverage the geometry stage produces.
type CoverageInput uint8

const (
	CoverageNone CoverageInput = iota
	CoverageSingleChannel
	CoverageLCD
)

// Analysis is the frozen result of ProcessorSet.Finalize.
type Analysis struct {
	// ColorKnown is set when the shaded color is a compile-time constant,
	// reported in Color.
	ColorKnown bool
	Color      gpucore.Color

	// InputColorIgnored is set when the paint never reads the input color.
	InputColorIgnored bool

	UsesLocalCoords               bool
	RequiresDstTexture            bool
	RequiresNonOverlappingDraws   bool
	CompatibleWithCoverageAsAlpha bool
}

// ProcessorSet is a paint's color and coverage effects plus its transfer.
type ProcessorSet struct {
	color     *Processor
	coverage  *Processor
	xfer      Xfer
	finalized bool
	analysis  Analysis
}

// NewProcessorSet creates a set. color and coverage may be nil.
func NewProcessorSet(color, coverage *Processor, xfer Xfer) *ProcessorSet {
	return &ProcessorSet{color: color, coverage: coverage, xfer: xfer}
}

// EmptyProcessorSet returns a SrcOver set with no effects.
func EmptyProcessorSet() *ProcessorSet { return NewProcessorSet(nil, nil, SrcOver) }

// Color returns the color effect, nil if none.
func (s *ProcessorSet) Color() *Processor { return s.color }

// Coverage returns the coverage effect, nil if none.
func (s *ProcessorSet) Coverage() *Processor { return s.coverage }

// Xfer returns the transfer, adjusted by Finalize.
func (s *ProcessorSet) Xfer() Xfer { return s.xfer }

// IsFinalized reports whether Finalize ran.
func (s *ProcessorSet) IsFinalized() bool { return s.finalized }

// Analysis returns the result of Finalize.
func (s *ProcessorSet) Analysis() Analysis { return s.analysis }

// Finalize freezes the set against its geometry inputs and clip. It runs
// once; later calls return the first result.
func (s *ProcessorSet) Finalize(in InputColor, cov CoverageInput, clip *AppliedClip,
	caps *gpucore.Caps, clamp gpucore.ClampMode) Analysis {
	if s.finalized {
		return s.analysis
	}
	s.finalized = true

	var a Analysis
	switch {
	case s.color == nil:
		a.ColorKnown, a.Color = in.Known, in.Color
	default:
		a.ColorKnown, a.Color, a.InputColorIgnored = knownColor(s.color, in)
	}

	hasCoverage := cov != CoverageNone || s.coverage != nil || clip.NumCoverage() > 0
	if hasCoverage && !s.xfer.NeedsDstRead() && !s.xfer.CompatibleWithCoverageAsAlpha() {
		s.xfer.ShaderBlend = true
	}
	a.CompatibleWithCoverageAsAlpha = s.xfer.CompatibleWithCoverageAsAlpha() && cov != CoverageLCD

	if s.xfer.NeedsDstRead() && !caps.Shader.InputAttachments {
		a.RequiresDstTexture = true
		a.RequiresNonOverlappingDraws = true
	}
	for _, p := range []*Processor{s.color, s.coverage} {
		if p != nil && p.UsesLocalCoords() {
			a.UsesLocalCoords = true
		}
	}
	if a.ColorKnown && clamp == gpucore.ClampAuto {
		// The target clamps on write, so report what lands in it.
		a.Color = saturate(a.Color)
	}
	s.analysis = a
	return a
}

// knownColor folds trivially constant color trees.
func knownColor(p *Processor, in InputColor) (known bool, c gpucore.Color, ignored bool) {
	u, ok := p.Effect().(*UniformColorEffect)
	if !ok {
		return false, gpucore.Color{}, false
	}
	switch u.mode {
	case ColorIgnoreInput:
		return true, u.color, true
	case ColorModulateRGBA:
		if in.Known {
			return true, gpucore.Color{
				R: in.Color.R * u.color.R, G: in.Color.G * u.color.G,
				B: in.Color.B * u.color.B, A: in.Color.A * u.color.A,
			}, false
		}
	case ColorModulateA:
		if in.Known {
			a := in.Color.A
			return true, gpucore.Color{R: a * u.color.R, G: a * u.color.G, B: a * u.color.B, A: a * u.color.A}, false
		}
	}
	return false, gpucore.Color{}, false
}

// VisitProxies calls fn for every texture in the set.
func (s *ProcessorSet) VisitProxies(fn func(*gpucore.TextureProxy)) {
	if s.color != nil {
		s.color.VisitProxies(fn)
	}
	if s.coverage != nil {
		s.coverage.VisitProxies(fn)
	}
}

// Equal reports whether two sets have equal effects and transfer.
func (s *ProcessorSet) Equal(o *ProcessorSet) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return s.xfer == o.xfer && s.color.Equal(o.color) && s.coverage.Equal(o.coverage)
}

func saturate(c gpucore.Color) gpucore.Color {
	clamp := func(v float32) float32 { return min(max(v, 0), 1) }
	return gpucore.Color{R: clamp(c.R), G: clamp(c.G), B: clamp(c.B), A: clamp(c.A)}
}

package pipeline

import (
	"slices"

	"github.com/gogpu/gpucmd/gpucore"
)

// ScissorState is the scissor part of a hard clip. The rectangle is dynamic
// state; only Enabled is part of the pipeline key.
type ScissorState struct {
	Enabled bool
	Rect    gpucore.ScissorRect
}

// Set enables the scissor with r.
func (s *ScissorState) Set(r gpucore.ScissorRect) {
	s.Enabled = true
	s.Rect = r
}

// WindowRects is a set of window rectangles that include or exclude
// fragments.
type WindowRects struct {
	Rects     []gpucore.ScissorRect
	Exclusive bool
}

// Enabled reports whether any window rectangle is set.
func (w WindowRects) Enabled() bool { return len(w.Rects) > 0 }

// Equal compares rectangles and mode.
func (w WindowRects) Equal(o WindowRects) bool {
	if !w.Enabled() && !o.Enabled() {
		return true
	}
	return w.Exclusive == o.Exclusive && slices.Equal(w.Rects, o.Rects)
}

// HardClip is the clip applied by fixed-function state: scissor, window
// rectangles and a stencil clip bit.
type HardClip struct {
	Scissor     ScissorState
	Windows     WindowRects
	StencilClip bool

	// StencilStackID identifies the stencil clip contents; draws with
	// different ids never share a clip.
	StencilStackID uint32
}

// Equal compares every field.
func (h HardClip) Equal(o HardClip) bool {
	return h.Scissor == o.Scissor && h.Windows.Equal(o.Windows) &&
		h.StencilClip == o.StencilClip && h.StencilStackID == o.StencilStackID
}

// AppliedClip is the clip of one draw: a hard clip plus coverage effects.
type AppliedClip struct {
	Hard     HardClip
	coverage []*Processor
}

// NewAppliedClip returns a clip with only hard state.
func NewAppliedClip(hard HardClip) *AppliedClip {
	return &AppliedClip{Hard: hard}
}

// AddCoverage appends a clip coverage effect.
func (c *AppliedClip) AddCoverage(p *Processor) {
	c.coverage = append(c.coverage, p)
}

// NumCoverage returns the number of clip coverage effects.
func (c *AppliedClip) NumCoverage() int {
	if c == nil {
		return 0
	}
	return len(c.coverage)
}

// Coverage returns clip coverage effect i.
func (c *AppliedClip) Coverage(i int) *Processor { return c.coverage[i] }

// HardClipOrZero returns the hard clip, zero for a nil clip.
func (c *AppliedClip) HardClipOrZero() HardClip {
	if c == nil {
		return HardClip{}
	}
	return c.Hard
}

// ScissorRect returns the scissor rectangle and whether it is enabled.
func (c *AppliedClip) ScissorRect() (gpucore.ScissorRect, bool) {
	if c == nil || !c.Hard.Scissor.Enabled {
		return gpucore.ScissorRect{}, false
	}
	return c.Hard.Scissor.Rect, true
}

// Equal reports whether two clips produce identical results. A nil clip
// equals an empty one.
func (c *AppliedClip) Equal(o *AppliedClip) bool {
	if !c.HardClipOrZero().Equal(o.HardClipOrZero()) {
		return false
	}
	if c.NumCoverage() != o.NumCoverage() {
		return false
	}
	for i := 0; i < c.NumCoverage(); i++ {
		if !c.coverage[i].Equal(o.coverage[i]) {
			return false
		}
	}
	return true
}

// VisitProxies calls fn for every texture the clip samples.
func (c *AppliedClip) VisitProxies(fn func(*gpucore.TextureProxy)) {
	if c == nil {
		return
	}
	for _, p := range c.coverage {
		p.VisitProxies(fn)
	}
}

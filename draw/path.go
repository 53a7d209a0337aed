package draw

import (
	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/debug"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
	"github.com/gogpu/gpucmd/stage"
)

// FillRule selects how winding counts in the stencil become coverage.
type FillRule uint8

const (
	FillNonZero FillRule = iota
	FillEvenOdd
)

// TessellatedPath fills a path in two passes: its triangles count winding
// into the stencil buffer, then a bounding rectangle resolves the stencil
// into color and resets it.
type TessellatedPath struct {
	paint     paint
	fill      FillRule
	view      f32.Aff3
	triangles []f32.Vec2
	color     gpucore.Color
	device    gpucore.Rect

	stencilInfo, coverInfo *program.Info
	vbuf, instance         *renderpass.Buffer
}

// NewTessellatedPath records a path given as a triangle list in local
// space. view maps local to device space; the zero matrix is identity.
// The paint's user stencil is replaced by the fill's stencil settings.
func NewTessellatedPath(p Paint, view f32.Aff3, fill FillRule, triangles []f32.Vec2, color gpucore.Color) Command {
	if view == (f32.Aff3{}) {
		view = identity
	}
	debug.Assert(len(triangles)%3 == 0, "draw: path triangle list is not a multiple of 3")
	p.Stencil = nil
	t := &TessellatedPath{
		paint:     newPaint(p),
		fill:      fill,
		view:      view,
		triangles: triangles,
		color:     color,
	}
	t.device = mapRect(view, boundsOf(triangles))
	return newCommand(KindTessellatedPath, t, t.device)
}

func (t *TessellatedPath) count() int { return 1 }

func (t *TessellatedPath) visitProxies(fn func(*gpucore.TextureProxy)) { t.paint.visitProxies(fn) }

func (t *TessellatedPath) finalize(caps *gpucore.Caps, clip *pipeline.AppliedClip, clamp gpucore.ClampMode) pipeline.Analysis {
	in := pipeline.InputColor{Known: true, Color: t.color}
	return t.paint.finalize(caps, clip, clamp, in, pipeline.CoverageNone)
}

func (t *TessellatedPath) combine(variant, *combineArgs) CombineResult { return CannotCombine }

func (t *TessellatedPath) stencilFill() *pipeline.UserStencil {
	if t.fill == FillEvenOdd {
		return pipeline.StencilEvenOdd
	}
	return pipeline.StencilNonZeroWinding
}

func (t *TessellatedPath) prepare(fs *FlushState, ch *chainState) {
	if len(t.triangles) == 0 {
		return
	}
	st := stage.NewPathStencil(t.view)
	stencilPipeline := pipeline.NewWithHardClip(pipeline.Xfer{Mode: pipeline.BlendDst}, ch.clip.HardClipOrZero(),
		t.paint.flags, fs.WriteSwizzle)
	t.stencilInfo = fs.newInfo(st, stencilPipeline, resolveStencil(t.stencilFill(), fs, ch),
		gputypes.PrimitiveTopologyTriangleList)
	t.vbuf = fs.buffer(len(t.triangles) * st.VertexAttributes().Stride())
	w := vertexWriter{buf: t.vbuf.Data}
	for _, p := range t.triangles {
		w.vec2(p)
	}

	inv, _ := invert(t.view)
	cover := stage.NewBoundingBoxCover(inv, t.paint.usesLocalCoords())
	t.coverInfo = fs.newInfo(cover, t.paint.makePipeline(fs, ch), resolveStencil(pipeline.StencilCoverNonZero, fs, ch),
		gputypes.PrimitiveTopologyTriangleStrip)
	t.instance = fs.buffer(cover.InstanceAttributes().Stride())
	w = vertexWriter{buf: t.instance.Data}
	w.rect(t.device)
	w.color(t.color)
	debug.Assert(w.done(), "draw: cover instance data size mismatch")
}

func (t *TessellatedPath) execute(fs *FlushState, ch *chainState) {
	if len(t.triangles) == 0 {
		return
	}
	bind(fs, ch, t.stencilInfo)
	fs.Pass.BindBuffers(nil, nil, t.vbuf)
	fs.Pass.Draw(uint32(len(t.triangles)), 0)

	bind(fs, ch, t.coverInfo)
	bindTextures(fs, t.coverInfo)
	fs.Pass.BindBuffers(nil, t.instance, nil)
	fs.Pass.DrawInstanced(1, 0, 4, 0)
}

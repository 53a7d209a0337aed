package draw

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/debug"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
	"github.com/gogpu/gpucmd/stage"
)

// Quad is one quadrilateral of a TexturedQuads command. Corners are
// ordered top-left, bottom-left, top-right, bottom-right.
type Quad struct {
	// Device holds projected device positions.
	Device [4]f32.Vec2

	// W holds per-corner perspective w. All zero means affine.
	W [4]float32

	// Local holds normalized texture coordinates.
	Local [4]f32.Vec2

	// Subset is the texture-space rectangle sampling is clamped to when
	// the command uses subsets.
	Subset gpucore.Rect

	Color gpucore.Color
}

// RectQuad returns an axis-aligned quad sampling tex (normalized) over
// device.
func RectQuad(device, tex gpucore.Rect, color gpucore.Color) Quad {
	return Quad{
		Device: corners(device),
		Local:  corners(tex),
		Subset: tex,
		Color:  color,
	}
}

func corners(r gpucore.Rect) [4]f32.Vec2 {
	return [4]f32.Vec2{{r.Left, r.Top}, {r.Left, r.Bottom}, {r.Right, r.Top}, {r.Right, r.Bottom}}
}

func (q *Quad) perspective() bool {
	for _, w := range q.W {
		if w != 0 && w != 1 {
			return true
		}
	}
	return false
}

func (q *Quad) w(i int) float32 {
	if q.W[i] == 0 {
		return 1
	}
	return q.W[i]
}

// QuadTexture is the texture state of a TexturedQuads command.
type QuadTexture struct {
	Proxy   *gpucore.TextureProxy
	Sampler gpucore.SamplerState
	Swizzle gpucore.Swizzle

	// Xform converts sampled colors to the target color space. Nil means
	// no conversion.
	Xform *gpucore.ColorSpaceXform

	// Subset clamps each quad's sampling to its Subset rectangle.
	Subset bool

	Saturate bool
}

// TexturedQuads draws textured quads with per-edge anti-aliasing.
type TexturedQuads struct {
	paint paint
	tex   QuadTexture
	quads []Quad

	// Set by prepare. Chained commands share the head's buffers and info.
	info        *program.Info
	vertices    *renderpass.Buffer
	indices     *renderpass.Buffer
	firstVertex int
	aa          bool
}

// NewTexturedQuads records quads sampling tex.
func NewTexturedQuads(p Paint, tex QuadTexture, quads ...Quad) Command {
	t := &TexturedQuads{paint: newPaint(p), tex: tex, quads: quads}
	if t.tex.Swizzle == (gpucore.Swizzle{}) {
		t.tex.Swizzle = gpucore.SwizzleRGBA
	}
	var b gpucore.Rect
	for i := range quads {
		b = b.Join(quadBounds(&quads[i]))
	}
	if p.AA == gpucore.AACoverage {
		b = outset(b, 0.5)
	}
	return newCommand(KindTexturedQuads, t, b)
}

func quadBounds(q *Quad) gpucore.Rect {
	var pts [4]f32.Vec2
	for i := range pts {
		w := q.w(i)
		pts[i] = f32.Vec2{q.Device[i][0] / w, q.Device[i][1] / w}
		if !q.perspective() {
			pts[i] = q.Device[i]
		}
	}
	return boundsOf(pts[:])
}

func outset(r gpucore.Rect, d float32) gpucore.Rect {
	return gpucore.Rect{Left: r.Left - d, Top: r.Top - d, Right: r.Right + d, Bottom: r.Bottom + d}
}

func (t *TexturedQuads) count() int { return len(t.quads) }

func (t *TexturedQuads) visitProxies(fn func(*gpucore.TextureProxy)) {
	fn(t.tex.Proxy)
	t.paint.visitProxies(fn)
}

func (t *TexturedQuads) finalize(caps *gpucore.Caps, clip *pipeline.AppliedClip, clamp gpucore.ClampMode) pipeline.Analysis {
	return t.paint.finalize(caps, clip, clamp, pipeline.InputColor{}, coverageFor(t.paint.aa))
}

// quadsOverflow reports whether n quads exceed what one draw of the given
// AA class may hold.
func quadsOverflow(caps *gpucore.Caps, aa gpucore.AAType, n int) bool {
	limit := caps.MaxQuadsNonAA
	if aa == gpucore.AACoverage {
		limit = caps.MaxQuadsCoverageAA
	}
	return n > min(limit, maxIndexedQuads)
}

func (t *TexturedQuads) combine(that variant, args *combineArgs) CombineResult {
	o := that.(*TexturedQuads)
	if !t.paint.compatible(&o.paint, true) {
		return CannotCombine
	}
	if t.tex.Subset != o.tex.Subset {
		return CannotCombine
	}
	if !gpucore.ColorSpaceXformEqual(t.tex.Xform, o.tex.Xform) {
		return CannotCombine
	}
	aa := t.paint.aa
	if t.paint.aa != o.paint.aa {
		if !gpucore.CanUpgradeAAOnMerge(t.paint.aa, o.paint.aa) {
			return CannotCombine
		}
		aa = gpucore.AACoverage
	}
	if quadsOverflow(args.caps, aa, args.thisChain+args.thatChain) {
		return CannotCombine
	}
	if t.tex.Saturate != o.tex.Saturate {
		return CannotCombine
	}
	if t.tex.Sampler.Filter != o.tex.Sampler.Filter || t.tex.Sampler.Address != o.tex.Sampler.Address {
		return CannotCombine
	}
	if t.tex.Sampler.Mipmap != o.tex.Sampler.Mipmap {
		return CannotCombine
	}
	if t.tex.Swizzle != o.tex.Swizzle {
		return CannotCombine
	}
	if t.tex.Proxy.ID != o.tex.Proxy.ID {
		if !args.caps.DynamicStateTextures ||
			!gpucore.ProxiesCompatibleAsDynamicState(t.tex.Proxy, o.tex.Proxy) ||
			t.paint.aa != o.paint.aa {
			return CannotCombine
		}
		return MayChain
	}
	t.quads = append(t.quads, o.quads...)
	o.quads = nil
	t.paint.aa = aa
	return Merged
}

func (t *TexturedQuads) aaType() gpucore.AAType      { return t.paint.aa }
func (t *TexturedQuads) setAAType(aa gpucore.AAType) { t.paint.aa = aa }

// chainSpec derives the one program every command of the chain draws
// with. Coverage AA anywhere in the chain upgrades the whole chain.
func (t *TexturedQuads) chainSpec(ch *chainState) (stage.QuadSpec, int) {
	spec := stage.QuadSpec{HasLocalCoords: true, Subset: t.tex.Subset, Saturate: t.tex.Saturate}
	opaqueWhite := gpucore.Color{R: 1, G: 1, B: 1, A: 1}
	maxQuads := 0
	ch.each(func(c *Command) {
		q := c.op.(*TexturedQuads)
		if q.paint.aa == gpucore.AACoverage {
			spec.CoverageAA = true
		}
		for i := range q.quads {
			if q.quads[i].perspective() {
				spec.Perspective = true
			}
			if q.quads[i].Color != opaqueWhite {
				spec.Color = stage.ColorByte
			}
		}
		maxQuads = max(maxQuads, len(q.quads))
	})
	return spec, maxQuads
}

func (t *TexturedQuads) prepare(fs *FlushState, ch *chainState) {
	spec, maxQuads := t.chainSpec(ch)
	debug.Assertf(maxQuads <= maxIndexedQuads, "draw: %d quads in one draw", maxQuads)
	sampler := stage.SamplerFor(t.tex.Proxy, t.tex.Sampler, t.tex.Swizzle)
	desc := stage.NewQuadPerEdgeAA(spec, &sampler, t.tex.Xform)
	t.info = fs.newInfo(desc, t.paint.makePipeline(fs, ch), t.paint.stencilSettings(fs, ch),
		quadTopology)
	t.aa = spec.CoverageAA

	total := 0
	ch.each(func(c *Command) { total += len(c.op.(*TexturedQuads).quads) })
	vpq := spec.VerticesPerQuad()
	t.vertices = fs.buffer(total * vpq * desc.VertexAttributes().Stride())
	t.indices = fs.quadIndexBuffer(t.aa, max(maxQuads, 1))

	w := vertexWriter{buf: t.vertices.Data}
	first := 0
	ch.each(func(c *Command) {
		q := c.op.(*TexturedQuads)
		q.firstVertex = first
		for i := range q.quads {
			writeQuad(&w, &q.quads[i], spec)
		}
		first += len(q.quads) * vpq
	})
	debug.Assert(w.done(), "draw: quad vertex data size mismatch")
}

func (t *TexturedQuads) execute(fs *FlushState, ch *chainState) {
	bind(fs, ch, t.info)
	perQuad := len(quadIndices)
	if t.aa {
		perQuad = len(aaQuadIndices)
	}
	ch.each(func(c *Command) {
		q := c.op.(*TexturedQuads)
		if len(q.quads) == 0 {
			return
		}
		bindTextures(fs, t.info, q.tex.Proxy)
		fs.Pass.BindBuffers(t.indices, nil, t.vertices)
		fs.Pass.DrawIndexed(uint32(len(q.quads)*perQuad), 0, int32(q.firstVertex))
	})
}

// writeQuad emits 4 corners, or an inner ring at full coverage and an
// outer ring at zero coverage for AA.
func writeQuad(w *vertexWriter, q *Quad, spec stage.QuadSpec) {
	if !spec.CoverageAA {
		for i := 0; i < 4; i++ {
			writeCorner(w, q, spec, q.Device[i], q.Local[i], q.w(i), 1)
		}
		return
	}
	var dc, lc f32.Vec2
	for i := 0; i < 4; i++ {
		dc[0] += q.Device[i][0] / 4
		dc[1] += q.Device[i][1] / 4
		lc[0] += q.Local[i][0] / 4
		lc[1] += q.Local[i][1] / 4
	}
	for _, ring := range [...]struct {
		sign, cov float32
	}{{-0.5, 1}, {0.5, 0}} {
		for i := 0; i < 4; i++ {
			d := f32.Vec2{q.Device[i][0] - dc[0], q.Device[i][1] - dc[1]}
			step := f32.Vec2{sign(d[0]) * ring.sign, sign(d[1]) * ring.sign}
			dev := f32.Vec2{q.Device[i][0] + step[0], q.Device[i][1] + step[1]}
			local := q.Local[i]
			if n := float32(math.Hypot(float64(d[0]), float64(d[1]))); n > 0 {
				s := float32(math.Hypot(float64(step[0]), float64(step[1]))) / n
				if ring.sign < 0 {
					s = -s
				}
				local = f32.Vec2{local[0] + (local[0]-lc[0])*s, local[1] + (local[1]-lc[1])*s}
			}
			writeCorner(w, q, spec, dev, local, q.w(i), ring.cov)
		}
	}
}

func writeCorner(w *vertexWriter, q *Quad, spec stage.QuadSpec, dev, local f32.Vec2, pw, cov float32) {
	if spec.Perspective {
		w.f32(dev[0]*pw, dev[1]*pw, pw)
	} else {
		w.vec2(dev)
	}
	if spec.CoverageAA {
		w.f32(cov)
	}
	if spec.Color == stage.ColorByte {
		w.color(q.Color)
	}
	w.vec2(local)
	if spec.Subset {
		w.rect(q.Subset)
	}
}

func sign(v float32) float32 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

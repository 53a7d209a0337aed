package draw

import (
	"github.com/go-text/typesetting/font"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/debug"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
	"github.com/gogpu/gpucmd/stage"
)

// Glyph is one positioned glyph whose mask lives in an atlas page.
type Glyph struct {
	ID font.GID

	// Device is the glyph quad in device space. Its size equals the mask
	// size in texels.
	Device gpucore.Rect

	// Atlas is the top-left texel of the mask inside page Page.
	Atlas [2]uint16
	Page  uint8
}

// GlyphRun is a run of glyphs drawn with one color from one atlas.
type GlyphRun struct {
	Format  stage.MaskFormat
	Pages   []*gpucore.TextureProxy
	Sampler gpucore.SamplerState

	// Local maps device space back to local space. The zero matrix is
	// identity.
	Local f32.Aff3

	// Color is ignored for MaskARGB.
	Color  gpucore.Color
	Glyphs []Glyph
}

type glyphRun struct {
	color  gpucore.Color
	glyphs []Glyph
}

// Glyphs draws runs of atlas glyphs.
type Glyphs struct {
	paint   paint
	format  stage.MaskFormat
	pages   []*gpucore.TextureProxy
	sampler gpucore.SamplerState
	local   f32.Aff3
	runs    []glyphRun
	n       int

	info       *program.Info
	vbuf, ibuf *renderpass.Buffer
}

// NewGlyphs records a glyph run drawn with p.
func NewGlyphs(p Paint, run GlyphRun) Command {
	local := run.Local
	if local == (f32.Aff3{}) {
		local = identity
	}
	g := &Glyphs{
		paint:   newPaint(p),
		format:  run.Format,
		pages:   append([]*gpucore.TextureProxy(nil), run.Pages...),
		sampler: run.Sampler,
		local:   local,
		runs:    []glyphRun{{color: run.Color, glyphs: run.Glyphs}},
		n:       len(run.Glyphs),
	}
	var b gpucore.Rect
	for _, gl := range run.Glyphs {
		debug.Assertf(int(gl.Page) < len(run.Pages), "draw: glyph %d on page %d of %d", gl.ID, gl.Page, len(run.Pages))
		b = b.Join(gl.Device)
	}
	return newCommand(KindGlyphs, g, b)
}

func (g *Glyphs) count() int { return g.n }

func (g *Glyphs) visitProxies(fn func(*gpucore.TextureProxy)) {
	for _, p := range g.pages {
		fn(p)
	}
	g.paint.visitProxies(fn)
}

func (g *Glyphs) finalize(caps *gpucore.Caps, clip *pipeline.AppliedClip, clamp gpucore.ClampMode) pipeline.Analysis {
	var in pipeline.InputColor
	cov := pipeline.CoverageSingleChannel
	switch g.format {
	case stage.MaskARGB:
		cov = pipeline.CoverageNone
	case stage.MaskLCD:
		cov = pipeline.CoverageLCD
		in = pipeline.InputColor{Known: true, Color: g.runs[0].color}
	default:
		in = pipeline.InputColor{Known: true, Color: g.runs[0].color}
	}
	return g.paint.finalize(caps, clip, clamp, in, cov)
}

// pageIndex returns the index of p among pages, or -1.
func pageIndex(pages []*gpucore.TextureProxy, p *gpucore.TextureProxy) int {
	for i, q := range pages {
		if q.ID == p.ID {
			return i
		}
	}
	return -1
}

func (g *Glyphs) combine(that variant, args *combineArgs) CombineResult {
	o := that.(*Glyphs)
	if g.format != o.format || !sameMatrix(g.local, o.local) || g.sampler != o.sampler {
		return CannotCombine
	}
	if !g.paint.compatible(&o.paint, false) {
		return CannotCombine
	}
	if quadsOverflow(args.caps, gpucore.AANone, args.thisChain+args.thatChain) {
		return CannotCombine
	}

	remap := make([]uint8, len(o.pages))
	union := g.pages
	for i, p := range o.pages {
		j := pageIndex(union, p)
		if j < 0 {
			if len(union) == stage.MaxGlyphAtlasViews ||
				!gpucore.ProxiesCompatibleAsDynamicState(union[0], p) {
				return CannotCombine
			}
			union = append(union, p)
			j = len(union) - 1
		}
		remap[i] = uint8(j)
	}
	g.pages = union
	for _, r := range o.runs {
		glyphs := make([]Glyph, len(r.glyphs))
		for i, gl := range r.glyphs {
			gl.Page = remap[gl.Page]
			glyphs[i] = gl
		}
		g.runs = append(g.runs, glyphRun{color: r.color, glyphs: glyphs})
	}
	g.n += o.n
	o.runs, o.n = nil, 0
	return Merged
}

func (g *Glyphs) prepare(fs *FlushState, ch *chainState) {
	if g.n == 0 {
		return
	}
	desc := stage.NewGlyph(g.format, g.pages, g.sampler, g.local)
	g.info = fs.newInfo(desc, g.paint.makePipeline(fs, ch), g.paint.stencilSettings(fs, ch),
		quadTopology)
	g.vbuf = fs.buffer(g.n * 4 * desc.VertexAttributes().Stride())
	g.ibuf = fs.quadIndexBuffer(false, min(g.n, maxIndexedQuads))

	w := vertexWriter{buf: g.vbuf.Data}
	for _, r := range g.runs {
		for _, gl := range r.glyphs {
			writeGlyph(&w, g.format, r.color, gl)
		}
	}
	debug.Assert(w.done(), "draw: glyph vertex data size mismatch")
}

// writeGlyph emits the four corners of gl. Texture coordinates carry the
// page index in their low bits.
func writeGlyph(w *vertexWriter, format stage.MaskFormat, color gpucore.Color, gl Glyph) {
	d := gl.Device
	u0, v0 := gl.Atlas[0], gl.Atlas[1]
	u1 := u0 + uint16(d.Right-d.Left)
	v1 := v0 + uint16(d.Bottom-d.Top)
	pu, pv := uint16(gl.Page&1), uint16(gl.Page>>1)
	for _, c := range [4]struct {
		x, y float32
		u, v uint16
	}{
		{d.Left, d.Top, u0, v0},
		{d.Left, d.Bottom, u0, v1},
		{d.Right, d.Top, u1, v0},
		{d.Right, d.Bottom, u1, v1},
	} {
		w.f32(c.x, c.y)
		if format != stage.MaskARGB {
			w.color(color)
		}
		w.u16x2(c.u<<1|pu, c.v<<1|pv)
	}
}

func (g *Glyphs) execute(fs *FlushState, ch *chainState) {
	if g.n == 0 {
		return
	}
	bind(fs, ch, g.info)
	bindTextures(fs, g.info, g.pages...)
	fs.Pass.BindBuffers(g.ibuf, nil, g.vbuf)
	for first := 0; first < g.n; first += maxIndexedQuads {
		n := min(g.n-first, maxIndexedQuads)
		fs.Pass.DrawIndexed(uint32(n*len(quadIndices)), 0, int32(first*4))
	}
}

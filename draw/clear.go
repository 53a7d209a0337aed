package draw

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
	"github.com/gogpu/gpucmd/stage"
)

// Clear fills the target, or a scissored part of it, with one color.
type Clear struct {
	color   gpucore.Color
	scissor pipeline.ScissorState

	info *program.Info
	vbuf *renderpass.Buffer
}

// NewClear records a clear. A nil scissor clears the whole target; such
// a clear at the start of a flush becomes the pass load op.
func NewClear(color gpucore.Color, scissor *gpucore.ScissorRect) Command {
	c := &Clear{color: color}
	bounds := unbounded
	if scissor != nil {
		c.scissor.Set(*scissor)
		bounds = gpucore.RectXYWH(float32(scissor.X), float32(scissor.Y),
			float32(scissor.Width), float32(scissor.Height))
	}
	return newCommand(KindClear, c, bounds)
}

func (c *Clear) count() int { return 1 }

func (c *Clear) visitProxies(func(*gpucore.TextureProxy)) {}

func (c *Clear) finalize(*gpucore.Caps, *pipeline.AppliedClip, gpucore.ClampMode) pipeline.Analysis {
	return pipeline.Analysis{ColorKnown: true, Color: c.color, InputColorIgnored: true}
}

func (c *Clear) combine(that variant, _ *combineArgs) CombineResult {
	o := that.(*Clear)
	if c.scissor != o.scissor {
		return CannotCombine
	}
	c.color = o.color
	return Merged
}

// prepare builds the draw used when the clear cannot be a load op: two
// triangles over the target written with BlendSrc.
func (c *Clear) prepare(fs *FlushState, ch *chainState) {
	w, h := float32(fs.Target.Width), float32(fs.Target.Height)
	desc := stage.NewMesh(identity, false, false, c.color)
	pl := pipeline.NewTrivial(c.scissor.Enabled, pipeline.Xfer{Mode: pipeline.BlendSrc}, 0)
	c.info = fs.newInfo(desc, pl, pipeline.StencilSettings{}, quadTopology)
	c.vbuf = fs.buffer(6 * desc.VertexAttributes().Stride())
	vw := vertexWriter{buf: c.vbuf.Data}
	for _, p := range [...]f32.Vec2{{0, 0}, {0, h}, {w, 0}, {w, 0}, {0, h}, {w, h}} {
		vw.vec2(p)
	}
}

func (c *Clear) execute(fs *FlushState, ch *chainState) {
	if !fs.Pass.BindPipeline(c.info, ch.bounds) {
		return
	}
	if c.scissor.Enabled {
		fs.Pass.SetScissorRect(c.scissor.Rect)
	}
	fs.Pass.BindBuffers(nil, nil, c.vbuf)
	fs.Pass.Draw(6, 0)
}

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

// AtlasPath is a path whose coverage mask was rasterized into an atlas.
type AtlasPath struct {
	// Device is the fill bounds in device space.
	Device gpucore.Rect

	// Atlas is the texel position of the mask's top-left corner.
	Atlas f32.Vec2

	Color gpucore.Color
}

// AtlasPaths covers paths from one atlas page, one instance per path.
type AtlasPaths struct {
	paint paint
	atlas *gpucore.TextureProxy
	paths []AtlasPath

	info *program.Info
	ibuf *renderpass.Buffer
}

// NewAtlasPaths records paths masked by atlas.
func NewAtlasPaths(p Paint, atlas *gpucore.TextureProxy, paths ...AtlasPath) Command {
	a := &AtlasPaths{paint: newPaint(p), atlas: atlas, paths: paths}
	var b gpucore.Rect
	for _, path := range paths {
		b = b.Join(path.Device)
	}
	return newCommand(KindAtlasPaths, a, b)
}

func (a *AtlasPaths) count() int { return len(a.paths) }

func (a *AtlasPaths) visitProxies(fn func(*gpucore.TextureProxy)) {
	fn(a.atlas)
	a.paint.visitProxies(fn)
}

func (a *AtlasPaths) finalize(caps *gpucore.Caps, clip *pipeline.AppliedClip, clamp gpucore.ClampMode) pipeline.Analysis {
	return a.paint.finalize(caps, clip, clamp, pipeline.InputColor{}, pipeline.CoverageSingleChannel)
}

func (a *AtlasPaths) combine(that variant, _ *combineArgs) CombineResult {
	o := that.(*AtlasPaths)
	if a.atlas.ID != o.atlas.ID || !a.paint.compatible(&o.paint, false) {
		return CannotCombine
	}
	a.paths = append(a.paths, o.paths...)
	o.paths = nil
	return Merged
}

func (a *AtlasPaths) prepare(fs *FlushState, ch *chainState) {
	if len(a.paths) == 0 {
		return
	}
	desc := stage.NewAtlasInstance(a.atlas)
	a.info = fs.newInfo(desc, a.paint.makePipeline(fs, ch), a.paint.stencilSettings(fs, ch),
		gputypes.PrimitiveTopologyTriangleStrip)
	a.ibuf = fs.buffer(len(a.paths) * desc.InstanceAttributes().Stride())
	w := vertexWriter{buf: a.ibuf.Data}
	for _, p := range a.paths {
		w.rect(p.Device)
		w.vec2(p.Atlas)
		w.color(p.Color)
	}
	debug.Assert(w.done(), "draw: atlas instance data size mismatch")
}

func (a *AtlasPaths) execute(fs *FlushState, ch *chainState) {
	if len(a.paths) == 0 {
		return
	}
	bind(fs, ch, a.info)
	bindTextures(fs, a.info, a.atlas)
	fs.Pass.BindBuffers(nil, a.ibuf, nil)
	fs.Pass.DrawInstanced(uint32(len(a.paths)), 0, 4, 0)
}

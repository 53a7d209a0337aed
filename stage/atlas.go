package stage

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// AtlasInstance covers one path per instance using coverage rasterized
// into an atlas page. Each instance carries its device bounds, the
// location of its mask in the atlas, and a color.
type AtlasInstance struct {
	base
	atlas *gpucore.TextureProxy

	fillBounds, atlasLoc, color Attribute
}

// NewAtlasInstance creates the descriptor sampling atlas with nearest
// filtering.
func NewAtlasInstance(atlas *gpucore.TextureProxy) *AtlasInstance {
	a := &AtlasInstance{atlas: atlas}
	a.name = "AtlasInstance"
	a.classID = ClassAtlasInstance
	a.fillBounds = NewAttribute("fillBounds", VertexFloat4, emit.Float4)
	a.atlasLoc = NewAttribute("atlasLoc", VertexFloat2, emit.Float2)
	a.color = NewAttribute("color", VertexUByte4Norm, emit.Float4)
	a.instanceAttrs = Implicit(a.fillBounds, a.atlasLoc, a.color)
	a.samplers = []Sampler{SamplerFor(atlas, gpucore.DefaultSampler, gpucore.Swizzle{'r', 'r', 'r', 'r'})}
	return a
}

// Atlas returns the sampled atlas page.
func (a *AtlasInstance) Atlas() *gpucore.TextureProxy { return a.atlas }

func (a *AtlasInstance) AddToKey(*gpucore.ShaderCaps, *gpucore.KeyBuilder) {}

func (a *AtlasInstance) MakeProgramImpl(*gpucore.ShaderCaps) ProgramImpl {
	return &atlasImpl{fillBounds: a.fillBounds, atlasLoc: a.atlasLoc, color: a.color, atlasU: emit.InvalidUniform}
}

type atlasImpl struct {
	fillBounds, atlasLoc, color Attribute
	atlasU                      emit.UniformHandle
}

func (impl *atlasImpl) EmitCode(args *EmitArgs) EmitResult {
	vs, fs := args.Vert, args.Frag
	bounds := Input(impl.fillBounds)
	emitCorner(vs, bounds)

	var inv string
	impl.atlasU, inv = args.Uniforms.Add(emit.VisibleVertex, emit.Float2, "atlasSizeInv")
	uv := args.Varyings.Add("atlasCoord", emit.Float2)
	vs.Codef("%s = (%s + (corner - %s.xy)) * %s;", uv.VSOut(), Input(impl.atlasLoc), bounds, inv)

	col := args.Varyings.AddPassThrough(vs, "color", emit.Float4, Input(impl.color))
	fs.Codef("%s = %s;", args.OutputColor, col.FSIn())
	fs.Codef("%s = vec4<f32>(%s.a);", args.OutputCoverage, sampleLevel(args.Samplers[0], uv.FSIn()))
	return EmitResult{
		Position:    emit.Var{Name: "corner", Type: emit.Float2},
		LocalCoords: emit.Var{Name: "corner", Type: emit.Float2},
	}
}

func (impl *atlasImpl) SetData(dm *emit.DataManager, _ *gpucore.ShaderCaps, d Descriptor) {
	a := d.(*AtlasInstance).atlas
	dm.Set2f(impl.atlasU, f32.Vec2{1 / float32(a.Width), 1 / float32(a.Height)})
}

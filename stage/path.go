package stage

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// PathStencil writes tessellated path triangles into the stencil buffer.
// It produces no color; the pipeline disables color writes.
type PathStencil struct {
	base
	view     f32.Aff3
	position Attribute
}

// NewPathStencil creates a stencil-only path descriptor.
func NewPathStencil(view f32.Aff3) *PathStencil {
	p := &PathStencil{view: view}
	p.name = "PathStencil"
	p.classID = ClassPathStencil
	p.position = NewAttribute("position", VertexFloat2, emit.Float2)
	p.vertexAttrs = Implicit(p.position)
	return p
}

func (p *PathStencil) AddToKey(_ *gpucore.ShaderCaps, b *gpucore.KeyBuilder) {
	b.AddBool(isIdentity(p.view))
}

func (p *PathStencil) MakeProgramImpl(*gpucore.ShaderCaps) ProgramImpl {
	return &pathStencilImpl{position: p.position, identity: isIdentity(p.view), viewU: emit.InvalidUniform}
}

type pathStencilImpl struct {
	position Attribute
	identity bool
	viewU    emit.UniformHandle
}

func (impl *pathStencilImpl) EmitCode(args *EmitArgs) EmitResult {
	pos := Input(impl.position)
	res := EmitResult{Position: emit.Var{Name: pos, Type: emit.Float2}}
	if !impl.identity {
		var view string
		impl.viewU, view = args.Uniforms.Add(emit.VisibleVertex, emit.Float3x3, "view")
		args.Vert.Codef("let devicePos = (%s * vec3<f32>(%s, 1.0)).xy;", view, pos)
		res.Position.Name = "devicePos"
	}
	args.Frag.Codef("%s = vec4<f32>(1.0);", args.OutputColor)
	args.Frag.Codef("%s = vec4<f32>(1.0);", args.OutputCoverage)
	return res
}

func (impl *pathStencilImpl) SetData(dm *emit.DataManager, _ *gpucore.ShaderCaps, d Descriptor) {
	if impl.viewU.IsValid() {
		dm.SetAffine(impl.viewU, d.(*PathStencil).view)
	}
}

// BoundingBoxCover draws one instanced rectangle per path to resolve a
// stencilled path into color. The four corners come from vertex_index.
type BoundingBoxCover struct {
	base
	inv   f32.Aff3
	local bool

	bounds, color Attribute
}

// NewBoundingBoxCover creates a cover descriptor. bounds are device-space
// rectangles; when localCoords is set, inv maps them back to local space.
func NewBoundingBoxCover(inv f32.Aff3, localCoords bool) *BoundingBoxCover {
	c := &BoundingBoxCover{inv: inv, local: localCoords}
	c.name = "BoundingBoxCover"
	c.classID = ClassBoundingBoxCover
	c.bounds = NewAttribute("bounds", VertexFloat4, emit.Float4)
	c.color = NewAttribute("color", VertexUByte4Norm, emit.Float4)
	c.instanceAttrs = Implicit(c.bounds, c.color)
	return c
}

func (c *BoundingBoxCover) AddToKey(_ *gpucore.ShaderCaps, b *gpucore.KeyBuilder) {
	b.AddBool(c.local)
}

func (c *BoundingBoxCover) MakeProgramImpl(*gpucore.ShaderCaps) ProgramImpl {
	return &coverImpl{bounds: c.bounds, color: c.color, local: c.local, invU: emit.InvalidUniform}
}

type coverImpl struct {
	bounds, color Attribute
	local         bool
	invU          emit.UniformHandle
}

func (impl *coverImpl) EmitCode(args *EmitArgs) EmitResult {
	vs, fs := args.Vert, args.Frag
	emitCorner(vs, Input(impl.bounds))
	res := EmitResult{Position: emit.Var{Name: "corner", Type: emit.Float2}}
	if impl.local {
		var inv string
		impl.invU, inv = args.Uniforms.Add(emit.VisibleVertex, emit.Float3x3, "inverseView")
		vs.Codef("let localCoords = (%s * vec3<f32>(corner, 1.0)).xy;", inv)
		res.LocalCoords = emit.Var{Name: "localCoords", Type: emit.Float2}
	}
	v := args.Varyings.AddPassThrough(vs, "color", emit.Float4, Input(impl.color))
	fs.Codef("%s = %s;", args.OutputColor, v.FSIn())
	fs.Codef("%s = vec4<f32>(1.0);", args.OutputCoverage)
	return res
}

func (impl *coverImpl) SetData(dm *emit.DataManager, _ *gpucore.ShaderCaps, d Descriptor) {
	if impl.invU.IsValid() {
		dm.SetAffine(impl.invU, d.(*BoundingBoxCover).inv)
	}
}

// emitCorner declares `corner`, the vertex_index-th corner of the
// triangle-strip rectangle rect (left, top, right, bottom).
func emitCorner(vs *emit.ShaderBuilder, rect string) {
	vs.Code("let cornerSel = vec2<f32>(f32(in.vertex_index & 1u), f32(in.vertex_index >> 1u));")
	vs.Codef("let corner = mix(%s.xy, %s.zw, cornerSel);", rect, rect)
}

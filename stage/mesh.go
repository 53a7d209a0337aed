package stage

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// Mesh draws arbitrary triangles with optional per-vertex color and local
// coordinates.
type Mesh struct {
	base
	view  f32.Aff3
	color gpucore.Color

	position, vertColor, localCoord Attribute
}

// NewMesh creates a mesh descriptor. When perVertexColor is false every
// vertex is drawn with color.
func NewMesh(view f32.Aff3, perVertexColor, localCoords bool, color gpucore.Color) *Mesh {
	m := &Mesh{view: view, color: color}
	m.name = "Mesh"
	m.classID = ClassMesh
	m.position = NewAttribute("position", VertexFloat2, emit.Float2)
	if perVertexColor {
		m.vertColor = NewAttribute("color", VertexUByte4Norm, emit.Float4)
	}
	if localCoords {
		m.localCoord = NewAttribute("localCoord", VertexFloat2, emit.Float2)
	}
	m.vertexAttrs = Implicit(m.position, m.vertColor, m.localCoord)
	return m
}

// View returns the local-to-device transform.
func (m *Mesh) View() f32.Aff3 { return m.view }

func (m *Mesh) AddToKey(_ *gpucore.ShaderCaps, b *gpucore.KeyBuilder) {
	b.AddBool(m.vertColor.IsInitialized())
	b.AddBool(m.localCoord.IsInitialized())
	b.AddBool(isIdentity(m.view))
}

func (m *Mesh) MakeProgramImpl(*gpucore.ShaderCaps) ProgramImpl {
	return &meshImpl{
		position:     m.position,
		vertColor:    m.vertColor,
		localCoord:   m.localCoord,
		viewIdentity: isIdentity(m.view),
		viewU:        emit.InvalidUniform,
		colorU:       emit.InvalidUniform,
	}
}

type meshImpl struct {
	position, vertColor, localCoord Attribute
	viewIdentity                    bool

	viewU, colorU emit.UniformHandle
}

func (impl *meshImpl) EmitCode(args *EmitArgs) EmitResult {
	vs, fs := args.Vert, args.Frag
	var res EmitResult

	pos := Input(impl.position)
	if impl.viewIdentity {
		res.Position = emit.Var{Name: pos, Type: emit.Float2}
	} else {
		var view string
		impl.viewU, view = args.Uniforms.Add(emit.VisibleVertex, emit.Float3x3, "view")
		vs.Codef("let devicePos = (%s * vec3<f32>(%s, 1.0)).xy;", view, pos)
		res.Position = emit.Var{Name: "devicePos", Type: emit.Float2}
	}
	if impl.localCoord.IsInitialized() {
		res.LocalCoords = emit.Var{Name: Input(impl.localCoord), Type: emit.Float2}
	} else {
		res.LocalCoords = emit.Var{Name: pos, Type: emit.Float2}
	}

	if impl.vertColor.IsInitialized() {
		v := args.Varyings.AddPassThrough(vs, "color", emit.Float4, Input(impl.vertColor))
		fs.Codef("%s = %s;", args.OutputColor, v.FSIn())
	} else {
		var c string
		impl.colorU, c = args.Uniforms.Add(emit.VisibleFragment, emit.Float4, "color")
		fs.Codef("%s = %s;", args.OutputColor, c)
	}
	fs.Codef("%s = vec4<f32>(1.0);", args.OutputCoverage)
	return res
}

func (impl *meshImpl) SetData(dm *emit.DataManager, _ *gpucore.ShaderCaps, d Descriptor) {
	m := d.(*Mesh)
	if impl.viewU.IsValid() {
		dm.SetAffine(impl.viewU, m.view)
	}
	if impl.colorU.IsValid() {
		dm.Set4f(impl.colorU, [4]float32{m.color.R, m.color.G, m.color.B, m.color.A})
	}
}

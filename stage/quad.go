package stage

import (
	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// ColorKind is how per-vertex color is stored.
type ColorKind uint8

const (
	// ColorNone means every vertex is opaque white.
	ColorNone ColorKind = iota
	// ColorByte stores Unorm8x4 premultiplied color.
	ColorByte
)

// QuadSpec is the feature combination of one quad-per-edge-AA program.
type QuadSpec struct {
	Perspective    bool // device positions carry w
	HasLocalCoords bool
	Color          ColorKind
	CoverageAA     bool // per-vertex coverage attribute
	Subset         bool // clamp texture coords to a subset rectangle
	Saturate       bool // clamp output color to [0,1]
}

// VerticesPerQuad returns 8 for coverage AA (inner and outer ring) and 4
// otherwise.
func (s QuadSpec) VerticesPerQuad() int {
	if s.CoverageAA {
		return 8
	}
	return 4
}

// QuadPerEdgeAA draws quads whose edges are anti-aliased by a per-vertex
// coverage ramp, optionally sampling one texture.
type QuadPerEdgeAA struct {
	base
	spec  QuadSpec
	xform *gpucore.ColorSpaceXform

	position, coverage, color, localCoord, subset Attribute
}

// NewQuadPerEdgeAA creates the descriptor. sampler is nil for untextured
// quads; xform is nil when no color-space conversion is needed.
func NewQuadPerEdgeAA(spec QuadSpec, sampler *Sampler, xform *gpucore.ColorSpaceXform) *QuadPerEdgeAA {
	q := &QuadPerEdgeAA{spec: spec, xform: xform}
	q.name = "QuadPerEdgeAA"
	q.classID = ClassQuadPerEdgeAA

	if spec.Perspective {
		q.position = NewAttribute("position", VertexFloat3, emit.Float3)
	} else {
		q.position = NewAttribute("position", VertexFloat2, emit.Float2)
	}
	if spec.CoverageAA {
		q.coverage = NewAttribute("coverage", VertexFloat, emit.Float)
	}
	if spec.Color == ColorByte {
		q.color = NewAttribute("color", VertexUByte4Norm, emit.Float4)
	}
	if spec.HasLocalCoords || sampler != nil {
		q.localCoord = NewAttribute("localCoord", VertexFloat2, emit.Float2)
	}
	if spec.Subset && sampler != nil {
		q.subset = NewAttribute("subset", VertexFloat4, emit.Float4)
	}
	q.vertexAttrs = Implicit(q.position, q.coverage, q.color, q.localCoord, q.subset)
	if sampler != nil {
		q.samplers = []Sampler{*sampler}
	}
	return q
}

// Spec returns the feature combination.
func (q *QuadPerEdgeAA) Spec() QuadSpec { return q.spec }

// AddToKey satisfies Descriptor.
func (q *QuadPerEdgeAA) AddToKey(_ *gpucore.ShaderCaps, b *gpucore.KeyBuilder) {
	b.AddBool(q.spec.Perspective)
	b.AddBool(q.spec.HasLocalCoords)
	b.AddBits(2, uint32(q.spec.Color))
	b.AddBool(q.spec.CoverageAA)
	b.AddBool(q.subset.IsInitialized())
	b.AddBool(q.spec.Saturate)
	b.AddBool(len(q.samplers) > 0)
	b.AddBits(5, q.xform.Key())
}

// MakeProgramImpl satisfies Descriptor.
func (q *QuadPerEdgeAA) MakeProgramImpl(*gpucore.ShaderCaps) ProgramImpl {
	return &quadImpl{
		spec:       q.spec,
		textured:   len(q.samplers) > 0,
		subset:     q.subset.IsInitialized(),
		position:   q.position,
		coverage:   q.coverage,
		color:      q.color,
		localCoord: q.localCoord,
		subsetAttr: q.subset,
		xformKey:   q.xform,
	}
}

type quadImpl struct {
	spec     QuadSpec
	textured bool
	subset   bool

	position, coverage, color, localCoord, subsetAttr Attribute

	xformKey *gpucore.ColorSpaceXform
	xform    emit.ColorXform
}

func (impl *quadImpl) EmitCode(args *EmitArgs) EmitResult {
	vs, fs := args.Vert, args.Frag
	res := EmitResult{Position: emit.Var{Name: Input(impl.position), Type: impl.position.GPUType()}}
	if impl.localCoord.IsInitialized() {
		res.LocalCoords = emit.Var{Name: Input(impl.localCoord), Type: emit.Float2}
	}

	if impl.color.IsInitialized() {
		v := args.Varyings.AddPassThrough(vs, "color", emit.Float4, Input(impl.color))
		fs.Codef("%s = %s;", args.OutputColor, v.FSIn())
	} else {
		fs.Codef("%s = vec4<f32>(1.0);", args.OutputColor)
	}

	if impl.textured {
		tc := args.Varyings.AddPassThrough(vs, "texCoord", emit.Float2, Input(impl.localCoord))
		coord := tc.FSIn()
		if impl.subset {
			sv := args.Varyings.AddFlat("subset", emit.Float4)
			vs.Codef("%s = %s;", sv.VSOut(), Input(impl.subsetAttr))
			fs.Codef("let clampedCoord = clamp(%s, %s.xy, %s.zw);", coord, sv.FSIn(), sv.FSIn())
			coord = "clampedCoord"
		}
		fs.Codef("var texColor = %s;", args.Samplers[0].Sample(coord))
		if impl.xformKey != nil {
			impl.xform = emit.AddColorXform(fs, args.Uniforms, impl.xformKey)
			fs.Codef("texColor = %s(texColor);", impl.xform.Func)
		}
		fs.Codef("%s = %s * texColor;", args.OutputColor, args.OutputColor)
	}
	if impl.spec.Saturate {
		fs.Codef("%s = saturate(%s);", args.OutputColor, args.OutputColor)
	}

	if impl.coverage.IsInitialized() {
		v := args.Varyings.AddPassThrough(vs, "coverage", emit.Float, Input(impl.coverage))
		fs.Codef("%s = vec4<f32>(%s);", args.OutputCoverage, v.FSIn())
	} else {
		fs.Codef("%s = vec4<f32>(1.0);", args.OutputCoverage)
	}
	return res
}

func (impl *quadImpl) SetData(dm *emit.DataManager, _ *gpucore.ShaderCaps, d Descriptor) {
	q := d.(*QuadPerEdgeAA)
	impl.xform.SetData(dm, q.xform)
}

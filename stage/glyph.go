package stage

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// MaskFormat is the pixel format of a glyph atlas page.
type MaskFormat uint8

const (
	// MaskA8 is single-channel coverage.
	MaskA8 MaskFormat = iota
	// MaskLCD is per-subpixel coverage.
	MaskLCD
	// MaskARGB is color glyphs (emoji).
	MaskARGB
)

func (f MaskFormat) String() string {
	switch f {
	case MaskA8:
		return "A8"
	case MaskLCD:
		return "LCD"
	case MaskARGB:
		return "ARGB"
	default:
		return fmt.Sprintf("MaskFormat(%d)", uint8(f))
	}
}

// MaxGlyphAtlasViews is the number of atlas pages one glyph program can
// sample.
const MaxGlyphAtlasViews = 4

// Glyph draws atlas-backed glyph quads. Texture coordinates are packed
// unsigned shorts; the page index lives in the two low bits of u and v.
type Glyph struct {
	base
	format MaskFormat
	local  f32.Aff3
	atlas  [MaxGlyphAtlasViews]*gpucore.TextureProxy

	position, color, texCoords Attribute
}

// NewGlyph creates a glyph descriptor over 1..4 atlas pages of identical
// size. local maps device space back to local coordinates.
func NewGlyph(format MaskFormat, pages []*gpucore.TextureProxy, state gpucore.SamplerState, local f32.Aff3) *Glyph {
	if len(pages) == 0 || len(pages) > MaxGlyphAtlasViews {
		panic(fmt.Sprintf("stage: glyph needs 1..%d atlas pages, got %d", MaxGlyphAtlasViews, len(pages)))
	}
	g := &Glyph{format: format, local: local}
	g.name = "Glyph"
	g.classID = ClassGlyph
	g.position = NewAttribute("position", VertexFloat2, emit.Float2)
	if format != MaskARGB {
		g.color = NewAttribute("color", VertexUByte4Norm, emit.Float4)
	}
	g.texCoords = NewAttribute("texCoords", VertexUShort2, emit.UInt2)
	g.vertexAttrs = Implicit(g.position, g.color, g.texCoords)
	for i, p := range pages {
		g.atlas[i] = p
		sw := gpucore.SwizzleRGBA
		if format == MaskA8 {
			sw = gpucore.Swizzle{'r', 'r', 'r', 'r'}
		}
		g.samplers = append(g.samplers, SamplerFor(p, state, sw))
	}
	return g
}

// Format returns the mask format.
func (g *Glyph) Format() MaskFormat { return g.format }

// Pages returns the atlas page proxies.
func (g *Glyph) Pages() []*gpucore.TextureProxy { return g.atlas[:len(g.samplers)] }

func (g *Glyph) AddToKey(_ *gpucore.ShaderCaps, b *gpucore.KeyBuilder) {
	b.AddBits(2, uint32(g.format))
	b.AddBits(3, uint32(len(g.samplers)))
	b.AddBool(isIdentity(g.local))
}

func (g *Glyph) MakeProgramImpl(*gpucore.ShaderCaps) ProgramImpl {
	return &glyphImpl{
		format:        g.format,
		numViews:      len(g.samplers),
		localIdentity: isIdentity(g.local),
		position:      g.position,
		color:         g.color,
		texCoords:     g.texCoords,
		localU:        emit.InvalidUniform,
		atlasU:        emit.InvalidUniform,
	}
}

type glyphImpl struct {
	format        MaskFormat
	numViews      int
	localIdentity bool

	position, color, texCoords Attribute

	localU, atlasU emit.UniformHandle
}

func (impl *glyphImpl) EmitCode(args *EmitArgs) EmitResult {
	vs, fs := args.Vert, args.Frag
	pos := Input(impl.position)
	res := EmitResult{Position: emit.Var{Name: pos, Type: emit.Float2}}

	var atlasInv string
	impl.atlasU, atlasInv = args.Uniforms.Add(emit.VisibleVertex, emit.Float2, "atlasSizeInv")

	tc := Input(impl.texCoords)
	uv := args.Varyings.Add("textureCoords", emit.Float2)
	vs.Codef("%s = vec2<f32>(%s >> vec2<u32>(1u)) * %s;", uv.VSOut(), tc, atlasInv)
	var page emit.Varying
	if impl.numViews > 1 {
		page = args.Varyings.AddFlat("texIndex", emit.UInt)
		vs.Codef("%s = (%s.x & 1u) | ((%s.y & 1u) << 1u);", page.VSOut(), tc, tc)
	}

	if impl.localIdentity {
		res.LocalCoords = emit.Var{Name: pos, Type: emit.Float2}
	} else {
		var m string
		impl.localU, m = args.Uniforms.Add(emit.VisibleVertex, emit.Float3x3, "localMatrix")
		vs.Codef("let localCoords = (%s * vec3<f32>(%s, 1.0)).xy;", m, pos)
		res.LocalCoords = emit.Var{Name: "localCoords", Type: emit.Float2}
	}

	if impl.color.IsInitialized() {
		v := args.Varyings.AddPassThrough(vs, "color", emit.Float4, Input(impl.color))
		fs.Codef("%s = %s;", args.OutputColor, v.FSIn())
	} else {
		fs.Codef("%s = vec4<f32>(1.0);", args.OutputColor)
	}

	// Samples are taken with explicit LOD so they may sit in non-uniform
	// control flow.
	fs.Code("var texColor = vec4<f32>(0.0);")
	if impl.numViews == 1 {
		fs.Codef("texColor = %s;", sampleLevel(args.Samplers[0], uv.FSIn()))
	} else {
		for i := 0; i < impl.numViews; i++ {
			switch {
			case i == 0:
				fs.Codef("if %s == 0u {", page.FSIn())
			case i == impl.numViews-1:
				fs.Code("} else {")
			default:
				fs.Codef("} else if %s == %du {", page.FSIn(), i)
			}
			fs.Indent()
			fs.Codef("texColor = %s;", sampleLevel(args.Samplers[i], uv.FSIn()))
			fs.Dedent()
		}
		fs.Code("}")
	}

	switch impl.format {
	case MaskARGB:
		fs.Codef("%s = texColor;", args.OutputColor)
		fs.Codef("%s = vec4<f32>(1.0);", args.OutputCoverage)
	case MaskLCD:
		fs.Codef("%s = texColor;", args.OutputCoverage)
	default:
		fs.Codef("%s = vec4<f32>(texColor.a);", args.OutputCoverage)
	}
	return res
}

func (impl *glyphImpl) SetData(dm *emit.DataManager, _ *gpucore.ShaderCaps, d Descriptor) {
	g := d.(*Glyph)
	p := g.atlas[0]
	dm.Set2f(impl.atlasU, f32.Vec2{1 / float32(p.Width), 1 / float32(p.Height)})
	if impl.localU.IsValid() {
		dm.SetAffine(impl.localU, g.local)
	}
}

func sampleLevel(s emit.SamplerHandle, coords string) string {
	return emit.ApplySwizzle(fmt.Sprintf("textureSampleLevel(%s, %s, %s, 0.0)", s.Texture, s.Sampler, coords), s.Swizzle)
}

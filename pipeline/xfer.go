package pipeline

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// BlendMode is the transfer function between the shaded color and the
// destination.
type BlendMode uint8

// Coefficient modes map onto fixed-function blending.
const (
	BlendClear BlendMode = iota
	BlendSrc
	BlendDst
	BlendSrcOver
	BlendDstOver
	BlendSrcIn
	BlendDstIn
	BlendSrcOut
	BlendDstOut
	BlendSrcATop
	BlendDstATop
	BlendXor
	BlendPlus
	BlendModulate
	BlendScreen

	// Advanced modes are computed in the fragment stage from a dst read.
	BlendMultiply
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendDifference
	BlendExclusion

	blendModeCount
)

var blendModeNames = [...]string{
	"Clear", "Src", "Dst", "SrcOver", "DstOver", "SrcIn", "DstIn", "SrcOut", "DstOut",
	"SrcATop", "DstATop", "Xor", "Plus", "Modulate", "Screen",
	"Multiply", "Overlay", "Darken", "Lighten", "Difference", "Exclusion",
}

func (m BlendMode) String() string {
	if m < blendModeCount {
		return blendModeNames[m]
	}
	return fmt.Sprintf("BlendMode(%d)", uint8(m))
}

// IsAdvanced reports whether m needs the destination color in the shader.
func (m BlendMode) IsAdvanced() bool { return m >= BlendMultiply && m < blendModeCount }

type coeffs struct{ src, dst gputypes.BlendFactor }

const (
	zero = gputypes.BlendFactorZero
	one  = gputypes.BlendFactorOne
	sa   = gputypes.BlendFactorSrcAlpha
	isa  = gputypes.BlendFactorOneMinusSrcAlpha
	da   = gputypes.BlendFactorDstAlpha
	ida  = gputypes.BlendFactorOneMinusDstAlpha
	sc   = gputypes.BlendFactorSrc
	isc  = gputypes.BlendFactorOneMinusSrc
	dc   = gputypes.BlendFactorDst
)

var blendCoeffs = [...]coeffs{
	BlendClear:    {zero, zero},
	BlendSrc:      {one, zero},
	BlendDst:      {zero, one},
	BlendSrcOver:  {one, isa},
	BlendDstOver:  {ida, one},
	BlendSrcIn:    {da, zero},
	BlendDstIn:    {zero, sa},
	BlendSrcOut:   {ida, zero},
	BlendDstOut:   {zero, isa},
	BlendSrcATop:  {da, isa},
	BlendDstATop:  {ida, sa},
	BlendXor:      {ida, isa},
	BlendPlus:     {one, one},
	BlendModulate: {zero, sc},
	BlendScreen:   {one, isc},
}

// DstReadKind is how an advanced transfer obtains the destination color.
type DstReadKind uint8

const (
	DstReadNone DstReadKind = iota
	// DstReadTexture samples a copy of (or, with texture barriers, the
	// target itself) as a texture.
	DstReadTexture
	// DstReadInputAttachment reads the target as an input attachment.
	DstReadInputAttachment
)

func (k DstReadKind) String() string {
	switch k {
	case DstReadNone:
		return "None"
	case DstReadTexture:
		return "Texture"
	case DstReadInputAttachment:
		return "InputAttachment"
	default:
		return fmt.Sprintf("DstReadKind(%d)", uint8(k))
	}
}

// XferBarrier is the memory barrier a render pass issues before each draw.
type XferBarrier uint8

const (
	BarrierNone XferBarrier = iota
	// BarrierTexture makes prior writes visible to texture reads of the
	// same target.
	BarrierTexture
	// BarrierInputAttachment makes prior writes visible to input
	// attachment reads.
	BarrierInputAttachment
)

// Xfer is the transfer stage of a pipeline.
type Xfer struct {
	Mode BlendMode

	// ShaderBlend forces the blend into the shader even for a coefficient
	// mode, used when coverage cannot be folded into alpha.
	ShaderBlend bool
}

// SrcOver is the default transfer.
var SrcOver = Xfer{Mode: BlendSrcOver}

// NeedsDstRead reports whether the shader reads the destination.
func (x Xfer) NeedsDstRead() bool { return x.Mode.IsAdvanced() || x.ShaderBlend }

// CompatibleWithCoverageAsAlpha reports whether multiplying the shaded
// color by coverage gives the right result under fixed-function blending.
func (x Xfer) CompatibleWithCoverageAsAlpha() bool {
	if x.NeedsDstRead() {
		return false
	}
	c := blendCoeffs[x.Mode]
	// Coverage folds into src when the dst factor is 1-srcA, 1-src or 1.
	return c.dst == isa || c.dst == isc || c.dst == one
}

// BlendState returns the fixed-function blend, nil for replace.
func (x Xfer) BlendState() *gputypes.BlendState {
	if x.NeedsDstRead() || x.Mode == BlendSrc {
		return nil
	}
	c := blendCoeffs[x.Mode]
	comp := gputypes.BlendComponent{SrcFactor: c.src, DstFactor: c.dst, Operation: gputypes.BlendOperationAdd}
	alpha := comp
	// Color-valued factors apply their alpha variant to the alpha channel.
	switch c.dst {
	case sc:
		alpha.DstFactor = sa
	case isc:
		alpha.DstFactor = isa
	}
	if c.src == dc {
		alpha.SrcFactor = da
	}
	return &gputypes.BlendState{Color: comp, Alpha: alpha}
}

// AddToKey appends the mode and the shader-blend flag.
func (x Xfer) AddToKey(b *gpucore.KeyBuilder) {
	b.AddBits(5, uint32(x.Mode))
	b.AddBool(x.ShaderBlend)
}

// EmitBlend writes the fragment code producing the final color from src,
// coverage cov and destination dst when the blend runs in the shader.
// The result is assigned to out.
func (x Xfer) EmitBlend(frag *emit.ShaderBuilder, out, src, cov, dst string) {
	var blended string
	switch x.Mode {
	case BlendMultiply:
		blended = fmt.Sprintf("vec4<f32>(%[1]s.rgb * (1.0 - %[2]s.a) + %[2]s.rgb * (1.0 - %[1]s.a) + %[1]s.rgb * %[2]s.rgb, "+
			"%[1]s.a + (1.0 - %[1]s.a) * %[2]s.a)", src, dst)
	case BlendOverlay:
		frag.Function(overlayFn)
		blended = fmt.Sprintf("blend_overlay(%s, %s)", src, dst)
	case BlendDarken:
		blended = fmt.Sprintf("vec4<f32>(%[1]s.rgb + %[2]s.rgb - max(%[1]s.rgb * %[2]s.a, %[2]s.rgb * %[1]s.a), "+
			"%[1]s.a + (1.0 - %[1]s.a) * %[2]s.a)", src, dst)
	case BlendLighten:
		blended = fmt.Sprintf("vec4<f32>(%[1]s.rgb + %[2]s.rgb - min(%[1]s.rgb * %[2]s.a, %[2]s.rgb * %[1]s.a), "+
			"%[1]s.a + (1.0 - %[1]s.a) * %[2]s.a)", src, dst)
	case BlendDifference:
		blended = fmt.Sprintf("vec4<f32>(%[1]s.rgb + %[2]s.rgb - 2.0 * min(%[1]s.rgb * %[2]s.a, %[2]s.rgb * %[1]s.a), "+
			"%[1]s.a + (1.0 - %[1]s.a) * %[2]s.a)", src, dst)
	case BlendExclusion:
		blended = fmt.Sprintf("vec4<f32>(%[2]s.rgb + %[1]s.rgb - 2.0 * %[2]s.rgb * %[1]s.rgb, "+
			"%[1]s.a + (1.0 - %[1]s.a) * %[2]s.a)", src, dst)
	default:
		c := blendCoeffs[x.Mode]
		blended = fmt.Sprintf("%s * %s + %s * %s", src, factorExpr(c.src, src, dst), dst, factorExpr(c.dst, src, dst))
	}
	frag.Codef("%s = mix(%s, %s, %s);", out, dst, blended, cov)
}

const overlayFn = `fn blend_overlay_component(s: vec2<f32>, d: vec2<f32>) -> f32 {
    if 2.0 * d.x <= d.y {
        return 2.0 * s.x * d.x;
    }
    return s.y * d.y - 2.0 * (d.y - d.x) * (s.y - s.x);
}

fn blend_overlay(s: vec4<f32>, d: vec4<f32>) -> vec4<f32> {
    var r = vec4<f32>(blend_overlay_component(s.ra, d.ra), blend_overlay_component(s.ga, d.ga),
        blend_overlay_component(s.ba, d.ba), s.a + (1.0 - s.a) * d.a);
    r = vec4<f32>(r.rgb + d.rgb * (1.0 - s.a) + s.rgb * (1.0 - d.a), r.a);
    return r;
}
`

func factorExpr(f gputypes.BlendFactor, src, dst string) string {
	switch f {
	case zero:
		return "0.0"
	case one:
		return "1.0"
	case sa:
		return src + ".a"
	case isa:
		return "(1.0 - " + src + ".a)"
	case da:
		return dst + ".a"
	case ida:
		return "(1.0 - " + dst + ".a)"
	case sc:
		return src
	case isc:
		return "(vec4<f32>(1.0) - " + src + ")"
	default:
		return dst
	}
}

// dstReadFor picks how the destination is read on caps.
func dstReadFor(x Xfer, caps *gpucore.Caps) (DstReadKind, XferBarrier) {
	if !x.NeedsDstRead() {
		return DstReadNone, BarrierNone
	}
	if caps.Shader.InputAttachments {
		return DstReadInputAttachment, BarrierInputAttachment
	}
	if caps.TextureBarrier {
		return DstReadTexture, BarrierTexture
	}
	return DstReadTexture, BarrierNone
}

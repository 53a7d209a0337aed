package pipeline

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
)

// TextureEffect samples one texture at its coordinates.
type TextureEffect struct {
	sampler TextureSampler
}

// NewTexture returns a leaf sampling proxy.
func NewTexture(proxy *gpucore.TextureProxy, state gpucore.SamplerState, swizzle gpucore.Swizzle) *Processor {
	return NewProcessor(&TextureEffect{sampler: TextureSampler{Proxy: proxy, State: state, Swizzle: swizzle}})
}

func (e *TextureEffect) Name() string           { return "Texture" }
func (e *TextureEffect) ClassID() EffectClassID { return ClassTexture }
func (e *TextureEffect) UsesCoords() bool       { return true }

func (e *TextureEffect) Textures() []TextureSampler { return []TextureSampler{e.sampler} }

func (e *TextureEffect) AddToKey(b *gpucore.KeyBuilder) {
	b.AddBits(16, e.sampler.Swizzle.Key())
	b.AddBits(2, uint32(e.sampler.Proxy.Target))
}

func (e *TextureEffect) Equal(o Effect) bool {
	t := o.(*TextureEffect)
	return e.sampler.Proxy.ID == t.sampler.Proxy.ID && e.sampler.State == t.sampler.State &&
		e.sampler.Swizzle == t.sampler.Swizzle
}

func (e *TextureEffect) MakeImpl() EffectImpl { return textureImpl{} }

type textureImpl struct{}

func (textureImpl) EmitCode(args *EffectArgs) {
	args.Frag.Codef("return %s;", args.Samplers[0].Sample(args.Coords))
}

func (textureImpl) SetData(*emit.DataManager, Effect) {}

// MatrixEffect samples its only child at transformed coordinates.
type MatrixEffect struct {
	m f32.Aff3
}

// NewMatrix wraps child so it is sampled at m applied to the coordinates.
func NewMatrix(m f32.Aff3, child *Processor) *Processor {
	return NewProcessor(&MatrixEffect{m: m}).AddChild(child, SampleUniformMatrix)
}

func (e *MatrixEffect) Name() string                 { return "Matrix" }
func (e *MatrixEffect) ClassID() EffectClassID       { return ClassMatrix }
func (e *MatrixEffect) UsesCoords() bool             { return false }
func (e *MatrixEffect) Textures() []TextureSampler   { return nil }
func (e *MatrixEffect) AddToKey(*gpucore.KeyBuilder) {}
func (e *MatrixEffect) Equal(o Effect) bool          { return e.m == o.(*MatrixEffect).m }
func (e *MatrixEffect) SampleMatrix() f32.Aff3       { return e.m }
func (e *MatrixEffect) MakeImpl() EffectImpl         { return matrixImpl{} }

type matrixImpl struct{}

func (matrixImpl) EmitCode(args *EffectArgs) {
	args.Frag.Codef("return %s;", args.InvokeChild(0, args.InputColor))
}

func (matrixImpl) SetData(*emit.DataManager, Effect) {}

// ModulateEffect multiplies its child's output by the input color.
type ModulateEffect struct {
	alphaOnly bool
}

// NewModulate returns child(input) * input, or child(input) * input.a when
// alphaOnly is set.
func NewModulate(child *Processor, alphaOnly bool) *Processor {
	return NewProcessor(&ModulateEffect{alphaOnly: alphaOnly}).AddChild(child, SamplePassThrough)
}

func (e *ModulateEffect) Name() string                   { return "Modulate" }
func (e *ModulateEffect) ClassID() EffectClassID         { return ClassModulate }
func (e *ModulateEffect) UsesCoords() bool               { return false }
func (e *ModulateEffect) Textures() []TextureSampler     { return nil }
func (e *ModulateEffect) AddToKey(b *gpucore.KeyBuilder) { b.AddBool(e.alphaOnly) }
func (e *ModulateEffect) Equal(o Effect) bool            { return e.alphaOnly == o.(*ModulateEffect).alphaOnly }
func (e *ModulateEffect) MakeImpl() EffectImpl           { return modulateImpl{alphaOnly: e.alphaOnly} }

type modulateImpl struct{ alphaOnly bool }

func (impl modulateImpl) EmitCode(args *EffectArgs) {
	in := args.InputColor
	if impl.alphaOnly {
		in += ".a"
	}
	args.Frag.Codef("return %s * %s;", args.InvokeChild(0, args.InputColor), in)
}

func (modulateImpl) SetData(*emit.DataManager, Effect) {}

// ColorMode is how UniformColorEffect combines its color with the input.
type ColorMode uint8

const (
	// ColorIgnoreInput outputs the uniform color.
	ColorIgnoreInput ColorMode = iota
	// ColorModulateRGBA outputs input * color.
	ColorModulateRGBA
	// ColorModulateA outputs input.a * color.
	ColorModulateA
)

// UniformColorEffect outputs a constant color.
type UniformColorEffect struct {
	color gpucore.Color
	mode  ColorMode
}

// NewUniformColor returns a leaf producing color combined per mode.
func NewUniformColor(color gpucore.Color, mode ColorMode) *Processor {
	return NewProcessor(&UniformColorEffect{color: color, mode: mode})
}

// Color returns the constant.
func (e *UniformColorEffect) Color() gpucore.Color { return e.color }

// Mode returns how the input is combined.
func (e *UniformColorEffect) Mode() ColorMode { return e.mode }

func (e *UniformColorEffect) Name() string                   { return "UniformColor" }
func (e *UniformColorEffect) ClassID() EffectClassID         { return ClassUniformColor }
func (e *UniformColorEffect) UsesCoords() bool               { return false }
func (e *UniformColorEffect) Textures() []TextureSampler     { return nil }
func (e *UniformColorEffect) AddToKey(b *gpucore.KeyBuilder) { b.AddBits(2, uint32(e.mode)) }

func (e *UniformColorEffect) Equal(o Effect) bool {
	u := o.(*UniformColorEffect)
	return e.color == u.color && e.mode == u.mode
}

func (e *UniformColorEffect) MakeImpl() EffectImpl {
	return &uniformColorImpl{mode: e.mode, color: emit.InvalidUniform}
}

type uniformColorImpl struct {
	mode  ColorMode
	color emit.UniformHandle
}

func (impl *uniformColorImpl) EmitCode(args *EffectArgs) {
	var c string
	impl.color, c = args.Uniforms.Add(emit.VisibleFragment, emit.Float4, "color")
	switch impl.mode {
	case ColorModulateRGBA:
		args.Frag.Codef("return %s * %s;", args.InputColor, c)
	case ColorModulateA:
		args.Frag.Codef("return %s.a * %s;", args.InputColor, c)
	default:
		args.Frag.Codef("return %s;", c)
	}
}

func (impl *uniformColorImpl) SetData(dm *emit.DataManager, e Effect) {
	c := e.(*UniformColorEffect).color
	dm.Set4f(impl.color, [4]float32{c.R, c.G, c.B, c.A})
}

// ColorSpaceXformEffect converts its child's output between color spaces.
type ColorSpaceXformEffect struct {
	xform *gpucore.ColorSpaceXform
}

// NewColorSpaceXform wraps child with x. A nil x returns child unchanged.
func NewColorSpaceXform(child *Processor, x *gpucore.ColorSpaceXform) *Processor {
	if x == nil {
		return child
	}
	return NewProcessor(&ColorSpaceXformEffect{xform: x}).AddChild(child, SamplePassThrough)
}

func (e *ColorSpaceXformEffect) Name() string                   { return "ColorSpaceXform" }
func (e *ColorSpaceXformEffect) ClassID() EffectClassID         { return ClassColorSpaceXform }
func (e *ColorSpaceXformEffect) UsesCoords() bool               { return false }
func (e *ColorSpaceXformEffect) Textures() []TextureSampler     { return nil }
func (e *ColorSpaceXformEffect) AddToKey(b *gpucore.KeyBuilder) { b.AddBits(5, e.xform.Key()) }

func (e *ColorSpaceXformEffect) Equal(o Effect) bool {
	return gpucore.ColorSpaceXformEqual(e.xform, o.(*ColorSpaceXformEffect).xform)
}

func (e *ColorSpaceXformEffect) MakeImpl() EffectImpl {
	return &xformImpl{flags: e.xform}
}

type xformImpl struct {
	flags *gpucore.ColorSpaceXform
	cx    emit.ColorXform
}

func (impl *xformImpl) EmitCode(args *EffectArgs) {
	impl.cx = emit.AddColorXform(args.Frag, args.Uniforms, impl.flags)
	args.Frag.Codef("return %s(%s);", impl.cx.Func, args.InvokeChild(0, args.InputColor))
}

func (impl *xformImpl) SetData(dm *emit.DataManager, e Effect) {
	impl.cx.SetData(dm, e.(*ColorSpaceXformEffect).xform)
}

// DeviceRectEffect is a coverage effect that keeps fragments inside (or,
// when inverse, outside) a device-space rectangle.
type DeviceRectEffect struct {
	rect    gpucore.Rect
	aa      bool
	inverse bool
}

// NewDeviceRect returns a coverage leaf for rect. With aa the edges ramp
// over one pixel.
func NewDeviceRect(rect gpucore.Rect, aa, inverse bool) *Processor {
	return NewProcessor(&DeviceRectEffect{rect: rect, aa: aa, inverse: inverse})
}

func (e *DeviceRectEffect) Name() string               { return "DeviceRect" }
func (e *DeviceRectEffect) ClassID() EffectClassID     { return ClassDeviceRect }
func (e *DeviceRectEffect) UsesCoords() bool           { return false }
func (e *DeviceRectEffect) Textures() []TextureSampler { return nil }

func (e *DeviceRectEffect) AddToKey(b *gpucore.KeyBuilder) {
	b.AddBool(e.aa)
	b.AddBool(e.inverse)
}

func (e *DeviceRectEffect) Equal(o Effect) bool { return *e == *o.(*DeviceRectEffect) }

func (e *DeviceRectEffect) MakeImpl() EffectImpl {
	return &deviceRectImpl{aa: e.aa, inverse: e.inverse, rect: emit.InvalidUniform}
}

type deviceRectImpl struct {
	aa, inverse bool
	rect        emit.UniformHandle
}

func (impl *deviceRectImpl) EmitCode(args *EffectArgs) {
	var r string
	impl.rect, r = args.Uniforms.Add(emit.VisibleFragment, emit.Float4, "rect")
	p := args.FragPosition
	if impl.aa {
		args.Frag.Codef("let d = clamp(min(%s.xy - %s.xy, %s.zw - %s.xy) + 0.5, vec2<f32>(0.0), vec2<f32>(1.0));", p, r, r, p)
		args.Frag.Code("var cov = d.x * d.y;")
	} else {
		args.Frag.Codef("var cov = select(0.0, 1.0, all(%s.xy >= %s.xy) && all(%s.xy < %s.zw));", p, r, p, r)
	}
	if impl.inverse {
		args.Frag.Code("cov = 1.0 - cov;")
	}
	args.Frag.Codef("return %s * cov;", args.InputColor)
}

func (impl *deviceRectImpl) SetData(dm *emit.DataManager, e Effect) {
	r := e.(*DeviceRectEffect).rect
	dm.Set4f(impl.rect, [4]float32{r.Left, r.Top, r.Right, r.Bottom})
}

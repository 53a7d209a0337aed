package emit

import (
	"fmt"

	"github.com/gogpu/gpucmd/gpucore"
)

// ColorXform holds the uniforms of an emitted color-space transform helper.
type ColorXform struct {
	Func  string
	gamut UniformHandle
	src   [2]UniformHandle
	dst   [2]UniformHandle
}

// AddColorXform emits a helper function applying x to a premultiplied color
// and returns its handles. Callers invoke it as Func(color).
func AddColorXform(frag *ShaderBuilder, uniforms *UniformHandler, x *gpucore.ColorSpaceXform) ColorXform {
	cx := ColorXform{
		Func:  frag.Unique("color_xform"),
		gamut: InvalidUniform,
		src:   [2]UniformHandle{InvalidUniform, InvalidUniform},
		dst:   [2]UniformHandle{InvalidUniform, InvalidUniform},
	}
	tf := func(v string, lo, hi string) string {
		// Piecewise transfer function: c*x+f below d, (a*x+b)^g+e above.
		return fmt.Sprintf("select(pow(%[2]s.y * abs(%[1]s) + %[2]s.z, vec3<f32>(%[2]s.x)) + %[3]s.y, "+
			"%[2]s.w * abs(%[1]s) + %[3]s.z, abs(%[1]s) < vec3<f32>(%[3]s.x)) * sign(%[1]s)", v, lo, hi)
	}

	body := fmt.Sprintf("fn %s(in_color: vec4<f32>) -> vec4<f32> {\n    var c = in_color;\n", cx.Func)
	if x.Flags&gpucore.XformUnpremul != 0 {
		body += "    c = vec4<f32>(c.rgb / max(c.a, 0.0001), c.a);\n"
	}
	if x.Flags&gpucore.XformLinearize != 0 {
		var lo, hi string
		cx.src[0], lo = uniforms.Add(VisibleFragment, Float4, "src_tf0")
		cx.src[1], hi = uniforms.Add(VisibleFragment, Float4, "src_tf1")
		body += "    c = vec4<f32>(" + tf("c.rgb", lo, hi) + ", c.a);\n"
	}
	if x.Flags&gpucore.XformGamut != 0 {
		var m string
		cx.gamut, m = uniforms.Add(VisibleFragment, Float3x3, "gamut")
		body += fmt.Sprintf("    c = vec4<f32>(%s * c.rgb, c.a);\n", m)
	}
	if x.Flags&gpucore.XformEncode != 0 {
		var lo, hi string
		cx.dst[0], lo = uniforms.Add(VisibleFragment, Float4, "dst_tf0")
		cx.dst[1], hi = uniforms.Add(VisibleFragment, Float4, "dst_tf1")
		body += "    c = vec4<f32>(" + tf("c.rgb", lo, hi) + ", c.a);\n"
	}
	if x.Flags&gpucore.XformPremul != 0 {
		body += "    c = vec4<f32>(c.rgb * c.a, c.a);\n"
	}
	body += "    return c;\n}\n"
	frag.Function(body)
	return cx
}

// SetData writes the coefficients of x.
func (cx ColorXform) SetData(dm *DataManager, x *gpucore.ColorSpaceXform) {
	if x == nil {
		return
	}
	if cx.gamut.IsValid() {
		dm.SetMatrix3x3(cx.gamut, x.Gamut)
	}
	if cx.src[0].IsValid() {
		dm.Set4f(cx.src[0], [4]float32{x.SrcTF[0], x.SrcTF[1], x.SrcTF[2], x.SrcTF[3]})
		dm.Set4f(cx.src[1], [4]float32{x.SrcTF[4], x.SrcTF[5], x.SrcTF[6], 0})
	}
	if cx.dst[0].IsValid() {
		dm.Set4f(cx.dst[0], [4]float32{x.DstTF[0], x.DstTF[1], x.DstTF[2], x.DstTF[3]})
		dm.Set4f(cx.dst[1], [4]float32{x.DstTF[4], x.DstTF[5], x.DstTF[6], 0})
	}
}

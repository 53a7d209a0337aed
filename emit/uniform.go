package emit

import (
	"fmt"
	"strings"
)

// Visibility is the set of stages that read a uniform.
type Visibility uint8

// Uniform visibility flags.
const (
	VisibleVertex Visibility = 1 << iota
	VisibleFragment
)

// UniformHandle identifies a uniform declared through a UniformHandler.
type UniformHandle int

// InvalidUniform is the zero-capable sentinel for "no uniform".
const InvalidUniform UniformHandle = -1

// IsValid reports whether h refers to a declared uniform.
func (h UniformHandle) IsValid() bool { return h >= 0 }

// Uniform is one member of the program's uniform block.
type Uniform struct {
	Name       string
	Type       Type
	Visibility Visibility
	Offset     int
}

// UniformHandler lays out the uniform block under WGSL alignment rules.
type UniformHandler struct {
	list []Uniform
	size int
}

// Add declares a uniform and returns its handle and the shader expression
// that reads it.
func (h *UniformHandler) Add(vis Visibility, t Type, name string) (UniformHandle, string) {
	mangled := "u_" + name
	for i := 1; h.has(mangled); i++ {
		mangled = fmt.Sprintf("u_%s_%d", name, i)
	}
	off := (h.size + t.Align() - 1) &^ (t.Align() - 1)
	h.list = append(h.list, Uniform{Name: mangled, Type: t, Visibility: vis, Offset: off})
	h.size = off + t.Size()
	return UniformHandle(len(h.list) - 1), "u." + mangled
}

func (h *UniformHandler) has(name string) bool {
	for _, u := range h.list {
		if u.Name == name {
			return true
		}
	}
	return false
}

// Get returns the uniform for a handle.
func (h *UniformHandler) Get(u UniformHandle) Uniform { return h.list[u] }

// Uniforms returns all declared uniforms in declaration order.
func (h *UniformHandler) Uniforms() []Uniform { return h.list }

// Size returns the block size rounded up to 16 bytes.
func (h *UniformHandler) Size() int { return (h.size + 15) &^ 15 }

// SamplerHandle names the texture and sampler bindings of one sampled
// texture.
type SamplerHandle struct {
	Index   int
	Texture string
	Sampler string
	Swizzle string
}

// NewSamplerHandle returns the handle for the i-th sampler of a program.
func NewSamplerHandle(i int, swizzle string) SamplerHandle {
	return SamplerHandle{
		Index:   i,
		Texture: fmt.Sprintf("t_%d", i),
		Sampler: fmt.Sprintf("s_%d", i),
		Swizzle: swizzle,
	}
}

// Sample returns an expression sampling the texture at coords with the
// handle's read swizzle applied.
func (s SamplerHandle) Sample(coords string) string {
	expr := fmt.Sprintf("textureSample(%s, %s, %s)", s.Texture, s.Sampler, coords)
	return ApplySwizzle(expr, s.Swizzle)
}

// ApplySwizzle applies a 4-character swizzle to a vec4 expression. Constant
// components '0' and '1' produce a constructor.
func ApplySwizzle(expr, swizzle string) string {
	if swizzle == "" || swizzle == "rgba" {
		return expr
	}
	if !strings.ContainsAny(swizzle, "01") {
		return "(" + expr + ")." + swizzle
	}
	comps := make([]any, 4)
	for i := 0; i < 4; i++ {
		switch swizzle[i] {
		case '0':
			comps[i] = "0.0"
		case '1':
			comps[i] = "1.0"
		default:
			comps[i] = "(" + expr + ")." + string(swizzle[i])
		}
	}
	return fmt.Sprintf("vec4<f32>(%s, %s, %s, %s)", comps...)
}

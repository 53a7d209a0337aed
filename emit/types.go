package emit

import "fmt"

// Type is a shader value type.
type Type uint8

// Shader types.
const (
	Float Type = iota
	Float2
	Float3
	Float4
	UInt
	UInt2
	Int
	Float3x3
	Float4x4
)

var typeInfo = [...]struct {
	wgsl  string
	size  int
	align int
}{
	Float:    {"f32", 4, 4},
	Float2:   {"vec2<f32>", 8, 8},
	Float3:   {"vec3<f32>", 12, 16},
	Float4:   {"vec4<f32>", 16, 16},
	UInt:     {"u32", 4, 4},
	UInt2:    {"vec2<u32>", 8, 8},
	Int:      {"i32", 4, 4},
	Float3x3: {"mat3x3<f32>", 48, 16},
	Float4x4: {"mat4x4<f32>", 64, 16},
}

// WGSL returns the WGSL spelling of t.
func (t Type) WGSL() string {
	if int(t) < len(typeInfo) {
		return typeInfo[t].wgsl
	}
	return fmt.Sprintf("Type(%d)", t)
}

// String is WGSL.
func (t Type) String() string { return t.WGSL() }

// Size returns the size in bytes under WGSL uniform layout rules.
func (t Type) Size() int { return typeInfo[t].size }

// Align returns the alignment in bytes under WGSL uniform layout rules.
func (t Type) Align() int { return typeInfo[t].align }

// Var names a typed shader value.
type Var struct {
	Name string
	Type Type
}

// IsValid reports whether the variable has a name.
func (v Var) IsValid() bool { return v.Name != "" }

package program

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// ErrEmptySource is returned when a compiler is given no text.
var ErrEmptySource = errors.New("program: empty shader source")

// Module is compiled shader source ready for a backend. Exactly one of
// WGSL and SPIRV is set.
type Module struct {
	WGSL  string
	SPIRV []uint32
}

// Compiler turns assembled WGSL into backend shader source.
type Compiler interface {
	Compile(wgsl string) (Module, error)
}

// NagaCompiler compiles WGSL to SPIR-V.
type NagaCompiler struct{}

// Compile satisfies Compiler.
func (NagaCompiler) Compile(wgsl string) (Module, error) {
	if wgsl == "" {
		return Module{}, ErrEmptySource
	}
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return Module{}, fmt.Errorf("program: failed to compile shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[4*i:])
	}
	return Module{SPIRV: words}, nil
}

// WGSLPassthrough hands WGSL to drivers that accept it directly.
type WGSLPassthrough struct{}

// Compile satisfies Compiler.
func (WGSLPassthrough) Compile(wgsl string) (Module, error) {
	if wgsl == "" {
		return Module{}, ErrEmptySource
	}
	return Module{WGSL: wgsl}, nil
}

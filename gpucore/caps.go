package gpucore

import "github.com/gogpu/gpucontext"

// ShaderCaps describes what generated shader text may rely on.
type ShaderCaps struct {
	// InputAttachments allows reading the destination color as an input
	// attachment instead of a copied texture.
	InputAttachments bool

	// FlatInterpolation allows flat varyings for per-primitive colors.
	FlatInterpolation bool

	// MaxFragmentSamplers bounds the samplers one program may declare.
	MaxFragmentSamplers int
}

// Caps is the capability configuration consulted by the combine algorithm,
// the render pass and the shader assembler.
type Caps struct {
	Shader ShaderCaps

	// MaxVertexAttributes bounds vertex plus instance attributes of one program.
	MaxVertexAttributes int

	// DynamicStateTextures allows rebinding textures between draws of one
	// bound pipeline, which is what lets commands chain.
	DynamicStateTextures bool

	// NativeDrawIndirect is false when indirect draws must be polyfilled.
	NativeDrawIndirect bool

	// TextureBarrier reports support for a barrier between draws that read
	// and write the same attachment.
	TextureBarrier bool

	// MaxQuadsNonAA and MaxQuadsCoverageAA are the largest quad counts one
	// merged textured-quad draw may reach for each AA class.
	MaxQuadsNonAA      int
	MaxQuadsCoverageAA int

	// MaxChainLookback is how many recorded chains a new command may be
	// compared against.
	MaxChainLookback int

	// MaxMergeDistance is how many commands inside a chain are examined
	// when concatenating two chains.
	MaxMergeDistance int

	// StencilBits is the stencil depth of the render target; the top bit is
	// reserved for the clip.
	StencilBits int

	// MaxWindowRectangles is the number of window rectangles supported, 0
	// if the feature is absent.
	MaxWindowRectangles int
}

// Default capability values.
const (
	DefaultMaxQuadsNonAA      = 4096
	DefaultMaxQuadsCoverageAA = 512
	DefaultMaxChainLookback   = 10
	DefaultMaxMergeDistance   = 10
)

// DefaultCaps returns capabilities of a typical discrete GPU.
func DefaultCaps() *Caps {
	return &Caps{
		Shader: ShaderCaps{
			FlatInterpolation:   true,
			MaxFragmentSamplers: 16,
		},
		MaxVertexAttributes:  16,
		DynamicStateTextures: true,
		NativeDrawIndirect:   true,
		TextureBarrier:       false,
		MaxQuadsNonAA:        DefaultMaxQuadsNonAA,
		MaxQuadsCoverageAA:   DefaultMaxQuadsCoverageAA,
		MaxChainLookback:     DefaultMaxChainLookback,
		MaxMergeDistance:     DefaultMaxMergeDistance,
		StencilBits:          8,
		MaxWindowRectangles:  8,
	}
}

// CapsFromAdapter derives capabilities from the adapter exposed by a host
// application. Software adapters lose per-draw texture rebinding and native
// indirect draws.
func CapsFromAdapter(info gpucontext.AdapterInfo) *Caps {
	c := DefaultCaps()
	switch info.Type {
	case gpucontext.AdapterTypeSoftware:
		c.DynamicStateTextures = false
		c.NativeDrawIndirect = false
		c.MaxWindowRectangles = 0
		c.Shader.MaxFragmentSamplers = 8
	case gpucontext.AdapterTypeIntegrated:
		c.Shader.InputAttachments = true
		c.TextureBarrier = true
	case gpucontext.AdapterTypeUnknown:
		c.NativeDrawIndirect = false
	}
	return c
}

// MaxQuads returns the quad limit for one AA class.
func (c *Caps) MaxQuads(aa AAType) int {
	if aa == AACoverage {
		return c.MaxQuadsCoverageAA
	}
	return c.MaxQuadsNonAA
}

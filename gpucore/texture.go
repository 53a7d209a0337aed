package gpucore

import "github.com/gogpu/gputypes"

// TextureTarget is the texture type a sampler binds to.
type TextureTarget uint8

const (
	// Target2D is an ordinary 2D texture.
	Target2D TextureTarget = iota
	// TargetRectangle uses unnormalized coordinates.
	TargetRectangle
	// TargetExternal is an externally owned image such as a video frame.
	TargetExternal
)

// TextureProxy describes a texture referenced by a draw before the
// resource-allocation collaborator has made it resident.
type TextureProxy struct {
	ID        TextureID
	Width     int
	Height    int
	Format    gputypes.TextureFormat
	Target    TextureTarget
	Mipmapped bool
}

// ProxiesCompatibleAsDynamicState reports whether a and b may be swapped
// between draws of one pipeline by rebinding textures only.
func ProxiesCompatibleAsDynamicState(a, b *TextureProxy) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Format == b.Format && a.Target == b.Target
}

// SamplerState is the fixed-function sampling configuration of one texture.
type SamplerState struct {
	Filter  gputypes.FilterMode
	Mipmap  gputypes.MipmapFilterMode // Undefined disables mipmapping
	Address gputypes.AddressMode
}

// DefaultSampler is nearest filtering with clamp-to-edge addressing.
var DefaultSampler = SamplerState{
	Filter:  gputypes.FilterModeNearest,
	Address: gputypes.AddressModeClampToEdge,
}

// Key packs the sampler into a small integer for program keys.
func (s SamplerState) Key() uint32 {
	return uint32(s.Filter)&0x3 | (uint32(s.Mipmap)&0x3)<<2 | (uint32(s.Address)&0x3)<<4
}

// Swizzle remaps the four channels read from or written to a texture.
type Swizzle [4]byte

// Common swizzles.
var (
	SwizzleRGBA = Swizzle{'r', 'g', 'b', 'a'}
	SwizzleBGRA = Swizzle{'b', 'g', 'r', 'a'}
	SwizzleAAAA = Swizzle{'a', 'a', 'a', 'a'}
	SwizzleRRRA = Swizzle{'r', 'r', 'r', 'a'}
	SwizzleRGB1 = Swizzle{'r', 'g', 'b', '1'}
)

// String returns the swizzle as used in shader text, e.g. "rgba".
func (s Swizzle) String() string { return string(s[:]) }

// IsIdentity reports whether s is rgba.
func (s Swizzle) IsIdentity() bool { return s == SwizzleRGBA }

// Key packs s into 16 bits.
func (s Swizzle) Key() uint32 {
	var k uint32
	for i, c := range s {
		k |= swizzleComponent(c) << (4 * i)
	}
	return k
}

func swizzleComponent(c byte) uint32 {
	switch c {
	case 'r':
		return 0
	case 'g':
		return 1
	case 'b':
		return 2
	case 'a':
		return 3
	case '0':
		return 4
	case '1':
		return 5
	default:
		return 0xF
	}
}

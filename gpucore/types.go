package gpucore

import (
	"fmt"
	"math"
)

// Resource IDs
//
// These opaque IDs name GPU resources owned by the resource-allocation
// collaborator. Executors map them to backend objects.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// Rect is an axis-aligned rectangle in device space.
type Rect struct {
	Left, Top, Right, Bottom float32
}

// RectXYWH creates a Rect from origin and size.
func RectXYWH(x, y, w, h float32) Rect {
	return Rect{Left: x, Top: y, Right: x + w, Bottom: y + h}
}

// IsEmpty reports whether r covers no area.
func (r Rect) IsEmpty() bool {
	return !(r.Left < r.Right && r.Top < r.Bottom)
}

// Width returns the horizontal extent.
func (r Rect) Width() float32 { return r.Right - r.Left }

// Height returns the vertical extent.
func (r Rect) Height() float32 { return r.Bottom - r.Top }

// Join returns the smallest rectangle containing r and o. Empty inputs are
// ignored.
func (r Rect) Join(o Rect) Rect {
	if o.IsEmpty() {
		return r
	}
	if r.IsEmpty() {
		return o
	}
	return Rect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

// Overlaps reports whether r and o share interior area. Rectangles that
// only touch along an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right && r.Top < o.Bottom && o.Top < r.Bottom
}

// TouchesOrOverlaps is Overlaps with shared edges counted.
func (r Rect) TouchesOrOverlaps(o Rect) bool {
	return r.Left <= o.Right && o.Left <= r.Right && r.Top <= o.Bottom && o.Top <= r.Bottom
}

// RoundOut returns the integer scissor covering r, clamped at zero.
func (r Rect) RoundOut() ScissorRect {
	l := max(0, int64(math.Floor(float64(r.Left))))
	t := max(0, int64(math.Floor(float64(r.Top))))
	rr := max(l, int64(math.Ceil(float64(r.Right))))
	b := max(t, int64(math.Ceil(float64(r.Bottom))))
	return ScissorRect{X: uint32(l), Y: uint32(t), Width: uint32(rr - l), Height: uint32(b - t)}
}

// String returns a compact representation.
func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g %g,%g]", r.Left, r.Top, r.Right, r.Bottom)
}

// ScissorRect is an integer rectangle in render-target pixels.
type ScissorRect struct {
	X, Y, Width, Height uint32
}

// IsEmpty reports whether the scissor passes no pixel.
func (s ScissorRect) IsEmpty() bool { return s.Width == 0 || s.Height == 0 }

// Contains reports whether o lies entirely inside s.
func (s ScissorRect) Contains(o ScissorRect) bool {
	return o.X >= s.X && o.Y >= s.Y &&
		o.X+o.Width <= s.X+s.Width && o.Y+o.Height <= s.Y+s.Height
}

// AAType is the anti-aliasing technique used by one draw.
type AAType uint8

const (
	// AANone draws aliased geometry.
	AANone AAType = iota
	// AACoverage computes analytic edge coverage in the shader.
	AACoverage
	// AAMSAA relies on the multisampled render target.
	AAMSAA
)

// String returns the AA type name.
func (a AAType) String() string {
	switch a {
	case AANone:
		return "None"
	case AACoverage:
		return "Coverage"
	case AAMSAA:
		return "MSAA"
	default:
		return fmt.Sprintf("AAType(%d)", a)
	}
}

// CanUpgradeAAOnMerge reports whether two differing AA types may merge by
// promoting the aliased side to coverage AA.
func CanUpgradeAAOnMerge(a, b AAType) bool {
	return (a == AANone && b == AACoverage) || (a == AACoverage && b == AANone)
}

// ClampMode controls whether fragment colors are clamped to [0,1].
type ClampMode uint8

const (
	// ClampAuto clamps when the target format is normalized.
	ClampAuto ClampMode = iota
	// ClampNone leaves colors unclamped.
	ClampNone
)

// Color is a premultiplied RGBA color.
type Color struct {
	R, G, B, A float32
}

// IsOpaque reports whether alpha is 1.
func (c Color) IsOpaque() bool { return c.A >= 1 }

// PackRGBA8 packs c into 0xAABBGGRR for Unorm8x4 vertex attributes.
func (c Color) PackRGBA8() uint32 {
	q := func(v float32) uint32 {
		return uint32(max(0, min(255, int32(v*255+0.5))))
	}
	return q(c.R) | q(c.G)<<8 | q(c.B)<<16 | q(c.A)<<24
}

// XformFlags selects the steps of a color-space transform.
type XformFlags uint8

// Color-space transform steps, applied in declaration order.
const (
	XformUnpremul XformFlags = 1 << iota
	XformLinearize
	XformGamut
	XformEncode
	XformPremul
)

// ColorSpaceXform carries precomputed color-space conversion coefficients.
// The math that derives them is performed by the caller.
type ColorSpaceXform struct {
	Flags XformFlags
	Gamut [9]float32 // column-major 3x3
	SrcTF [7]float32 // g, a, b, c, d, e, f
	DstTF [7]float32
}

// Key returns the bits of the transform that change shader text.
func (x *ColorSpaceXform) Key() uint32 {
	if x == nil {
		return 0
	}
	return uint32(x.Flags)
}

// ColorSpaceXformEqual reports whether a and b are both absent or carry
// bit-identical coefficients.
func ColorSpaceXformEqual(a, b *ColorSpaceXform) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Flags != b.Flags {
		return false
	}
	eq := func(x, y []float32) bool {
		for i := range x {
			if math.Float32bits(x[i]) != math.Float32bits(y[i]) {
				return false
			}
		}
		return true
	}
	return eq(a.Gamut[:], b.Gamut[:]) && eq(a.SrcTF[:], b.SrcTF[:]) && eq(a.DstTF[:], b.DstTF[:])
}

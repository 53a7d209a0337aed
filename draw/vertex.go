package draw

import (
	"encoding/binary"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/gpucore"
)

// vertexWriter appends little-endian vertex attributes into a buffer
// carved from the flush arena.
type vertexWriter struct {
	buf []byte
	off int
}

func (w *vertexWriter) f32(vs ...float32) {
	for _, v := range vs {
		binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
		w.off += 4
	}
}

func (w *vertexWriter) vec2(p f32.Vec2) { w.f32(p[0], p[1]) }

func (w *vertexWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *vertexWriter) color(c gpucore.Color) { w.u32(c.PackRGBA8()) }

func (w *vertexWriter) u16x2(a, b uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], a)
	binary.LittleEndian.PutUint16(w.buf[w.off+2:], b)
	w.off += 4
}

func (w *vertexWriter) rect(r gpucore.Rect) { w.f32(r.Left, r.Top, r.Right, r.Bottom) }

// done reports whether exactly the whole buffer was written.
func (w *vertexWriter) done() bool { return w.off == len(w.buf) }

func mapPoint(m f32.Aff3, p f32.Vec2) f32.Vec2 {
	return f32.Vec2{m[0]*p[0] + m[1]*p[1] + m[2], m[3]*p[0] + m[4]*p[1] + m[5]}
}

// invert returns the inverse of m, or identity and false when m is
// singular.
func invert(m f32.Aff3) (f32.Aff3, bool) {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 || math.IsNaN(float64(det)) {
		return identity, false
	}
	inv := 1 / det
	return f32.Aff3{
		m[4] * inv, -m[1] * inv, (m[1]*m[5] - m[2]*m[4]) * inv,
		-m[3] * inv, m[0] * inv, (m[2]*m[3] - m[0]*m[5]) * inv,
	}, true
}

var identity = f32.Aff3{1, 0, 0, 0, 1, 0}

// sameMatrix compares matrices bit for bit, so -0 and NaN entries are
// never treated as equal to anything else.
func sameMatrix(a, b f32.Aff3) bool {
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}

func mapRect(m f32.Aff3, r gpucore.Rect) gpucore.Rect {
	pts := [4]f32.Vec2{
		mapPoint(m, f32.Vec2{r.Left, r.Top}), mapPoint(m, f32.Vec2{r.Left, r.Bottom}),
		mapPoint(m, f32.Vec2{r.Right, r.Top}), mapPoint(m, f32.Vec2{r.Right, r.Bottom}),
	}
	return boundsOf(pts[:])
}

func boundsOf(pts []f32.Vec2) gpucore.Rect {
	if len(pts) == 0 {
		return gpucore.Rect{}
	}
	b := gpucore.Rect{Left: pts[0][0], Top: pts[0][1], Right: pts[0][0], Bottom: pts[0][1]}
	for _, p := range pts[1:] {
		b.Left, b.Right = min(b.Left, p[0]), max(b.Right, p[0])
		b.Top, b.Bottom = min(b.Top, p[1]), max(b.Bottom, p[1])
	}
	return b
}

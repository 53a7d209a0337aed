package gpucore

import "testing"

func TestRectJoin(t *testing.T) {
	a := RectXYWH(0, 0, 10, 10)
	b := RectXYWH(20, 5, 5, 10)
	got := a.Join(b)
	want := Rect{Left: 0, Top: 0, Right: 25, Bottom: 15}
	if got != want {
		t.Errorf("Join() = %v, want %v", got, want)
	}
	if got := a.Join(Rect{}); got != a {
		t.Errorf("Join(empty) = %v, want %v", got, a)
	}
	if got := (Rect{}).Join(b); got != b {
		t.Errorf("empty.Join() = %v, want %v", got, b)
	}
}

func TestRectOverlaps(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Rect
		overlap bool
		touch   bool
	}{
		{"disjoint", RectXYWH(0, 0, 10, 10), RectXYWH(20, 20, 5, 5), false, false},
		{"shared edge", RectXYWH(0, 0, 10, 10), RectXYWH(10, 0, 10, 10), false, true},
		{"overlap", RectXYWH(0, 0, 10, 10), RectXYWH(5, 5, 10, 10), true, true},
		{"identical", RectXYWH(1, 1, 2, 2), RectXYWH(1, 1, 2, 2), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.overlap {
				t.Errorf("Overlaps() = %v, want %v", got, tt.overlap)
			}
			if got := tt.a.TouchesOrOverlaps(tt.b); got != tt.touch {
				t.Errorf("TouchesOrOverlaps() = %v, want %v", got, tt.touch)
			}
		})
	}
}

func TestRectRoundOut(t *testing.T) {
	got := Rect{Left: 1.5, Top: -3, Right: 10.2, Bottom: 4}.RoundOut()
	want := ScissorRect{X: 1, Y: 0, Width: 10, Height: 4}
	if got != want {
		t.Errorf("RoundOut() = %+v, want %+v", got, want)
	}
}

func TestCanUpgradeAAOnMerge(t *testing.T) {
	tests := []struct {
		a, b AAType
		want bool
	}{
		{AANone, AACoverage, true},
		{AACoverage, AANone, true},
		{AANone, AAMSAA, false},
		{AAMSAA, AACoverage, false},
		{AANone, AANone, false},
	}
	for _, tt := range tests {
		if got := CanUpgradeAAOnMerge(tt.a, tt.b); got != tt.want {
			t.Errorf("CanUpgradeAAOnMerge(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestColorPackRGBA8(t *testing.T) {
	c := Color{R: 1, G: 0, B: 0.5, A: 1}
	if got, want := c.PackRGBA8(), uint32(0xFF80_00FF); got != want {
		t.Errorf("PackRGBA8() = %#x, want %#x", got, want)
	}
}

package pipeline

import (
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/gpucore"
)

func proxy(id gpucore.TextureID) *gpucore.TextureProxy {
	return &gpucore.TextureProxy{ID: id, Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm}
}

func key(p *Pipeline) string {
	var b gpucore.KeyBuilder
	p.GenKey(gpucore.DefaultCaps(), &b)
	return b.String()
}

func texturedSet(id gpucore.TextureID, m f32.Aff3) *ProcessorSet {
	tex := NewMatrix(m, NewTexture(proxy(id), gpucore.DefaultSampler, gpucore.SwizzleRGBA))
	s := NewProcessorSet(NewModulate(tex, false), nil, SrcOver)
	s.Finalize(InputColor{}, CoverageSingleChannel, nil, gpucore.DefaultCaps(), gpucore.ClampAuto)
	return s
}

func TestGenKeyEqualInputs(t *testing.T) {
	m := f32.Aff3{1, 0, 0, 0, 1, 0}
	a := New(InitArgs{}, texturedSet(1, m), nil)
	b := New(InitArgs{}, texturedSet(1, m), nil)
	if key(a) != key(b) {
		t.Errorf("equal inputs produced keys %s and %s", key(a), key(b))
	}

	// Different texture and matrix values keep the key.
	c := New(InitArgs{}, texturedSet(2, f32.Aff3{2, 0, 3, 0, 2, 4}), nil)
	if key(a) != key(c) {
		t.Error("uniform-only change altered the key")
	}
}

func TestGenKeyChanges(t *testing.T) {
	base := key(NewTrivial(false, SrcOver, 0))
	tests := []struct {
		name string
		p    *Pipeline
	}{
		{"scissor", NewTrivial(true, SrcOver, 0)},
		{"wireframe", NewTrivial(false, SrcOver, FlagWireframe)},
		{"snap", NewTrivial(false, SrcOver, FlagSnapVerticesToPixelCenters)},
		{"xfer", NewTrivial(false, Xfer{Mode: BlendPlus}, 0)},
		{"stencil clip", NewWithHardClip(SrcOver, HardClip{StencilClip: true}, 0, gpucore.SwizzleRGBA)},
		{"write swizzle", NewWithHardClip(SrcOver, HardClip{}, 0, gpucore.SwizzleBGRA)},
		{"processors", New(InitArgs{}, texturedSet(1, f32.Aff3{1, 0, 0, 0, 1, 0}), nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if key(tt.p) == base {
				t.Error("key unchanged")
			}
		})
	}
}

func TestProcessorKeyDiffersByShape(t *testing.T) {
	tex := func() *Processor { return NewTexture(proxy(1), gpucore.DefaultSampler, gpucore.SwizzleRGBA) }
	a := NewModulate(tex(), false)
	b := NewModulate(tex(), true)
	c := NewMatrix(f32.Aff3{1, 0, 0, 0, 1, 0}, tex())
	keys := map[string]string{}
	for name, p := range map[string]*Processor{"a": a, "b": b, "c": c} {
		var kb gpucore.KeyBuilder
		p.AddToKey(&kb)
		kb.Flush()
		if other, ok := keys[kb.String()]; ok {
			t.Errorf("%s and %s share a key", name, other)
		}
		keys[kb.String()] = name
	}
}

func TestColorProcessorsFirst(t *testing.T) {
	clip := NewAppliedClip(HardClip{})
	clip.AddCoverage(NewDeviceRect(gpucore.Rect{Right: 10, Bottom: 10}, true, false))
	cov := NewDeviceRect(gpucore.Rect{Right: 5, Bottom: 5}, false, false)
	set := NewProcessorSet(NewUniformColor(gpucore.Color{R: 1, A: 1}, ColorIgnoreInput), cov, SrcOver)
	set.Finalize(InputColor{}, CoverageNone, clip, gpucore.DefaultCaps(), gpucore.ClampAuto)
	p := New(InitArgs{}, set, clip)

	if p.NumProcessors() != 3 {
		t.Fatalf("NumProcessors() = %d, want 3", p.NumProcessors())
	}
	if p.NumColorProcessors() != 1 {
		t.Errorf("NumColorProcessors() = %d, want 1", p.NumColorProcessors())
	}
	if p.NumColorProcessors() > p.NumProcessors() {
		t.Error("more color processors than processors")
	}
	if !p.IsColorProcessor(0) || p.IsColorProcessor(1) {
		t.Error("color processors must precede coverage processors")
	}
}

func TestFinalizeAnalysis(t *testing.T) {
	caps := gpucore.DefaultCaps()

	known := NewProcessorSet(NewUniformColor(gpucore.Color{R: 2, A: 1}, ColorIgnoreInput), nil, SrcOver)
	a := known.Finalize(InputColor{}, CoverageNone, nil, caps, gpucore.ClampAuto)
	if !a.ColorKnown || a.Color.R != 1 || !a.InputColorIgnored {
		t.Errorf("known color analysis = %+v", a)
	}
	if !a.CompatibleWithCoverageAsAlpha {
		t.Error("SrcOver should be compatible with coverage as alpha")
	}

	adv := NewProcessorSet(nil, nil, Xfer{Mode: BlendMultiply})
	a = adv.Finalize(InputColor{}, CoverageNone, nil, caps, gpucore.ClampAuto)
	if !a.RequiresDstTexture || !a.RequiresNonOverlappingDraws {
		t.Errorf("advanced blend analysis = %+v, want dst texture", a)
	}

	src := NewProcessorSet(nil, nil, Xfer{Mode: BlendSrc})
	src.Finalize(InputColor{}, CoverageSingleChannel, nil, caps, gpucore.ClampAuto)
	if !src.Xfer().ShaderBlend {
		t.Error("Src with coverage should blend in the shader")
	}

	local := texturedSet(1, f32.Aff3{1, 0, 0, 0, 1, 0})
	if !local.Analysis().UsesLocalCoords {
		t.Error("textured set should use local coords")
	}
}

func TestDstReadKind(t *testing.T) {
	set := func() *ProcessorSet {
		s := NewProcessorSet(nil, nil, Xfer{Mode: BlendOverlay})
		s.Finalize(InputColor{}, CoverageNone, nil, gpucore.DefaultCaps(), gpucore.ClampAuto)
		return s
	}
	dst := proxy(9)

	caps := gpucore.DefaultCaps()
	caps.Shader.InputAttachments = false
	caps.TextureBarrier = false
	p := New(InitArgs{Caps: caps, DstProxy: dst}, set(), nil)
	if p.DstReadKind() != DstReadTexture || p.XferBarrier() != BarrierNone || p.DstProxy() != dst {
		t.Errorf("copy dst read = %v/%v", p.DstReadKind(), p.XferBarrier())
	}

	caps.TextureBarrier = true
	p = New(InitArgs{Caps: caps, DstProxy: dst}, set(), nil)
	if p.XferBarrier() != BarrierTexture || p.DstProxy() != nil {
		t.Errorf("barrier dst read = %v", p.XferBarrier())
	}

	caps.Shader.InputAttachments = true
	p = New(InitArgs{Caps: caps}, set(), nil)
	if p.DstReadKind() != DstReadInputAttachment || p.XferBarrier() != BarrierInputAttachment {
		t.Errorf("input attachment dst read = %v/%v", p.DstReadKind(), p.XferBarrier())
	}
	if p.BlendState() != nil {
		t.Error("shader blend must not use fixed-function blending")
	}
}

func TestVisitProxies(t *testing.T) {
	clip := NewAppliedClip(HardClip{})
	clip.AddCoverage(NewTexture(proxy(7), gpucore.DefaultSampler, gpucore.SwizzleAAAA))
	set := texturedSet(3, f32.Aff3{1, 0, 0, 0, 1, 0})
	p := New(InitArgs{}, set, clip)

	var got []gpucore.TextureID
	p.VisitProxies(func(tp *gpucore.TextureProxy) { got = append(got, tp.ID) })
	if len(got) != 2 || got[0] != 3 || got[1] != 7 {
		t.Errorf("VisitProxies() = %v, want [3 7]", got)
	}
}

func TestHoisting(t *testing.T) {
	tex := NewTexture(proxy(1), gpucore.DefaultSampler, gpucore.SwizzleRGBA)
	m := NewMatrix(f32.Aff3{2, 0, 0, 0, 2, 0}, tex)
	root := NewModulate(m, false)
	if !tex.IsHoisted() {
		t.Error("texture under uniform matrix should be hoisted")
	}
	if tex.MatrixAncestor() != m {
		t.Error("MatrixAncestor() should be the matrix node")
	}
	if root.MatrixAncestor() != nil {
		t.Error("root has no matrix ancestor")
	}

	explicit := NewTexture(proxy(2), gpucore.DefaultSampler, gpucore.SwizzleRGBA)
	NewProcessor(&ModulateEffect{}).AddChild(explicit, SampleExplicit)
	if explicit.IsHoisted() {
		t.Error("explicitly sampled child must not be hoisted")
	}
	if explicit.UsesLocalCoords() {
		t.Error("explicit child does not use local coords")
	}
}

func TestAddChildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for matrix usage without provider")
		}
	}()
	NewProcessor(&ModulateEffect{}).AddChild(NewUniformColor(gpucore.Color{}, ColorIgnoreInput), SampleUniformMatrix)
}

func TestBlendState(t *testing.T) {
	bs := SrcOver.BlendState()
	if bs == nil {
		t.Fatal("SrcOver BlendState() = nil")
	}
	if bs.Color.SrcFactor != gputypes.BlendFactorOne || bs.Color.DstFactor != gputypes.BlendFactorOneMinusSrcAlpha {
		t.Errorf("SrcOver color = %+v", bs.Color)
	}
	if (Xfer{Mode: BlendSrc}).BlendState() != nil {
		t.Error("Src should replace")
	}
	if !BlendMultiply.IsAdvanced() || BlendScreen.IsAdvanced() {
		t.Error("IsAdvanced() wrong")
	}
}

func TestAppliedClipEqual(t *testing.T) {
	var nilClip *AppliedClip
	empty := NewAppliedClip(HardClip{})
	if !nilClip.Equal(empty) || !empty.Equal(nilClip) {
		t.Error("nil clip should equal empty clip")
	}
	a := NewAppliedClip(HardClip{})
	a.Hard.Scissor.Set(gpucore.ScissorRect{Width: 10, Height: 10})
	b := NewAppliedClip(HardClip{})
	b.Hard.Scissor.Set(gpucore.ScissorRect{Width: 10, Height: 10})
	if !a.Equal(b) {
		t.Error("equal scissors should compare equal")
	}
	b.AddCoverage(NewDeviceRect(gpucore.Rect{Right: 1, Bottom: 1}, false, false))
	if a.Equal(b) {
		t.Error("coverage count differs")
	}
}

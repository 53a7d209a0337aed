package program

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/arena"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/stage"
)

var identity = f32.Aff3{1, 0, 0, 0, 1, 0}

var target = Target{Width: 256, Height: 256, Format: gputypes.TextureFormatRGBA8Unorm, NumSamples: 1}

func meshInfo(topology gputypes.PrimitiveTopology, stencil pipeline.StencilSettings) *Info {
	st := stage.NewMesh(identity, true, false, gpucore.Color{})
	p := pipeline.NewTrivial(false, pipeline.SrcOver, 0)
	return NewInfo(nil, target, st, p, stencil, topology, gputypes.LoadOpLoad)
}

func TestKeyStable(t *testing.T) {
	caps := gpucore.DefaultCaps()
	a := meshInfo(gputypes.PrimitiveTopologyTriangleList, pipeline.StencilSettings{})
	b := meshInfo(gputypes.PrimitiveTopologyTriangleList, pipeline.StencilSettings{})
	if a.Key(caps) != b.Key(caps) {
		t.Error("equal infos produced different keys")
	}
	if a.Key(caps) != a.Key(caps) {
		t.Error("Key() not stable")
	}
}

func TestKeyChanges(t *testing.T) {
	caps := gpucore.DefaultCaps()
	base := meshInfo(gputypes.PrimitiveTopologyTriangleList, pipeline.StencilSettings{}).Key(caps)

	strip := meshInfo(gputypes.PrimitiveTopologyTriangleStrip, pipeline.StencilSettings{})
	stencil := meshInfo(gputypes.PrimitiveTopologyTriangleList, pipeline.StencilEvenOdd.Resolve(false, 8))
	msaa := meshInfo(gputypes.PrimitiveTopologyTriangleList, pipeline.StencilSettings{})
	msaa.Target.NumSamples = 4
	for name, info := range map[string]*Info{"topology": strip, "stencil": stencil, "samples": msaa} {
		if info.Key(caps) == base {
			t.Errorf("%s: key unchanged", name)
		}
	}
}

func TestInfoFromSlab(t *testing.T) {
	slab := arena.NewSlab[Info](4)
	st := stage.NewPathStencil(identity)
	p := pipeline.NewTrivial(true, pipeline.SrcOver, 0)
	info := NewInfo(slab, target, st, p, pipeline.StencilNonZeroWinding.Resolve(false, 8),
		gputypes.PrimitiveTopologyTriangleList, gputypes.LoadOpClear)
	if slab.Len() != 1 {
		t.Errorf("slab.Len() = %d, want 1", slab.Len())
	}
	if !info.IsStencilOnly() {
		t.Error("path stencil info should be stencil-only")
	}
	req := info.Requirements()
	if !req.Scissor || !req.VertexBuffer || req.InstanceBuffer || req.Textures {
		t.Errorf("Requirements() = %+v", req)
	}
}

func TestVertexLayouts(t *testing.T) {
	cover := stage.NewBoundingBoxCover(identity, false)
	info := NewInfo(nil, target, cover, pipeline.NewTrivial(false, pipeline.SrcOver, 0),
		pipeline.StencilSettings{}, gputypes.PrimitiveTopologyTriangleStrip, gputypes.LoadOpLoad)
	l := info.VertexLayouts()
	if len(l) != 1 || l[0].StepMode != gputypes.VertexStepModeInstance {
		t.Fatalf("VertexLayouts() = %+v, want one instance layout", l)
	}
	if l[0].Attributes[0].ShaderLocation != 0 {
		t.Errorf("first location = %d, want 0", l[0].Attributes[0].ShaderLocation)
	}
	if !info.Requirements().InstanceBuffer {
		t.Error("cover needs an instance buffer")
	}
}

type fakeExec struct{ released *int }

func (f fakeExec) Release() { *f.released++ }

func TestCacheHitMiss(t *testing.T) {
	caps := gpucore.DefaultCaps()
	c := NewCache(caps, 1)
	released, builds := 0, 0
	build := func(*Info) (Executable, error) {
		builds++
		return fakeExec{&released}, nil
	}

	if _, err := c.FindOrCreate(meshInfo(gputypes.PrimitiveTopologyTriangleList, pipeline.StencilSettings{}), build); err != nil {
		t.Fatal(err)
	}
	if _, err := c.FindOrCreate(meshInfo(gputypes.PrimitiveTopologyTriangleList, pipeline.StencilSettings{}), build); err != nil {
		t.Fatal(err)
	}
	if builds != 1 {
		t.Errorf("builds = %d, want 1", builds)
	}
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 hit 1 miss", s)
	}

	// A second key evicts the first with a limit of one.
	if _, err := c.FindOrCreate(meshInfo(gputypes.PrimitiveTopologyLineList, pipeline.StencilSettings{}), build); err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}
	c.Clear()
	if released != 2 || c.Len() != 0 {
		t.Errorf("after Clear released = %d len = %d", released, c.Len())
	}
}

func TestCacheBuildError(t *testing.T) {
	c := NewCache(gpucore.DefaultCaps(), 0)
	errBad := errors.New("bad shader")
	_, err := c.FindOrCreate(meshInfo(gputypes.PrimitiveTopologyTriangleList, pipeline.StencilSettings{}),
		func(*Info) (Executable, error) { return nil, errBad })
	if !errors.Is(err, errBad) {
		t.Errorf("err = %v, want wrapped %v", err, errBad)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

const trivialWGSL = `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func TestNagaCompiler(t *testing.T) {
	m, err := NagaCompiler{}.Compile(trivialWGSL)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(m.SPIRV) == 0 || m.SPIRV[0] != 0x07230203 {
		t.Errorf("SPIR-V missing magic number")
	}
	if m.WGSL != "" {
		t.Error("WGSL set on SPIR-V module")
	}
	if _, err := (NagaCompiler{}).Compile(""); !errors.Is(err, ErrEmptySource) {
		t.Errorf("empty source err = %v", err)
	}
}

func TestWGSLPassthrough(t *testing.T) {
	m, err := WGSLPassthrough{}.Compile(trivialWGSL)
	if err != nil || m.WGSL != trivialWGSL {
		t.Errorf("Compile() = %+v, %v", m, err)
	}
}

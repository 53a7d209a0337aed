package halexec

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/draw"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
	"github.com/gogpu/gpucmd/stage"
)

var (
	identity = f32.Aff3{1, 0, 0, 0, 1, 0}
	white    = gpucore.Color{R: 1, G: 1, B: 1, A: 1}
	target   = program.Target{Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm, NumSamples: 1}
)

// newNoopBackend creates a backend on a noop device for testing.
func newNoopBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()

	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("no noop adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	b := NewBackend(append([]Option{WithDevice(openDev.Device, openDev.Queue, adapters[0].Info)}, opts...)...)
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() {
		b.Close()
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return b
}

func newExec(t *testing.T, b *Backend, tgt program.Target) *Executor {
	t.Helper()
	exec, err := b.NewExecutor(tgt)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	t.Cleanup(exec.Release)
	return exec.(*Executor)
}

// flush records cmds into a list and flushes it through exec.
func flush(t *testing.T, b *Backend, exec *Executor, cmds ...draw.Command) *renderpass.Pass {
	t.Helper()
	l := draw.NewList(b.Caps())
	for _, c := range cmds {
		l.Record(c, nil, nil)
	}
	pass := renderpass.New(exec, b.Caps())
	fs := &draw.FlushState{Caps: b.Caps(), Target: exec.Target(), Pass: pass}
	if err := l.Flush(fs); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return pass
}

func triangle(x float32) draw.Command {
	return draw.NewMesh(draw.Paint{}, draw.Mesh{
		Topology:  gputypes.PrimitiveTopologyTriangleList,
		Positions: []f32.Vec2{{x, 0}, {x + 10, 0}, {x, 10}},
		Color:     white,
	})
}

func TestBackendRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendHAL) {
		t.Fatal("hal backend should be registered on import")
	}
	if got := backend.Get(backend.BackendHAL).Name(); got != "hal" {
		t.Errorf("Name() = %q", got)
	}
}

func TestBackendOpensNoopVariant(t *testing.T) {
	b := NewBackend(WithVariant(gputypes.BackendEmpty))
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer b.Close()

	dev, queue := b.Device()
	if dev == nil || queue == nil {
		t.Fatal("Init should open a device")
	}
	if b.Programs() == nil {
		t.Error("Init should create the program cache")
	}
}

func TestBackendCaps(t *testing.T) {
	b := newNoopBackend(t)
	caps := b.Caps()
	if caps == nil {
		t.Fatal("Caps() is nil after Init")
	}
	if caps.TextureBarrier || caps.Shader.InputAttachments {
		t.Error("hal caps must not report in-pass destination reads")
	}
	if caps.MaxVertexAttributes <= 0 {
		t.Errorf("MaxVertexAttributes = %d", caps.MaxVertexAttributes)
	}

	custom := gpucore.DefaultCaps()
	if got := newNoopBackend(t, WithCaps(custom)).Caps(); got != custom {
		t.Error("WithCaps should override derived caps")
	}
}

func TestNewExecutorErrors(t *testing.T) {
	if _, err := NewBackend().NewExecutor(target); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("before Init: err = %v", err)
	}
	b := newNoopBackend(t)
	if _, err := b.NewExecutor(program.Target{}); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("empty target: err = %v", err)
	}
}

func TestExecutorMesh(t *testing.T) {
	b := newNoopBackend(t)
	exec := newExec(t, b, target)

	pass := flush(t, b, exec, triangle(0), triangle(20))
	if err := exec.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	st := exec.Stats()
	if st.Passes != 1 || st.Submissions != 1 {
		t.Errorf("passes/submissions = %d/%d, want 1/1", st.Passes, st.Submissions)
	}
	if st.Pipelines != 1 {
		t.Errorf("Pipelines = %d, want 1", st.Pipelines)
	}
	// Two triangles merge into one draw.
	if st.Draws != 1 {
		t.Errorf("Draws = %d, want 1", st.Draws)
	}
	if ps := pass.Stats(); ps.FailedDraws != 0 || ps.FailedBinds != 0 {
		t.Errorf("pass stats = %+v", ps)
	}
}

func TestProgramCacheSharedAcrossPasses(t *testing.T) {
	b := newNoopBackend(t)
	exec := newExec(t, b, target)
	other := newExec(t, b, target)

	flush(t, b, exec, triangle(0))
	flush(t, b, exec, triangle(0))
	flush(t, b, other, triangle(0))

	if n := exec.Stats().Pipelines + other.Stats().Pipelines; n != 1 {
		t.Errorf("pipelines built = %d, want 1", n)
	}
	stats := b.Programs().Stats()
	if stats.Misses != 1 || stats.Hits != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 2/1", stats.Hits, stats.Misses)
	}
	if exec.Stats().Submissions != 2 {
		t.Errorf("Submissions = %d, want 2", exec.Stats().Submissions)
	}
}

func TestExecutorTexturedQuads(t *testing.T) {
	b := newNoopBackend(t)
	exec := newExec(t, b, target)

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 255, A: 128})
	proxy, err := b.UploadImage(7, img)
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if proxy.Width != 4 || proxy.Height != 4 || proxy.ID != 7 {
		t.Fatalf("proxy = %+v", proxy)
	}

	quad := draw.NewTexturedQuads(draw.Paint{AA: gpucore.AACoverage},
		draw.QuadTexture{Proxy: proxy, Sampler: gpucore.DefaultSampler},
		draw.RectQuad(gpucore.RectXYWH(4, 4, 16, 16), gpucore.RectXYWH(0, 0, 1, 1), white))
	flush(t, b, exec, quad)

	if err := exec.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if exec.Stats().BindGroups != 1 || exec.Stats().Draws != 1 {
		t.Errorf("stats = %+v", exec.Stats())
	}
}

func TestExecutorUnknownTexture(t *testing.T) {
	b := newNoopBackend(t)
	exec := newExec(t, b, target)

	missing := &gpucore.TextureProxy{ID: 99, Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA8Unorm}
	quad := draw.NewTexturedQuads(draw.Paint{}, draw.QuadTexture{Proxy: missing, Sampler: gpucore.DefaultSampler},
		draw.RectQuad(gpucore.RectXYWH(0, 0, 8, 8), gpucore.RectXYWH(0, 0, 1, 1), white))
	pass := flush(t, b, exec, quad)

	if err := exec.Err(); !errors.Is(err, ErrUnknownTexture) {
		t.Fatalf("Err() = %v, want ErrUnknownTexture", err)
	}
	if exec.Stats().Draws != 0 || pass.Stats().FailedDraws != 1 {
		t.Errorf("draws = %d, failed = %d", exec.Stats().Draws, pass.Stats().FailedDraws)
	}
}

func TestExecutorStencilPath(t *testing.T) {
	b := newNoopBackend(t)
	tgt := target
	tgt.HasStencil = true
	exec := newExec(t, b, tgt)

	tri := []f32.Vec2{{0, 0}, {30, 0}, {0, 30}, {30, 30}, {0, 30}, {30, 0}}
	flush(t, b, exec, draw.NewTessellatedPath(draw.Paint{}, identity, draw.FillEvenOdd, tri, white))

	if err := exec.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	// Stencil pass then cover pass.
	if st := exec.Stats(); st.Pipelines != 2 || st.Draws != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestExecutorClearBecomesLoadOp(t *testing.T) {
	b := newNoopBackend(t)
	exec := newExec(t, b, target)

	flush(t, b, exec, draw.NewClear(gpucore.Color{B: 1, A: 1}, nil), triangle(0))
	if err := exec.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if st := exec.Stats(); st.Draws != 1 {
		t.Errorf("Draws = %d, want 1", st.Draws)
	}
}

func TestBindOutsidePass(t *testing.T) {
	b := newNoopBackend(t)
	exec := newExec(t, b, target)

	info := program.NewInfo(nil, target, stage.NewMesh(identity, false, false, white),
		pipeline.NewTrivial(false, pipeline.SrcOver, 0), pipeline.StencilSettings{},
		gputypes.PrimitiveTopologyTriangleList, gputypes.LoadOpLoad)
	if exec.BindPipeline(info, gpucore.Rect{}) {
		t.Fatal("BindPipeline outside a pass should fail")
	}
	if !errors.Is(exec.Err(), errNoPass) {
		t.Errorf("Err() = %v", exec.Err())
	}
}

func TestIndirectDraws(t *testing.T) {
	b := newNoopBackend(t)
	exec := newExec(t, b, target)

	info := program.NewInfo(nil, target, stage.NewMesh(identity, false, false, white),
		pipeline.NewTrivial(false, pipeline.SrcOver, 0), pipeline.StencilSettings{},
		gputypes.PrimitiveTopologyTriangleList, gputypes.LoadOpLoad)
	cmds := renderpass.PutDrawIndirect(nil,
		renderpass.DrawIndirectCommand{VertexCount: 3, InstanceCount: 1},
		renderpass.DrawIndirectCommand{VertexCount: 3, InstanceCount: 1, FirstVertex: 3},
	)

	exec.Begin(gputypes.LoadOpClear, gpucore.Color{})
	if !exec.BindPipeline(info, gpucore.Rect{}) {
		t.Fatalf("BindPipeline: %v", exec.Err())
	}
	exec.BindBuffers(nil, nil, &renderpass.Buffer{ID: 1, Data: make([]byte, 6*8)})
	exec.DrawIndirect(&renderpass.Buffer{ID: 2, Data: cmds}, 0, 2)
	exec.End()

	if err := exec.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if st := exec.Stats(); st.Draws != 2 || st.Uploads != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStencilOp(t *testing.T) {
	tests := []struct {
		in   gputypes.StencilOperation
		want hal.StencilOperation
	}{
		{gputypes.StencilOperationUndefined, hal.StencilOperationKeep},
		{gputypes.StencilOperationKeep, hal.StencilOperationKeep},
		{gputypes.StencilOperationZero, hal.StencilOperationZero},
		{gputypes.StencilOperationReplace, hal.StencilOperationReplace},
		{gputypes.StencilOperationInvert, hal.StencilOperationInvert},
		{gputypes.StencilOperationIncrementClamp, hal.StencilOperationIncrementClamp},
		{gputypes.StencilOperationDecrementClamp, hal.StencilOperationDecrementClamp},
		{gputypes.StencilOperationIncrementWrap, hal.StencilOperationIncrementWrap},
		{gputypes.StencilOperationDecrementWrap, hal.StencilOperationDecrementWrap},
	}
	for _, tt := range tests {
		if got := stencilOp(tt.in); got != tt.want {
			t.Errorf("stencilOp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDepthStencilState(t *testing.T) {
	st := pipeline.StencilEvenOdd.Resolve(false, 8)
	info := program.NewInfo(nil, target, stage.NewMesh(identity, false, false, white),
		pipeline.NewTrivial(false, pipeline.SrcOver, 0), st,
		gputypes.PrimitiveTopologyTriangleList, gputypes.LoadOpLoad)
	if depthStencilState(info) != nil {
		t.Error("target without stencil should have no depth-stencil state")
	}

	info.Target.HasStencil = true
	ds := depthStencilState(info)
	if ds == nil {
		t.Fatal("depthStencilState() = nil")
	}
	if ds.StencilFront.PassOp != hal.StencilOperationInvert {
		t.Errorf("front pass op = %d, want Invert", ds.StencilFront.PassOp)
	}
	if ds.StencilWriteMask != 1 {
		t.Errorf("write mask = %#x, want 1", ds.StencilWriteMask)
	}
	if ds.Format != stencilFormat {
		t.Errorf("format = %v", ds.Format)
	}
}

func TestSamplerDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		in      gpucore.SamplerState
		mip     gputypes.FilterMode
		lodMax  float32
		address gputypes.AddressMode
	}{
		{"default", gpucore.DefaultSampler, gputypes.FilterModeNearest, 0, gputypes.AddressModeClampToEdge},
		{"zero", gpucore.SamplerState{}, gputypes.FilterModeNearest, 0, gputypes.AddressModeClampToEdge},
		{"mip nearest", gpucore.SamplerState{Filter: gputypes.FilterModeLinear, Mipmap: gputypes.MipmapFilterModeNearest},
			gputypes.FilterModeNearest, 32, gputypes.AddressModeClampToEdge},
		{"mip linear", gpucore.SamplerState{Filter: gputypes.FilterModeLinear, Mipmap: gputypes.MipmapFilterModeLinear,
			Address: gputypes.AddressModeRepeat}, gputypes.FilterModeLinear, 32, gputypes.AddressModeRepeat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := samplerDescriptor(tt.in)
			if d.MipmapFilter != tt.mip || d.LodMaxClamp != tt.lodMax || d.AddressModeU != tt.address {
				t.Errorf("descriptor = %+v", d)
			}
		})
	}
}

package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
	"github.com/gogpu/gpucmd/stage"
)

var target = program.Target{Width: 32, Height: 32, Format: gputypes.TextureFormatRGBA8Unorm, NumSamples: 1}

func TestTraceBackendName(t *testing.T) {
	b := NewTraceBackend(nil)
	if b.Name() != "trace" {
		t.Errorf("Name() = %q, want %q", b.Name(), "trace")
	}
}

func TestTraceBackendNotInitialized(t *testing.T) {
	b := NewTraceBackend(nil)
	if _, err := b.NewExecutor(target); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("NewExecutor before Init: err = %v, want ErrNotInitialized", err)
	}
}

func TestTraceBackendCaps(t *testing.T) {
	caps := gpucore.DefaultCaps()
	caps.DynamicStateTextures = false
	b := NewTraceBackend(caps)
	if b.Caps() != caps {
		t.Error("Caps() should return the caps the backend was created with")
	}
	if NewTraceBackend(nil).Caps() == nil {
		t.Error("nil caps should default")
	}
}

func TestTraceExecutorDrivenByPass(t *testing.T) {
	b := NewTraceBackend(nil)
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	exec, err := b.NewExecutor(target)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	defer exec.Release()

	st := stage.NewMesh(f32.Aff3{1, 0, 0, 0, 1, 0}, true, false, gpucore.Color{})
	info := program.NewInfo(nil, target, st, pipeline.NewTrivial(false, pipeline.SrcOver, 0),
		pipeline.StencilSettings{}, gputypes.PrimitiveTopologyTriangleList, gputypes.LoadOpClear)

	p := renderpass.New(exec, b.Caps())
	p.Begin(gputypes.LoadOpClear, gpucore.Color{R: 1, A: 1})
	if !p.BindPipeline(info, gpucore.RectXYWH(0, 0, 8, 8)) {
		t.Fatal("BindPipeline refused")
	}
	p.BindBuffers(nil, nil, &renderpass.Buffer{ID: 3, Data: make([]byte, 64)})
	p.Draw(3, 0)
	p.End()

	tr := exec.(*TraceExecutor)
	want := []string{
		"Begin(clear 1,0,0,1)",
		"BindPipeline(Mesh, 0 processors, [0,0 8,8])",
		"BindBuffers(-,-,#3)",
		"Draw(3,0)",
		"End",
	}
	got := tr.Lines()
	if len(got) != len(want) {
		t.Fatalf("trace = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("trace[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if exec.Err() != nil {
		t.Errorf("Err() = %v", exec.Err())
	}
}

func TestTraceExecutorBeginResets(t *testing.T) {
	e := &TraceExecutor{target: target}
	e.Begin(gputypes.LoadOpLoad, gpucore.Color{})
	e.Draw(3, 0)
	e.End()
	e.Begin(gputypes.LoadOpLoad, gpucore.Color{})
	if got := e.String(); got != "Begin(load)" {
		t.Errorf("after second Begin trace = %q", got)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	// Trace backend is auto-registered via init()
	if !IsRegistered("trace") {
		t.Error("trace backend should be auto-registered")
	}

	b := Get("trace")
	if b == nil {
		t.Fatal("Get(trace) returned nil")
	}
	if b.Name() != "trace" {
		t.Errorf("Get(trace).Name() = %q, want %q", b.Name(), "trace")
	}
}

func TestRegistryGetUnregistered(t *testing.T) {
	b := Get("nonexistent")
	if b != nil {
		t.Error("Get(nonexistent) should return nil")
	}
}

func TestRegistryAvailable(t *testing.T) {
	available := Available()
	found := false
	for _, name := range available {
		if name == "trace" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Available() should include 'trace'")
	}
}

func TestRegistryDefault(t *testing.T) {
	b := Default()
	if b == nil {
		t.Fatal("Default() returned nil")
	}
	// Trace is the default when no GPU backend is registered
	if b.Name() != "trace" {
		t.Logf("Default() returned %q (may vary based on registered backends)", b.Name())
	}
}

func TestRegistryMustDefault(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustDefault() panicked: %v", r)
		}
	}()
	b := MustDefault()
	if b == nil {
		t.Error("MustDefault() returned nil")
	}
}

type failingBackend struct{ *TraceBackend }

func (failingBackend) Name() string { return "failing" }
func (failingBackend) Init() error  { return ErrBackendNotAvailable }

func TestRegistryInitDefaultSkipsFailures(t *testing.T) {
	Register(BackendHAL, func() Backend { return failingBackend{NewTraceBackend(nil)} })
	defer Unregister(BackendHAL)

	b, err := InitDefault()
	if err != nil {
		t.Fatalf("InitDefault() error = %v", err)
	}
	if b == nil {
		t.Fatal("InitDefault() returned nil backend")
	}
	defer b.Close()
	if b.Name() != "trace" {
		t.Errorf("InitDefault() = %q, want trace after hal fails", b.Name())
	}

	// Verify it's initialized by using it
	if _, err := b.NewExecutor(target); err != nil {
		t.Errorf("Backend from InitDefault() should be usable: %v", err)
	}
}

func TestRegistryGetReturnsFreshBackend(t *testing.T) {
	a, b := Get(BackendTrace), Get(BackendTrace)
	if a == nil || b == nil {
		t.Fatal("Get(trace) returned nil")
	}
	if a == b {
		t.Error("Get should build a new backend per call")
	}
	// Get does not initialize.
	if _, err := a.NewExecutor(target); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("NewExecutor before Init: err = %v, want ErrNotInitialized", err)
	}
}

func TestRegistryDefaultPrefersHAL(t *testing.T) {
	Register(BackendHAL, func() Backend { return failingBackend{NewTraceBackend(nil)} })
	defer Unregister(BackendHAL)

	// Default only builds; a hal backend that cannot Init still wins.
	if b := Default(); b == nil || b.Name() != "failing" {
		t.Errorf("Default() = %v, want the hal factory's backend", b)
	}
}

func TestRegistryUnregister(t *testing.T) {
	Register("test-backend", func() Backend { return NewTraceBackend(nil) })

	if !IsRegistered("test-backend") {
		t.Error("test-backend should be registered")
	}

	Unregister("test-backend")

	if IsRegistered("test-backend") {
		t.Error("test-backend should be unregistered")
	}
}

func TestTraceBackendClose(t *testing.T) {
	b := NewTraceBackend(nil)
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	b.Close()
	if _, err := b.NewExecutor(target); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("NewExecutor after Close: err = %v", err)
	}
}

package backend

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/logging"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
)

// TraceBackend is a device-less backend. Its executors record one line per
// call, which makes it the reference for what a pass issued.
type TraceBackend struct {
	mu          sync.Mutex
	initialized bool
	caps        *gpucore.Caps
}

// init registers the trace backend on package import.
func init() {
	Register(BackendTrace, func() Backend {
		return NewTraceBackend(nil)
	})
}

// NewTraceBackend creates a trace backend reporting caps. Nil caps uses
// gpucore.DefaultCaps.
func NewTraceBackend(caps *gpucore.Caps) *TraceBackend {
	if caps == nil {
		caps = gpucore.DefaultCaps()
	}
	return &TraceBackend{caps: caps}
}

// Name returns the backend identifier.
func (b *TraceBackend) Name() string {
	return BackendTrace
}

// Init initializes the backend.
func (b *TraceBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = true
	return nil
}

// Close releases all backend resources.
func (b *TraceBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = false
}

// Caps returns the capabilities the backend was created with.
func (b *TraceBackend) Caps() *gpucore.Caps { return b.caps }

// NewExecutor creates a recording executor.
func (b *TraceBackend) NewExecutor(target program.Target) (Executor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return &TraceExecutor{target: target}, nil
}

// TraceExecutor records executor calls.
type TraceExecutor struct {
	target program.Target
	lines  []string
	bound  *program.Info
}

// Lines returns the calls recorded since the last Begin.
func (e *TraceExecutor) Lines() []string { return e.lines }

// String returns the recorded calls separated by spaces.
func (e *TraceExecutor) String() string { return strings.Join(e.lines, " ") }

func (e *TraceExecutor) record(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	e.lines = append(e.lines, line)
	logging.Logger().Debug("trace", "call", line)
}

// Begin satisfies renderpass.Executor.
func (e *TraceExecutor) Begin(loadOp gputypes.LoadOp, clear gpucore.Color) {
	e.lines = e.lines[:0]
	e.bound = nil
	if loadOp == gputypes.LoadOpClear {
		e.record("Begin(clear %g,%g,%g,%g)", clear.R, clear.G, clear.B, clear.A)
		return
	}
	e.record("Begin(load)")
}

// BindPipeline satisfies renderpass.Executor.
func (e *TraceExecutor) BindPipeline(info *program.Info, bounds gpucore.Rect) bool {
	e.bound = info
	e.record("BindPipeline(%s, %d processors, %v)", info.Stage.Name(), info.Pipeline.NumProcessors(), bounds)
	return true
}

// SetScissorRect satisfies renderpass.Executor.
func (e *TraceExecutor) SetScissorRect(r gpucore.ScissorRect) {
	e.record("SetScissorRect(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// BindTextures satisfies renderpass.Executor.
func (e *TraceExecutor) BindTextures(stageTextures []*gpucore.TextureProxy) bool {
	ids := make([]string, 0, len(stageTextures))
	for _, p := range stageTextures {
		ids = append(ids, fmt.Sprint(p.ID))
	}
	if e.bound != nil {
		e.bound.VisitProxies(func(p *gpucore.TextureProxy) {
			ids = append(ids, fmt.Sprint(p.ID))
		})
	}
	e.record("BindTextures(%s)", strings.Join(ids, ","))
	return true
}

// BindBuffers satisfies renderpass.Executor.
func (e *TraceExecutor) BindBuffers(index, instance, vertex *renderpass.Buffer) {
	e.record("BindBuffers(%s,%s,%s)", bufferName(index), bufferName(instance), bufferName(vertex))
}

func bufferName(b *renderpass.Buffer) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("#%d", b.ID)
}

// Draw satisfies renderpass.Executor.
func (e *TraceExecutor) Draw(vertexCount, baseVertex uint32) {
	e.record("Draw(%d,%d)", vertexCount, baseVertex)
}

// DrawIndexed satisfies renderpass.Executor.
func (e *TraceExecutor) DrawIndexed(indexCount, baseIndex uint32, baseVertex int32) {
	e.record("DrawIndexed(%d,%d,%d)", indexCount, baseIndex, baseVertex)
}

// DrawInstanced satisfies renderpass.Executor.
func (e *TraceExecutor) DrawInstanced(instanceCount, baseInstance, vertexCount, baseVertex uint32) {
	e.record("DrawInstanced(%d,%d,%d,%d)", instanceCount, baseInstance, vertexCount, baseVertex)
}

// DrawIndexedInstanced satisfies renderpass.Executor.
func (e *TraceExecutor) DrawIndexedInstanced(indexCount, baseIndex, instanceCount, baseInstance uint32, baseVertex int32) {
	e.record("DrawIndexedInstanced(%d,%d,%d,%d,%d)", indexCount, baseIndex, instanceCount, baseInstance, baseVertex)
}

// DrawIndirect satisfies renderpass.Executor.
func (e *TraceExecutor) DrawIndirect(buf *renderpass.Buffer, offset uint64, count uint32) {
	e.record("DrawIndirect(%s,%d,%d)", bufferName(buf), offset, count)
}

// DrawIndexedIndirect satisfies renderpass.Executor.
func (e *TraceExecutor) DrawIndexedIndirect(buf *renderpass.Buffer, offset uint64, count uint32) {
	e.record("DrawIndexedIndirect(%s,%d,%d)", bufferName(buf), offset, count)
}

// Barrier satisfies renderpass.Executor.
func (e *TraceExecutor) Barrier(b pipeline.XferBarrier) {
	e.record("Barrier(%d)", b)
}

// End satisfies renderpass.Executor.
func (e *TraceExecutor) End() {
	e.bound = nil
	e.record("End")
}

// Err always returns nil.
func (e *TraceExecutor) Err() error { return nil }

// Release drops the recorded calls.
func (e *TraceExecutor) Release() { e.lines = nil }

package renderpass

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/debug"
	"github.com/gogpu/gpucmd/internal/logging"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
)

// State is the bind status of a Pass.
type State uint8

// Pass states.
const (
	StateNotConfigured State = iota
	StateOk
	StateFailedToBind
)

func (s State) String() string {
	switch s {
	case StateNotConfigured:
		return "NotConfigured"
	case StateOk:
		return "Ok"
	case StateFailedToBind:
		return "FailedToBind"
	default:
		return "State(?)"
	}
}

// dynamicState is a set of dynamic state classes.
type dynamicState uint8

const (
	dynScissor dynamicState = 1 << iota
	dynTextures
	dynVertexBuffer
	dynInstanceBuffer
)

func required(r program.Requirements) dynamicState {
	var d dynamicState
	if r.Scissor {
		d |= dynScissor
	}
	if r.Textures {
		d |= dynTextures
	}
	if r.VertexBuffer {
		d |= dynVertexBuffer
	}
	if r.InstanceBuffer {
		d |= dynInstanceBuffer
	}
	return d
}

// Stats counts pass activity.
type Stats struct {
	Binds       int
	FailedBinds int
	Draws       int
	FailedDraws int
	Barriers    int
}

// Pass is one render pass over an Executor. It is not safe for
// concurrent use.
type Pass struct {
	exec Executor
	caps *gpucore.Caps

	state      State
	required   dynamicState
	configured dynamicState
	barrier    pipeline.XferBarrier
	info       *program.Info

	stats Stats
}

// New returns a pass driving exec. A nil caps uses gpucore.DefaultCaps.
func New(exec Executor, caps *gpucore.Caps) *Pass {
	if caps == nil {
		caps = gpucore.DefaultCaps()
	}
	return &Pass{exec: exec, caps: caps}
}

// State returns the current bind status.
func (p *Pass) State() State { return p.state }

// Stats returns the counters accumulated since New.
func (p *Pass) Stats() Stats { return p.stats }

// Begin starts the pass with the given load op.
func (p *Pass) Begin(loadOp gputypes.LoadOp, clear gpucore.Color) {
	p.reset()
	p.exec.Begin(loadOp, clear)
}

func (p *Pass) reset() {
	p.state = StateNotConfigured
	p.required, p.configured = 0, 0
	p.barrier = pipeline.BarrierNone
	p.info = nil
}

// BindPipeline binds info for draws inside bounds. It returns false and
// moves to FailedToBind if the program exceeds the attribute limit or the
// executor refuses it.
func (p *Pass) BindPipeline(info *program.Info, bounds gpucore.Rect) bool {
	p.stats.Binds++
	p.required, p.configured = 0, 0
	p.info = nil

	if n := info.NumAttributes(); p.caps.MaxVertexAttributes > 0 && n > p.caps.MaxVertexAttributes {
		p.fail(info, "too many vertex attributes", "attributes", n, "max", p.caps.MaxVertexAttributes)
		return false
	}
	if !p.exec.BindPipeline(info, bounds) {
		p.fail(info, "executor refused pipeline")
		return false
	}

	p.state = StateOk
	p.info = info
	p.required = required(info.Requirements())
	p.barrier = info.Pipeline.XferBarrier()
	return true
}

func (p *Pass) fail(info *program.Info, reason string, attrs ...any) {
	p.state = StateFailedToBind
	p.stats.FailedBinds++
	args := append([]any{"stage", info.Stage.Name(), "reason", reason}, attrs...)
	logging.Logger().Warn("renderpass: bind failed", args...)
}

// dynamic reports whether a dynamic state call should reach the executor.
func (p *Pass) dynamic(op string) bool {
	debug.Assertf(p.state != StateNotConfigured, "renderpass: %s before BindPipeline", op)
	return p.state == StateOk
}

// SetScissorRect sets the scissor for following draws.
func (p *Pass) SetScissorRect(r gpucore.ScissorRect) {
	if !p.dynamic("SetScissorRect") {
		return
	}
	p.exec.SetScissorRect(r)
	p.configured |= dynScissor
}

// BindTextures binds the stage's textures and the pipeline's. A refusal by
// the executor moves the pass to FailedToBind.
func (p *Pass) BindTextures(stageTextures []*gpucore.TextureProxy) {
	if !p.dynamic("BindTextures") {
		return
	}
	if !p.exec.BindTextures(stageTextures) {
		p.fail(p.info, "texture bind refused")
		return
	}
	p.configured |= dynTextures
}

// BindBuffers binds the buffers for following draws. Nil buffers are
// unused.
func (p *Pass) BindBuffers(index, instance, vertex *Buffer) {
	if !p.dynamic("BindBuffers") {
		return
	}
	p.exec.BindBuffers(index, instance, vertex)
	if vertex != nil {
		p.configured |= dynVertexBuffer
	}
	if instance != nil {
		p.configured |= dynInstanceBuffer
	}
}

// prepareDraw gates a draw on the bind status and issues the dst barrier.
func (p *Pass) prepareDraw() bool {
	if p.state != StateOk {
		p.stats.FailedDraws++
		return false
	}
	debug.Assertf(p.configured&p.required == p.required,
		"renderpass: draw with missing state %04b (have %04b)", p.required&^p.configured, p.configured)
	if p.barrier != pipeline.BarrierNone {
		p.exec.Barrier(p.barrier)
		p.stats.Barriers++
	}
	p.stats.Draws++
	return true
}

// Draw draws vertexCount vertices starting at baseVertex.
func (p *Pass) Draw(vertexCount, baseVertex uint32) {
	if p.prepareDraw() {
		p.exec.Draw(vertexCount, baseVertex)
	}
}

// DrawIndexed draws indexCount indices starting at baseIndex.
func (p *Pass) DrawIndexed(indexCount, baseIndex uint32, baseVertex int32) {
	if p.prepareDraw() {
		p.exec.DrawIndexed(indexCount, baseIndex, baseVertex)
	}
}

// DrawInstanced draws instanceCount instances of vertexCount vertices.
func (p *Pass) DrawInstanced(instanceCount, baseInstance, vertexCount, baseVertex uint32) {
	if p.prepareDraw() {
		p.exec.DrawInstanced(instanceCount, baseInstance, vertexCount, baseVertex)
	}
}

// DrawIndexedInstanced draws instanceCount instances of an indexed mesh.
func (p *Pass) DrawIndexedInstanced(indexCount, baseIndex, instanceCount, baseInstance uint32, baseVertex int32) {
	if p.prepareDraw() {
		p.exec.DrawIndexedInstanced(indexCount, baseIndex, instanceCount, baseInstance, baseVertex)
	}
}

// DrawIndirect draws count DrawIndirectCommand records read from buf at
// offset. Without native support the records are read from buf.Data and
// replayed as instanced draws.
func (p *Pass) DrawIndirect(buf *Buffer, offset uint64, count uint32) {
	if !p.prepareDraw() {
		return
	}
	if p.caps.NativeDrawIndirect {
		p.exec.DrawIndirect(buf, offset, count)
		return
	}
	cmds := indirectRecords[DrawIndirectCommand](buf, offset, count, DrawIndirectSize)
	debug.Assert(count == 0 || cmds != nil, "renderpass: indirect records out of range")
	for _, c := range cmds {
		p.exec.DrawInstanced(c.InstanceCount, c.FirstInstance, c.VertexCount, c.FirstVertex)
	}
}

// DrawIndexedIndirect is DrawIndirect for DrawIndexedIndirectCommand
// records.
func (p *Pass) DrawIndexedIndirect(buf *Buffer, offset uint64, count uint32) {
	if !p.prepareDraw() {
		return
	}
	if p.caps.NativeDrawIndirect {
		p.exec.DrawIndexedIndirect(buf, offset, count)
		return
	}
	cmds := indirectRecords[DrawIndexedIndirectCommand](buf, offset, count, DrawIndexedIndirectSize)
	debug.Assert(count == 0 || cmds != nil, "renderpass: indirect records out of range")
	for _, c := range cmds {
		p.exec.DrawIndexedInstanced(c.IndexCount, c.FirstIndex, c.InstanceCount, c.FirstInstance, c.BaseVertex)
	}
}

// End finishes the pass and drops references to bound state.
func (p *Pass) End() {
	p.exec.End()
	p.reset()
}

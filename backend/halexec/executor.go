package halexec

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/logging"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
)

// errNoPass is recorded when a pass method runs outside Begin/End.
var errNoPass = errors.New("halexec: no open render pass")

// bufferUsage covers every way a pass buffer may be bound.
const bufferUsage = gputypes.BufferUsageVertex | gputypes.BufferUsageIndex |
	gputypes.BufferUsageIndirect | gputypes.BufferUsageCopyDst

// Stats counts the work an executor has issued.
type Stats struct {
	Passes      int
	Submissions int
	Pipelines   int
	BindGroups  int
	Uploads     int
	UploadBytes int
	Draws       int
	Barriers    int
}

// frame holds the objects created during one pass. They are destroyed
// once the submission that uses them completes.
type frame struct {
	index    uint64
	encoder  hal.CommandEncoder
	cmd      hal.CommandBuffer
	buffers  map[gpucore.BufferID]hal.Buffer
	uniforms []hal.Buffer
	groups   []hal.BindGroup
}

func newFrame() *frame {
	return &frame{buffers: make(map[gpucore.BufferID]hal.Buffer)}
}

// Executor drives one render target. It is not safe for concurrent use.
type Executor struct {
	b      *Backend
	device hal.Device
	queue  hal.Queue
	target program.Target

	color, depthStencil         hal.Texture
	colorView, depthStencilView hal.TextureView

	samplers map[gpucore.SamplerState]hal.Sampler

	cur     *frame
	pending []*frame
	pass    hal.RenderPassEncoder

	info     *program.Info
	bound    *compiledProgram
	uniforms hal.Buffer

	err   error
	stats Stats
}

func newExecutor(b *Backend, target program.Target) (*Executor, error) {
	if target.Width == 0 || target.Height == 0 {
		return nil, ErrInvalidDimensions
	}
	if target.Format == gputypes.TextureFormatUndefined {
		target.Format = gputypes.TextureFormatRGBA8Unorm
	}
	target.NumSamples = max(target.NumSamples, 1)
	e := &Executor{
		b:        b,
		device:   b.device,
		queue:    b.queue,
		target:   target,
		samplers: make(map[gpucore.SamplerState]hal.Sampler),
	}
	if err := e.createTargets(); err != nil {
		e.Release()
		return nil, err
	}
	return e, nil
}

// createTargets allocates the color attachment and, when the target has a
// stencil buffer, the depth-stencil attachment.
func (e *Executor) createTargets() error {
	size := hal.Extent3D{Width: e.target.Width, Height: e.target.Height, DepthOrArrayLayers: 1}

	color, err := e.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gpucmd_color_target",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   e.target.NumSamples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        e.target.Format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("create color target: %w", err)
	}
	e.color = color
	e.colorView, err = e.device.CreateTextureView(color, &hal.TextureViewDescriptor{
		Label:         "gpucmd_color_target_view",
		Format:        e.target.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create color target view: %w", err)
	}

	if !e.target.HasStencil {
		return nil
	}
	ds, err := e.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gpucmd_stencil_target",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   e.target.NumSamples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        stencilFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create stencil target: %w", err)
	}
	e.depthStencil = ds
	e.depthStencilView, err = e.device.CreateTextureView(ds, &hal.TextureViewDescriptor{
		Label:         "gpucmd_stencil_target_view",
		Format:        stencilFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create stencil target view: %w", err)
	}
	return nil
}

// Target returns the render target the executor draws into.
func (e *Executor) Target() program.Target { return e.target }

// ColorView returns the color attachment, for presenting or sampling the
// result.
func (e *Executor) ColorView() hal.TextureView { return e.colorView }

// Stats returns counters accumulated since the executor was created.
func (e *Executor) Stats() Stats { return e.stats }

// Err returns the first error of the last pass.
func (e *Executor) Err() error { return e.err }

func (e *Executor) fail(op string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("halexec: %s: %w", op, err)
	}
	logging.Logger().Warn("halexec: "+op+" failed", "error", err)
}

// Begin satisfies renderpass.Executor. It opens an encoder and a render
// pass over the target.
func (e *Executor) Begin(loadOp gputypes.LoadOp, clear gpucore.Color) {
	e.err = nil
	e.reclaim(false)
	e.info, e.bound, e.uniforms = nil, nil, nil

	encoder, err := e.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gpucmd_pass"})
	if err != nil {
		e.fail("create command encoder", err)
		return
	}
	if err := encoder.BeginEncoding("gpucmd_pass"); err != nil {
		encoder.Destroy()
		e.fail("begin encoding", err)
		return
	}
	e.cur = newFrame()
	e.cur.encoder = encoder

	desc := &hal.RenderPassDescriptor{
		Label: "gpucmd_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    e.colorView,
				LoadOp:  loadOp,
				StoreOp: gputypes.StoreOpStore,
				ClearValue: gputypes.Color{
					R: float64(clear.R), G: float64(clear.G), B: float64(clear.B), A: float64(clear.A),
				},
			},
		},
	}
	if e.depthStencilView != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              e.depthStencilView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		}
	}
	e.pass = encoder.BeginRenderPass(desc)
	e.pass.SetViewport(0, 0, float32(e.target.Width), float32(e.target.Height), 0, 1)
	e.stats.Passes++
}

// BindPipeline satisfies renderpass.Executor. The program comes from the
// backend's cache; its uniforms are written to a fresh buffer.
func (e *Executor) BindPipeline(info *program.Info, _ gpucore.Rect) bool {
	e.info, e.bound, e.uniforms = nil, nil, nil
	if e.pass == nil {
		e.fail("bind pipeline", errNoPass)
		return false
	}
	exe, err := e.b.programs.FindOrCreate(info, func(info *program.Info) (program.Executable, error) {
		e.stats.Pipelines++
		return buildProgram(e.device, e.b.caps, e.b.compiler, info)
	})
	if err != nil {
		e.fail("bind pipeline", err)
		return false
	}
	cp := exe.(*compiledProgram)

	dm := cp.prog.NewDataManager(nil)
	cp.prog.SetData(dm, info)
	uniforms, err := e.upload("gpucmd_uniforms", gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, 0, dm.Bytes())
	if err != nil {
		e.fail("upload uniforms", err)
		return false
	}
	e.cur.uniforms = append(e.cur.uniforms, uniforms)

	e.pass.SetPipeline(cp.pipeline)
	e.info, e.bound, e.uniforms = info, cp, uniforms
	if info.Stencil.Enabled() {
		e.pass.SetStencilReference(info.Stencil.Reference())
	}
	if cp.numTextures() == 0 {
		return e.bindGroup(nil)
	}
	return true
}

// SetScissorRect satisfies renderpass.Executor. The rect is clamped to the
// target.
func (e *Executor) SetScissorRect(r gpucore.ScissorRect) {
	if e.pass == nil {
		return
	}
	x, y := min(r.X, e.target.Width), min(r.Y, e.target.Height)
	w, h := min(r.Width, e.target.Width-x), min(r.Height, e.target.Height-y)
	e.pass.SetScissorRect(x, y, w, h)
}

// binding is one texture of the bind group.
type binding struct {
	proxy *gpucore.TextureProxy
	state gpucore.SamplerState
}

// BindTextures satisfies renderpass.Executor. Textures bind in assembler
// order: stage samplers, effect samplers in processor order, then the
// destination copy.
func (e *Executor) BindTextures(stageTextures []*gpucore.TextureProxy) bool {
	if e.bound == nil {
		return false
	}
	st := e.info.Stage
	var textures []binding
	for i, p := range stageTextures {
		state := gpucore.DefaultSampler
		if i < st.NumTextureSamplers() {
			state = st.TextureSampler(i).State
		}
		textures = append(textures, binding{proxy: p, state: state})
	}
	pl := e.info.Pipeline
	for i := range pl.NumProcessors() {
		pl.Processor(i).Walk(func(n *pipeline.Processor) {
			for _, ts := range n.Effect().Textures() {
				textures = append(textures, binding{proxy: ts.Proxy, state: ts.State})
			}
		})
	}
	if dst := pl.DstProxy(); dst != nil && e.bound.prog.ReadsDst() {
		textures = append(textures, binding{proxy: dst})
	}
	if len(textures) != e.bound.numTextures() {
		e.fail("bind textures", fmt.Errorf("%d textures for %d bindings", len(textures), e.bound.numTextures()))
		return false
	}
	return e.bindGroup(textures)
}

// bindGroup creates and sets the bind group of the bound program.
func (e *Executor) bindGroup(textures []binding) bool {
	cp := e.bound
	entries := []gputypes.BindGroupEntry{
		{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: e.uniforms.NativeHandle(), Size: uint64(cp.prog.UniformSize())},
		},
	}
	nSamplers := cp.prog.NumSamplers()
	for i, t := range textures {
		view, err := e.b.textures.lookup(t.proxy.ID)
		if err != nil {
			e.fail("bind textures", err)
			return false
		}
		if i >= nSamplers {
			// Destination copy: texture only.
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  uint32(1 + 2*nSamplers),
				Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
			})
			continue
		}
		sampler, err := e.sampler(t.state)
		if err != nil {
			e.fail("create sampler", err)
			return false
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  uint32(1 + 2*i),
				Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  uint32(2 + 2*i),
				Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()},
			},
		)
	}

	group, err := e.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "gpucmd_bind_group",
		Layout:  cp.layout,
		Entries: entries,
	})
	if err != nil {
		e.fail("create bind group", err)
		return false
	}
	e.cur.groups = append(e.cur.groups, group)
	e.stats.BindGroups++
	e.pass.SetBindGroup(0, group, nil)
	return true
}

// sampler returns the cached sampler for s. Samplers live as long as the
// executor.
func (e *Executor) sampler(s gpucore.SamplerState) (hal.Sampler, error) {
	if smp, ok := e.samplers[s]; ok {
		return smp, nil
	}
	smp, err := e.device.CreateSampler(samplerDescriptor(s))
	if err != nil {
		return nil, err
	}
	e.samplers[s] = smp
	return smp, nil
}

// BindBuffers satisfies renderpass.Executor. The instance buffer takes the
// slot after the vertex buffer when the stage has per-vertex attributes.
func (e *Executor) BindBuffers(index, instance, vertex *renderpass.Buffer) {
	if e.pass == nil || e.info == nil {
		return
	}
	if vertex != nil {
		if buf := e.buffer(vertex); buf != nil {
			e.pass.SetVertexBuffer(0, buf, vertex.Offset)
		}
	}
	if instance != nil {
		slot := uint32(0)
		if e.info.Stage.VertexAttributes().Len() > 0 {
			slot = 1
		}
		if buf := e.buffer(instance); buf != nil {
			e.pass.SetVertexBuffer(slot, buf, instance.Offset)
		}
	}
	if index != nil {
		if buf := e.buffer(index); buf != nil {
			e.pass.SetIndexBuffer(buf, gputypes.IndexFormatUint16, index.Offset)
		}
	}
}

// buffer returns the GPU copy of b, uploading it on first use in the pass.
func (e *Executor) buffer(b *renderpass.Buffer) hal.Buffer {
	if buf, ok := e.cur.buffers[b.ID]; ok {
		return buf
	}
	buf, err := e.upload(fmt.Sprintf("gpucmd_buffer_%d", b.ID), bufferUsage, b.Offset, b.Data)
	if err != nil {
		e.fail("upload buffer", err)
		return nil
	}
	e.cur.buffers[b.ID] = buf
	return buf
}

// upload creates a buffer holding data at offset. Sizes are padded to the
// 4-byte copy alignment.
func (e *Executor) upload(label string, usage gputypes.BufferUsage, offset uint64, data []byte) (hal.Buffer, error) {
	size := align4(offset + uint64(len(data)))
	if size == 0 {
		size = 4
	}
	buf, err := e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if len(data) > 0 {
		if pad := align4(uint64(len(data))) - uint64(len(data)); pad > 0 {
			data = append(data[:len(data):len(data)], make([]byte, pad)...)
		}
		if err := e.queue.WriteBuffer(buf, offset, data); err != nil {
			e.device.DestroyBuffer(buf)
			return nil, fmt.Errorf("write %s: %w", label, err)
		}
	}
	e.stats.Uploads++
	e.stats.UploadBytes += len(data)
	return buf, nil
}

func align4(n uint64) uint64 { return (n + 3) &^ 3 }

// Draw satisfies renderpass.Executor.
func (e *Executor) Draw(vertexCount, baseVertex uint32) {
	if e.pass == nil {
		return
	}
	e.pass.Draw(vertexCount, 1, baseVertex, 0)
	e.stats.Draws++
}

// DrawIndexed satisfies renderpass.Executor.
func (e *Executor) DrawIndexed(indexCount, baseIndex uint32, baseVertex int32) {
	if e.pass == nil {
		return
	}
	e.pass.DrawIndexed(indexCount, 1, baseIndex, baseVertex, 0)
	e.stats.Draws++
}

// DrawInstanced satisfies renderpass.Executor.
func (e *Executor) DrawInstanced(instanceCount, baseInstance, vertexCount, baseVertex uint32) {
	if e.pass == nil {
		return
	}
	e.pass.Draw(vertexCount, instanceCount, baseVertex, baseInstance)
	e.stats.Draws++
}

// DrawIndexedInstanced satisfies renderpass.Executor.
func (e *Executor) DrawIndexedInstanced(indexCount, baseIndex, instanceCount, baseInstance uint32, baseVertex int32) {
	if e.pass == nil {
		return
	}
	e.pass.DrawIndexed(indexCount, instanceCount, baseIndex, baseVertex, baseInstance)
	e.stats.Draws++
}

// DrawIndirect satisfies renderpass.Executor. hal reads one record per
// call, so count records are issued one by one.
func (e *Executor) DrawIndirect(buf *renderpass.Buffer, offset uint64, count uint32) {
	if e.pass == nil {
		return
	}
	b := e.buffer(buf)
	if b == nil {
		return
	}
	for i := range uint64(count) {
		e.pass.DrawIndirect(b, buf.Offset+offset+i*uint64(renderpass.DrawIndirectSize))
		e.stats.Draws++
	}
}

// DrawIndexedIndirect satisfies renderpass.Executor.
func (e *Executor) DrawIndexedIndirect(buf *renderpass.Buffer, offset uint64, count uint32) {
	if e.pass == nil {
		return
	}
	b := e.buffer(buf)
	if b == nil {
		return
	}
	for i := range uint64(count) {
		e.pass.DrawIndexedIndirect(b, buf.Offset+offset+i*uint64(renderpass.DrawIndexedIndirectSize))
		e.stats.Draws++
	}
}

// Barrier satisfies renderpass.Executor. Draws inside one WebGPU pass are
// already ordered and the backend never reports texture barrier support,
// so only the count is kept.
func (e *Executor) Barrier(b pipeline.XferBarrier) {
	e.stats.Barriers++
	logging.Logger().Debug("halexec: barrier", "kind", b)
}

// End satisfies renderpass.Executor. It ends the pass and submits the
// command buffer.
func (e *Executor) End() {
	e.info, e.bound, e.uniforms = nil, nil, nil
	f := e.cur
	e.cur = nil
	if f == nil {
		return
	}
	if e.pass != nil {
		e.pass.End()
		e.pass = nil
	}

	cmd, err := f.encoder.EndEncoding()
	if err != nil {
		e.fail("end encoding", err)
		e.destroyFrame(f)
		return
	}
	f.cmd = cmd
	f.index, err = e.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		e.fail("submit", err)
		e.destroyFrame(f)
		return
	}
	e.stats.Submissions++
	e.pending = append(e.pending, f)
	e.reclaim(false)
}

// reclaim destroys the frames whose submissions completed, or every
// pending frame when all is set.
func (e *Executor) reclaim(all bool) {
	if len(e.pending) == 0 {
		return
	}
	done := e.queue.PollCompleted()
	kept := e.pending[:0]
	for _, f := range e.pending {
		if all || f.index <= done {
			e.destroyFrame(f)
			continue
		}
		kept = append(kept, f)
	}
	clear(e.pending[len(kept):])
	e.pending = kept
}

func (e *Executor) destroyFrame(f *frame) {
	for _, g := range f.groups {
		e.device.DestroyBindGroup(g)
	}
	for _, b := range f.uniforms {
		e.device.DestroyBuffer(b)
	}
	for _, b := range f.buffers {
		e.device.DestroyBuffer(b)
	}
	if f.cmd != nil {
		e.device.FreeCommandBuffer(f.cmd)
	}
	if f.encoder != nil {
		f.encoder.Destroy()
	}
}

// Release waits for the device, then frees pass resources, samplers and
// the render target. The executor must not be used afterwards.
func (e *Executor) Release() {
	if e.cur != nil {
		if e.pass != nil {
			e.pass.End()
			e.pass = nil
		}
		e.cur.encoder.DiscardEncoding()
		e.destroyFrame(e.cur)
		e.cur = nil
	}
	if len(e.pending) > 0 {
		if err := e.device.WaitIdle(); err != nil {
			logging.Logger().Warn("halexec: wait idle", "error", err)
		}
		e.reclaim(true)
	}
	for s, smp := range e.samplers {
		e.device.DestroySampler(smp)
		delete(e.samplers, s)
	}
	if e.depthStencilView != nil {
		e.device.DestroyTextureView(e.depthStencilView)
		e.depthStencilView = nil
	}
	if e.depthStencil != nil {
		e.device.DestroyTexture(e.depthStencil)
		e.depthStencil = nil
	}
	if e.colorView != nil {
		e.device.DestroyTextureView(e.colorView)
		e.colorView = nil
	}
	if e.color != nil {
		e.device.DestroyTexture(e.color)
		e.color = nil
	}
}

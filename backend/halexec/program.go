package halexec

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/shader"
)

// stencilFormat is the format of the depth-stencil attachment created for
// targets with a stencil buffer.
const stencilFormat = gputypes.TextureFormatDepth24PlusStencil8

// compiledProgram is a render pipeline plus the assembled shader whose
// uniforms it binds. It is owned by the program cache.
type compiledProgram struct {
	device hal.Device
	prog   *shader.Program

	module   hal.ShaderModule
	layout   hal.BindGroupLayout
	plLayout hal.PipelineLayout
	pipeline hal.RenderPipeline
}

// Release satisfies program.Executable. Objects are destroyed in reverse
// creation order and nil entries are skipped.
func (p *compiledProgram) Release() {
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.plLayout != nil {
		p.device.DestroyPipelineLayout(p.plLayout)
		p.plLayout = nil
	}
	if p.layout != nil {
		p.device.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}

// numTextures is the number of texture bindings: sampled pairs plus the
// destination copy.
func (p *compiledProgram) numTextures() int {
	n := p.prog.NumSamplers()
	if p.prog.ReadsDst() {
		n++
	}
	return n
}

// buildProgram assembles, compiles and creates the render pipeline for
// info.
func buildProgram(device hal.Device, caps *gpucore.Caps, compiler program.Compiler, info *program.Info) (*compiledProgram, error) { //nolint:funlen // GPU pipeline descriptors are inherently verbose
	prog, err := shader.Assemble(info, &caps.Shader)
	if err != nil {
		return nil, err
	}
	src, err := compiler.Compile(prog.Source)
	if err != nil {
		return nil, err
	}

	cp := &compiledProgram{device: device, prog: prog}
	label := info.Stage.Name()

	cp.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: hal.ShaderSource{WGSL: src.WGSL, SPIRV: src.SPIRV},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}

	cp.layout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_layout",
		Entries: bindGroupLayoutEntries(prog),
	})
	if err != nil {
		cp.Release()
		return nil, fmt.Errorf("create %s bind group layout: %w", label, err)
	}

	cp.plLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{cp.layout},
	})
	if err != nil {
		cp.Release()
		return nil, fmt.Errorf("create %s pipeline layout: %w", label, err)
	}

	writeMask := gputypes.ColorWriteMaskAll
	if info.IsStencilOnly() {
		writeMask = gputypes.ColorWriteMaskNone
	}
	samples := max(info.Target.NumSamples, 1)

	cp.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label + "_pipeline",
		Layout: cp.plLayout,
		Vertex: hal.VertexState{
			Module:     cp.module,
			EntryPoint: shader.VertexEntry,
			Buffers:    info.VertexLayouts(),
		},
		Primitive: gputypes.PrimitiveState{
			Topology: info.Topology,
			CullMode: gputypes.CullModeNone,
		},
		DepthStencil: depthStencilState(info),
		Multisample: gputypes.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &hal.FragmentState{
			Module:     cp.module,
			EntryPoint: shader.FragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    info.Target.Format,
					Blend:     info.Pipeline.BlendState(),
					WriteMask: writeMask,
				},
			},
		},
	})
	if err != nil {
		cp.Release()
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return cp, nil
}

// bindGroupLayoutEntries mirrors the assembler's binding scheme: the
// uniform block at 0, texture and sampler pairs from 1, and the
// destination texture after the last pair.
func bindGroupLayoutEntries(prog *shader.Program) []gputypes.BindGroupLayoutEntry {
	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
	}
	for i := range prog.NumSamplers() {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(1 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(2 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}
	if prog.ReadsDst() {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(1 + 2*prog.NumSamplers()),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	return entries
}

// depthStencilState returns nil for targets without stencil. Depth is
// never tested or written.
func depthStencilState(info *program.Info) *hal.DepthStencilState {
	if !info.Target.HasStencil {
		return nil
	}
	ds := &hal.DepthStencilState{
		Format:       stencilFormat,
		DepthCompare: gputypes.CompareFunctionAlways,
		StencilFront: hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
		StencilBack:  hal.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
	}
	st := info.Stencil
	if !st.Enabled() {
		return ds
	}
	ds.StencilFront = stencilFace(st.Front())
	ds.StencilBack = stencilFace(st.Back())
	ds.StencilReadMask, ds.StencilWriteMask = st.Masks()
	return ds
}

func stencilFace(f pipeline.StencilFace) hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     f.Compare,
		FailOp:      stencilOp(f.FailOp),
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      stencilOp(f.PassOp),
	}
}

// stencilOp converts to hal's enumeration, which has no undefined value.
func stencilOp(op gputypes.StencilOperation) hal.StencilOperation {
	switch op {
	case gputypes.StencilOperationZero:
		return hal.StencilOperationZero
	case gputypes.StencilOperationReplace:
		return hal.StencilOperationReplace
	case gputypes.StencilOperationInvert:
		return hal.StencilOperationInvert
	case gputypes.StencilOperationIncrementClamp:
		return hal.StencilOperationIncrementClamp
	case gputypes.StencilOperationDecrementClamp:
		return hal.StencilOperationDecrementClamp
	case gputypes.StencilOperationIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case gputypes.StencilOperationDecrementWrap:
		return hal.StencilOperationDecrementWrap
	default:
		return hal.StencilOperationKeep
	}
}

// samplerDescriptor converts a sampler state. Mipmapping is off unless
// the state names a mip filter.
func samplerDescriptor(s gpucore.SamplerState) *hal.SamplerDescriptor {
	if s.Filter == gputypes.FilterModeUndefined {
		s.Filter = gputypes.FilterModeNearest
	}
	if s.Address == gputypes.AddressModeUndefined {
		s.Address = gputypes.AddressModeClampToEdge
	}
	desc := &hal.SamplerDescriptor{
		Label:        "gpucmd_sampler",
		AddressModeU: s.Address,
		AddressModeV: s.Address,
		AddressModeW: s.Address,
		MagFilter:    s.Filter,
		MinFilter:    s.Filter,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  0,
		Anisotropy:   1,
	}
	switch s.Mipmap {
	case gputypes.MipmapFilterModeNearest:
		desc.LodMaxClamp = 32
	case gputypes.MipmapFilterModeLinear:
		desc.MipmapFilter = gputypes.FilterModeLinear
		desc.LodMaxClamp = 32
	}
	return desc
}

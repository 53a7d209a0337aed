package program

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/arena"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/stage"
)

// Target describes the render target a program draws into.
type Target struct {
	Width, Height uint32
	Format        gputypes.TextureFormat
	NumSamples    uint32
	HasStencil    bool
}

// Key identifies an interchangeable compiled program.
type Key string

// Info is the Program Descriptor: one stage descriptor, one pipeline,
// stencil settings, topology and load op.
type Info struct {
	Target   Target
	Stage    stage.Descriptor
	Pipeline *pipeline.Pipeline
	Stencil  pipeline.StencilSettings
	Topology gputypes.PrimitiveTopology
	LoadOp   gputypes.LoadOp

	key Key
}

// Set fills i. It is used on Infos taken from a Slab.
func (i *Info) Set(target Target, st stage.Descriptor, p *pipeline.Pipeline,
	stencil pipeline.StencilSettings, topology gputypes.PrimitiveTopology, loadOp gputypes.LoadOp) *Info {
	*i = Info{Target: target, Stage: st, Pipeline: p, Stencil: stencil, Topology: topology, LoadOp: loadOp}
	return i
}

// NewInfo allocates an Info from slab. A nil slab allocates on the heap.
func NewInfo(slab *arena.Slab[Info], target Target, st stage.Descriptor, p *pipeline.Pipeline,
	stencil pipeline.StencilSettings, topology gputypes.PrimitiveTopology, loadOp gputypes.LoadOp) *Info {
	var i *Info
	if slab != nil {
		i = slab.New()
	} else {
		i = new(Info)
	}
	return i.Set(target, st, p, stencil, topology, loadOp)
}

// Key returns the program key: stage key, pipeline key, stencil, topology,
// load op and target format and sample count. It is computed once.
func (i *Info) Key(caps *gpucore.Caps) Key {
	if i.key != "" {
		return i.key
	}
	var b gpucore.KeyBuilder
	stage.GenKey(i.Stage, &caps.Shader, &b)
	i.Pipeline.GenKey(caps, &b)
	i.Stencil.AddToKey(&b)
	b.AddBits(4, uint32(i.Topology))
	b.AddBits(2, uint32(i.LoadOp))
	b.Add32(uint32(i.Target.Format))
	b.AddBits(6, i.Target.NumSamples)
	b.AddBool(i.Target.HasStencil)
	i.key = Key(b.String())
	return i.key
}

// NumSamplers returns stage samplers plus pipeline samplers.
func (i *Info) NumSamplers() int {
	return i.Stage.NumTextureSamplers() + i.Pipeline.NumTextureSamplers()
}

// NumAttributes returns the stage's vertex plus instance attribute count.
func (i *Info) NumAttributes() int { return stage.NumAttributes(i.Stage) }

// VertexLayouts returns the buffer layouts: slot 0 is per-vertex data,
// slot 1 per-instance data. Empty sets are omitted and shader locations
// run across both.
func (i *Info) VertexLayouts() []gputypes.VertexBufferLayout {
	var out []gputypes.VertexBufferLayout
	va, ia := i.Stage.VertexAttributes(), i.Stage.InstanceAttributes()
	if va.Len() > 0 {
		out = append(out, va.Layout(gputypes.VertexStepModeVertex, 0))
	}
	if ia.Len() > 0 {
		out = append(out, ia.Layout(gputypes.VertexStepModeInstance, uint32(va.Len())))
	}
	return out
}

// Requirements are the dynamic-state classes a bound program needs before
// it may draw.
type Requirements struct {
	Scissor, Textures, VertexBuffer, InstanceBuffer bool
}

// Requirements derives the dynamic state i needs.
func (i *Info) Requirements() Requirements {
	return Requirements{
		Scissor:        i.Pipeline.IsScissorTestEnabled(),
		Textures:       i.NumSamplers() > 0,
		VertexBuffer:   i.Stage.VertexAttributes().Len() > 0,
		InstanceBuffer: i.Stage.InstanceAttributes().Len() > 0,
	}
}

// VisitProxies calls fn for every texture the pipeline references.
func (i *Info) VisitProxies(fn func(*gpucore.TextureProxy)) {
	i.Pipeline.VisitProxies(fn)
}

// IsStencilOnly reports whether the program writes no color.
func (i *Info) IsStencilOnly() bool {
	return i.Stage.ClassID() == stage.ClassPathStencil
}

package draw

import (
	"github.com/gogpu/gputypes"
	"honnef.co/go/safeish"

	"github.com/gogpu/gpucmd/arena"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
	"github.com/gogpu/gpucmd/stage"
)

const (
	loadOpLoad  = gputypes.LoadOpLoad
	loadOpClear = gputypes.LoadOpClear
)

// FlushState is the per-flush context commands prepare and execute in.
type FlushState struct {
	Caps   *gpucore.Caps
	Target program.Target
	Pass   *renderpass.Pass

	// Vertices holds vertex, instance and index bytes until the flush
	// ends. Nil uses a private arena.
	Vertices arena.Allocator

	// Infos supplies program descriptors. Nil allocates them on the heap.
	Infos *arena.Slab[program.Info]

	// WriteSwizzle is applied to every color written to the target.
	WriteSwizzle gpucore.Swizzle

	loadOp  gputypes.LoadOp
	nextID  gpucore.BufferID
	allocs  []arena.Allocation
	indices map[bool]*renderpass.Buffer
}

func (fs *FlushState) init() {
	if fs.Caps == nil {
		fs.Caps = gpucore.DefaultCaps()
	}
	if fs.Vertices == nil {
		fs.Vertices = arena.New()
	}
	if fs.WriteSwizzle == (gpucore.Swizzle{}) {
		fs.WriteSwizzle = gpucore.SwizzleRGBA
	}
	fs.loadOp = loadOpLoad
	fs.indices = make(map[bool]*renderpass.Buffer)
}

// release returns flush memory, newest first so the arena rewinds.
func (fs *FlushState) release() {
	for i := len(fs.allocs) - 1; i >= 0; i-- {
		fs.Vertices.Release(fs.allocs[i])
	}
	fs.allocs = fs.allocs[:0]
	fs.indices = nil
}

// LoadOp returns the load op chosen for the current flush.
func (fs *FlushState) LoadOp() gputypes.LoadOp { return fs.loadOp }

// buffer carves size bytes for one GPU buffer.
func (fs *FlushState) buffer(size int) *renderpass.Buffer {
	alloc := fs.Vertices.Allocate(size)
	fs.allocs = append(fs.allocs, alloc)
	fs.nextID++
	return &renderpass.Buffer{ID: fs.nextID, Data: alloc.Bytes}
}

func (fs *FlushState) newInfo(st stage.Descriptor, pl *pipeline.Pipeline, stencil pipeline.StencilSettings,
	topology gputypes.PrimitiveTopology) *program.Info {
	return program.NewInfo(fs.Infos, fs.Target, st, pl, stencil, topology, fs.loadOp)
}

// Quad index patterns. Corners are ordered top-left, bottom-left,
// top-right, bottom-right; AA quads add an outer ring at 4..7.
var (
	quadIndices   = [...]uint16{0, 1, 2, 2, 1, 3}
	aaQuadIndices = [...]uint16{
		0, 1, 2, 1, 3, 2,
		0, 4, 1, 4, 5, 1,
		0, 6, 4, 0, 2, 6,
		2, 3, 6, 3, 7, 6,
		1, 5, 3, 3, 5, 7,
	}
)

// quadTopology draws the indexed quad patterns.
const quadTopology = gputypes.PrimitiveTopologyTriangleList

// maxIndexedQuads bounds a shared quad index buffer.
const maxIndexedQuads = 8191

// quadIndexBuffer returns an index buffer covering n quads. Draws index it
// from 0 and offset with baseVertex.
func (fs *FlushState) quadIndexBuffer(aa bool, n int) *renderpass.Buffer {
	pattern, verts := quadIndices[:], 4
	if aa {
		pattern, verts = aaQuadIndices[:], 8
	}
	if b := fs.indices[aa]; b != nil && len(b.Data) >= n*len(pattern)*2 {
		return b
	}
	b := fs.buffer(n * len(pattern) * 2)
	idx := safeish.SliceCast[[]uint16](b.Data)
	for q := 0; q < n; q++ {
		for i, v := range pattern {
			idx[q*len(pattern)+i] = v + uint16(q*verts)
		}
	}
	fs.indices[aa] = b
	return b
}

// bind binds info and the fixed state of a chain. Draws issued after a
// refused bind are counted and dropped by the pass.
func bind(fs *FlushState, ch *chainState, info *program.Info) {
	if !fs.Pass.BindPipeline(info, ch.bounds) {
		return
	}
	if info.Pipeline.IsScissorTestEnabled() {
		if r, ok := ch.scissor(); ok {
			fs.Pass.SetScissorRect(r)
		}
	}
}

// bindTextures binds stage textures when the program samples anything.
func bindTextures(fs *FlushState, info *program.Info, stageTextures ...*gpucore.TextureProxy) {
	if info.NumSamplers() > 0 || info.Pipeline.DstReadKind() != pipeline.DstReadNone {
		fs.Pass.BindTextures(stageTextures)
	}
}

package draw

import (
	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"
	"honnef.co/go/safeish"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/debug"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
	"github.com/gogpu/gpucmd/stage"
)

// maxMeshVertices keeps merged meshes addressable by 16-bit indices.
const maxMeshVertices = 1 << 16

// Mesh is the geometry of a MeshDraw.
type Mesh struct {
	Topology  gputypes.PrimitiveTopology
	Positions []f32.Vec2

	// Colors holds one color per vertex. Nil draws every vertex with Color.
	Colors []gpucore.Color
	Color  gpucore.Color

	// LocalCoords holds one coordinate per vertex. Nil uses Positions.
	LocalCoords []f32.Vec2

	// Indices selects vertices; nil draws them in order.
	Indices []uint16

	// View maps positions to device space. The zero matrix is identity.
	View f32.Aff3
}

type meshPart struct {
	positions []f32.Vec2
	colors    []gpucore.Color
	local     []f32.Vec2
	indices   []uint16
}

// MeshDraw draws triangles, lines or points.
type MeshDraw struct {
	paint    paint
	topology gputypes.PrimitiveTopology
	view     f32.Aff3
	color    gpucore.Color
	colors   bool
	local    bool
	indexed  bool
	parts    []meshPart
	vertices int

	info          *program.Info
	vbuf, ibuf    *renderpass.Buffer
	indexCount    int
	verticesTotal int
}

// NewMesh records m drawn with p. Meshes with more than 65536 vertices
// are refused with a command that draws nothing.
func NewMesh(p Paint, m Mesh) Command {
	view := m.View
	if view == (f32.Aff3{}) {
		view = identity
	}
	d := &MeshDraw{
		paint:    newPaint(p),
		topology: m.Topology,
		view:     view,
		color:    m.Color,
		colors:   m.Colors != nil,
		local:    m.LocalCoords != nil,
		indexed:  m.Indices != nil,
	}
	if len(m.Positions) > maxMeshVertices {
		return newCommand(KindMesh, d, gpucore.Rect{})
	}
	debug.Assert(!d.colors || len(m.Colors) == len(m.Positions), "draw: mesh color count mismatch")
	debug.Assert(!d.local || len(m.LocalCoords) == len(m.Positions), "draw: mesh local coord count mismatch")
	d.parts = []meshPart{{positions: m.Positions, colors: m.Colors, local: m.LocalCoords, indices: m.Indices}}
	d.vertices = len(m.Positions)
	return newCommand(KindMesh, d, mapRect(view, boundsOf(m.Positions)))
}

func (d *MeshDraw) count() int { return d.vertices }

func (d *MeshDraw) visitProxies(fn func(*gpucore.TextureProxy)) { d.paint.visitProxies(fn) }

func (d *MeshDraw) finalize(caps *gpucore.Caps, clip *pipeline.AppliedClip, clamp gpucore.ClampMode) pipeline.Analysis {
	in := pipeline.InputColor{Known: !d.colors, Color: d.color}
	return d.paint.finalize(caps, clip, clamp, in, coverageFor(d.paint.aa))
}

// usesLocalCoords reports whether pre-view positions reach the shader.
func (d *MeshDraw) usesLocalCoords() bool { return d.local || d.paint.usesLocalCoords() }

func mergeableTopology(t gputypes.PrimitiveTopology) bool {
	switch t {
	case gputypes.PrimitiveTopologyTriangleList, gputypes.PrimitiveTopologyLineList, gputypes.PrimitiveTopologyPointList:
		return true
	}
	return false
}

func (d *MeshDraw) combine(that variant, args *combineArgs) CombineResult {
	o := that.(*MeshDraw)
	if d.topology != o.topology || !mergeableTopology(d.topology) {
		return CannotCombine
	}
	if !d.paint.compatible(&o.paint, false) {
		return CannotCombine
	}
	if d.colors != o.colors || d.local != o.local || d.indexed != o.indexed {
		return CannotCombine
	}
	if !d.colors && d.color != o.color {
		return CannotCombine
	}
	if d.vertices+o.vertices > maxMeshVertices {
		return CannotCombine
	}
	if !sameMatrix(d.view, o.view) {
		if d.usesLocalCoords() || o.usesLocalCoords() {
			return CannotCombine
		}
		d.bakeView()
		o.bakeView()
	}
	d.parts = append(d.parts, o.parts...)
	d.vertices += o.vertices
	o.parts, o.vertices = nil, 0
	return Merged
}

// bakeView moves the view into the positions, leaving identity.
func (d *MeshDraw) bakeView() {
	if sameMatrix(d.view, identity) {
		return
	}
	for i := range d.parts {
		mapped := make([]f32.Vec2, len(d.parts[i].positions))
		for j, p := range d.parts[i].positions {
			mapped[j] = mapPoint(d.view, p)
		}
		d.parts[i].positions = mapped
	}
	d.view = identity
}

func (d *MeshDraw) prepare(fs *FlushState, ch *chainState) {
	if d.vertices == 0 {
		return
	}
	desc := stage.NewMesh(d.view, d.colors, d.local, d.color)
	d.info = fs.newInfo(desc, d.paint.makePipeline(fs, ch), d.paint.stencilSettings(fs, ch), d.topology)

	d.vbuf = fs.buffer(d.vertices * desc.VertexAttributes().Stride())
	w := vertexWriter{buf: d.vbuf.Data}
	for _, part := range d.parts {
		for i, p := range part.positions {
			w.vec2(p)
			if d.colors {
				w.color(part.colors[i])
			}
			if d.local {
				w.vec2(part.local[i])
			}
		}
	}
	debug.Assert(w.done(), "draw: mesh vertex data size mismatch")
	d.verticesTotal = d.vertices

	if !d.indexed {
		return
	}
	n := 0
	for _, part := range d.parts {
		n += len(part.indices)
	}
	// Buffer writes must be 4-byte aligned.
	d.ibuf = fs.buffer((n*2 + 3) &^ 3)
	idx := safeish.SliceCast[[]uint16](d.ibuf.Data)
	k, base := 0, 0
	for _, part := range d.parts {
		for _, v := range part.indices {
			idx[k] = v + uint16(base)
			k++
		}
		base += len(part.positions)
	}
	d.indexCount = n
}

func (d *MeshDraw) execute(fs *FlushState, ch *chainState) {
	if d.vertices == 0 {
		return
	}
	bind(fs, ch, d.info)
	bindTextures(fs, d.info)
	fs.Pass.BindBuffers(d.ibuf, nil, d.vbuf)
	if d.indexed {
		fs.Pass.DrawIndexed(uint32(d.indexCount), 0, 0)
		return
	}
	fs.Pass.Draw(uint32(d.verticesTotal), 0)
}

package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/stage"
)

// Entry point names.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

const (
	outputColor    = "outputColor"
	outputCoverage = "outputCoverage"
	fragPos        = "fragPos"
	localCoords    = "localCoords"
)

// CoordInfo records where an effect's coordinates come from.
type CoordInfo struct {
	// Varying is the fragment-stage variable holding the hoisted
	// coordinate, empty when the node's coordinates are not hoisted.
	Varying string

	// Ancestor is the post-order index of the node that owns the matrix
	// producing the coordinate, -1 for plain local coordinates.
	Ancestor int
}

type fpEntry struct {
	impl   pipeline.EffectImpl
	matrix emit.UniformHandle
	coords CoordInfo
}

// Program is an assembled shader module plus the emitters that write its
// uniforms.
type Program struct {
	// Source is the complete WGSL module.
	Source string

	caps        gpucore.ShaderCaps
	uniforms    *emit.UniformHandler
	numSamplers int
	readsDst    bool
	stageImpl   stage.ProgramImpl
	fps         []fpEntry
	rtAdjust    emit.UniformHandle
}

// NumSamplers returns the texture and sampler pairs bound after the
// uniform block.
func (p *Program) NumSamplers() int { return p.numSamplers }

// ReadsDst reports whether a destination texture follows the samplers.
func (p *Program) ReadsDst() bool { return p.readsDst }

// UniformSize returns the uniform block size in bytes.
func (p *Program) UniformSize() int { return p.uniforms.Size() }

// Uniforms returns the uniform block layout.
func (p *Program) Uniforms() []emit.Uniform { return p.uniforms.Uniforms() }

// NewDataManager returns a manager for this program's uniform block.
func (p *Program) NewDataManager(storage []byte) *emit.DataManager {
	return emit.NewDataManager(p.uniforms, storage)
}

// SetData writes the uniforms of info, which must have the key the
// program was assembled from.
func (p *Program) SetData(dm *emit.DataManager, info *program.Info) {
	w, h := float32(info.Target.Width), float32(info.Target.Height)
	dm.Set4f(p.rtAdjust, [4]float32{2 / w, -2 / h, -1, 1})
	p.stageImpl.SetData(dm, &p.caps, info.Stage)

	nodes := flatten(info.Pipeline)
	if len(nodes) != len(p.fps) {
		panic(fmt.Sprintf("shader: pipeline has %d effects, program was built for %d", len(nodes), len(p.fps)))
	}
	for i, n := range nodes {
		fp := p.fps[i]
		fp.impl.SetData(dm, n.Effect())
		if fp.matrix.IsValid() {
			dm.SetAffine(fp.matrix, n.Effect().(pipeline.MatrixProvider).SampleMatrix())
		}
	}
}

// Coords reports where node, an effect of pl, reads its coordinates: the
// shared fragment-stage variable and the ancestor declaring it (nil for
// local coordinates). ok is false when node's coordinates are not hoisted.
func (p *Program) Coords(pl *pipeline.Pipeline, node *pipeline.Processor) (varying string, declaredAt *pipeline.Processor, ok bool) {
	nodes := flatten(pl)
	for i, n := range nodes {
		if n != node {
			continue
		}
		ci := p.fps[i].coords
		if ci.Varying == "" {
			return "", nil, false
		}
		if ci.Ancestor >= 0 {
			declaredAt = nodes[ci.Ancestor]
		}
		return ci.Varying, declaredAt, true
	}
	return "", nil, false
}

// flatten lists the effects of pl in emission order: processors in order,
// each subtree in post-order.
func flatten(pl *pipeline.Pipeline) []*pipeline.Processor {
	var nodes []*pipeline.Processor
	for i := 0; i < pl.NumProcessors(); i++ {
		pl.Processor(i).Walk(func(n *pipeline.Processor) { nodes = append(nodes, n) })
	}
	return nodes
}

type assembler struct {
	info *program.Info
	caps *gpucore.ShaderCaps
	prog *Program

	vert, frag *emit.ShaderBuilder
	varyings   emit.VaryingHandler
	uniforms   emit.UniformHandler

	nodes      []*pipeline.Processor
	index      map[*pipeline.Processor]int
	funcName   map[*pipeline.Processor]string
	matrixExpr map[*pipeline.Processor]string
	vsCoords   map[*pipeline.Processor]string
	fsCoords   map[*pipeline.Processor]string

	localVS     string
	hasLocal    bool
	privates    []string
	prologue    []string
	samplerDecl []string
}

// Assemble emits the WGSL module for info.
func Assemble(info *program.Info, caps *gpucore.ShaderCaps) (*Program, error) {
	if max := caps.MaxFragmentSamplers; max > 0 && info.NumSamplers() > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySamplers, info.NumSamplers(), max)
	}
	a := &assembler{
		info:       info,
		caps:       caps,
		prog:       &Program{caps: *caps, readsDst: info.Pipeline.DstReadKind() != pipeline.DstReadNone},
		vert:       &emit.ShaderBuilder{},
		frag:       &emit.ShaderBuilder{},
		index:      make(map[*pipeline.Processor]int),
		funcName:   make(map[*pipeline.Processor]string),
		matrixExpr: make(map[*pipeline.Processor]string),
		vsCoords:   make(map[*pipeline.Processor]string),
		fsCoords:   make(map[*pipeline.Processor]string),
	}
	a.prog.rtAdjust, _ = a.uniforms.Add(emit.VisibleVertex, emit.Float4, "rtAdjust")

	res, err := a.emitStage()
	if err != nil {
		return nil, err
	}
	a.emitDstRead()
	a.emitEffects()
	a.emitXfer()
	a.emitPosition(res.Position)

	a.prog.uniforms = &a.uniforms
	a.prog.Source = a.module()
	return a.prog, nil
}

func (a *assembler) addSampler(swizzle gpucore.Swizzle) emit.SamplerHandle {
	i := len(a.samplerDecl)
	h := emit.NewSamplerHandle(i, swizzle.String())
	a.samplerDecl = append(a.samplerDecl,
		fmt.Sprintf("@group(0) @binding(%d) var %s: texture_2d<f32>;\n@group(0) @binding(%d) var %s: sampler;",
			1+2*i, h.Texture, 2+2*i, h.Sampler))
	return h
}

// emitStage runs the stage descriptor's emitter into scratch builders so
// its outputs can be checked before they join the module.
func (a *assembler) emitStage() (stage.EmitResult, error) {
	st := a.info.Stage
	impl := st.MakeProgramImpl(a.caps)
	a.prog.stageImpl = impl

	samplers := make([]emit.SamplerHandle, st.NumTextureSamplers())
	for i := range samplers {
		samplers[i] = a.addSampler(st.TextureSampler(i).Swizzle)
	}

	sv, sf := a.vert.Sub(), a.frag.Sub()
	res := impl.EmitCode(&stage.EmitArgs{
		Vert:             sv,
		Frag:             sf,
		Varyings:         &a.varyings,
		Uniforms:         &a.uniforms,
		Caps:             a.caps,
		Samplers:         samplers,
		OutputColor:      outputColor,
		OutputCoverage:   outputCoverage,
		NeedsLocalCoords: a.info.Pipeline.UsesLocalCoords(),
	})
	if !res.Position.IsValid() {
		return res, fmt.Errorf("%w: %s", ErrMissingPosition, st.Name())
	}
	if !sf.Assigns(outputColor) && !sf.Assigns(outputCoverage) {
		return res, fmt.Errorf("%w: %s", ErrMissingOutput, st.Name())
	}

	a.vert.Append(sv)
	a.frag.Codef("var %s = vec4<f32>(1.0);", outputColor)
	a.frag.Codef("var %s = vec4<f32>(1.0);", outputCoverage)
	a.frag.Append(sf)

	switch {
	case res.LocalCoords.IsValid():
		a.localVS = res.LocalCoords.Name
	case res.Position.Type == emit.Float3:
		a.localVS = res.Position.Name + ".xy / " + res.Position.Name + ".z"
	default:
		a.localVS = res.Position.Name
	}
	return res, nil
}

func (a *assembler) emitDstRead() {
	if !a.prog.readsDst {
		return
	}
	// The destination texture follows every sampler pair, including the
	// effect samplers declared later.
	a.frag.Codef("let dstColor = textureLoad(t_dst, vec2<i32>(%s.xy), 0);", fragPos)
}

func (a *assembler) emitEffects() {
	pl := a.info.Pipeline
	a.nodes = flatten(pl)
	a.prog.fps = make([]fpEntry, len(a.nodes))
	for i, n := range a.nodes {
		a.index[n] = i
		a.funcName[n] = fmt.Sprintf("fp%d_%s", i, n.Effect().Name())
		a.prog.fps[i] = fpEntry{matrix: emit.InvalidUniform, coords: CoordInfo{Ancestor: -1}}
	}

	// Matrix uniforms are visible to both stages so hoisted coordinates can
	// use them in the vertex stage.
	for i, n := range a.nodes {
		for c := 0; c < n.NumChildren(); c++ {
			if n.ChildUsage(c) == pipeline.SampleUniformMatrix {
				h, expr := a.uniforms.Add(emit.VisibleVertex|emit.VisibleFragment, emit.Float3x3, "matrix")
				a.prog.fps[i].matrix = h
				a.matrixExpr[n] = expr
				break
			}
		}
	}

	for i, n := range a.nodes {
		if !n.Effect().UsesCoords() || !n.IsHoisted() {
			continue
		}
		anc := n.MatrixAncestor()
		if anc == nil {
			a.prog.fps[i].coords = CoordInfo{Varying: a.hoistLocal(), Ancestor: -1}
			continue
		}
		a.prog.fps[i].coords = CoordInfo{Varying: a.hoistGroup(anc), Ancestor: a.index[anc]}
	}

	for _, n := range a.nodes {
		a.emitFunction(n)
	}

	rootCoords := "vec2<f32>(0.0)"
	if a.hasLocal {
		rootCoords = localCoords
	}
	color, cov := outputColor, outputCoverage
	for i := 0; i < pl.NumProcessors(); i++ {
		root := pl.Processor(i)
		if pl.IsColorProcessor(i) {
			next := fmt.Sprintf("color_%d", i)
			a.frag.Codef("let %s = %s(%s, %s);", next, a.funcName[root], color, rootCoords)
			color = next
		} else {
			next := fmt.Sprintf("coverage_%d", i)
			a.frag.Codef("let %s = %s(%s, %s);", next, a.funcName[root], cov, rootCoords)
			cov = next
		}
	}
	a.frag.Codef("let finalColor = %s;", color)
	a.frag.Codef("let finalCoverage = %s;", cov)
}

// hoistLocal declares the shared local-coordinate varying.
func (a *assembler) hoistLocal() string {
	if !a.hasLocal {
		a.hasLocal = true
		v := a.varyings.Add("localCoords", emit.Float2)
		a.vert.Codef("%s = %s;", v.VSOut(), a.localVS)
		a.privates = append(a.privates, fmt.Sprintf("var<private> %s: vec2<f32>;", localCoords))
		a.prologue = append(a.prologue, fmt.Sprintf("%s = %s;", localCoords, v.FSIn()))
	}
	return localCoords
}

// hoistGroup declares the varying carrying the coordinates produced by m's
// matrix.
func (a *assembler) hoistGroup(m *pipeline.Processor) string {
	if name, ok := a.fsCoords[m]; ok {
		return name
	}
	expr := a.vsCoordsFor(m)
	v := a.varyings.Add("transformedCoords", emit.Float2)
	a.vert.Codef("%s = %s;", v.VSOut(), expr)
	name := fmt.Sprintf("tc_%d", a.index[m])
	a.privates = append(a.privates, fmt.Sprintf("var<private> %s: vec2<f32>;", name))
	a.prologue = append(a.prologue, fmt.Sprintf("%s = %s;", name, v.FSIn()))
	a.fsCoords[m] = name
	return name
}

// vsCoordsFor returns the vertex-stage expression for the coordinates m's
// children are sampled at, composing enclosing matrices outside in.
func (a *assembler) vsCoordsFor(m *pipeline.Processor) string {
	if name, ok := a.vsCoords[m]; ok {
		return name
	}
	base := a.localVS
	if parent := m.MatrixAncestor(); parent != nil {
		base = a.vsCoordsFor(parent)
	}
	name := fmt.Sprintf("vtc_%d", a.index[m])
	a.vert.Codef("let %s = (%s * vec3<f32>(%s, 1.0)).xy;", name, a.matrixExpr[m], base)
	a.vsCoords[m] = name
	return name
}

func (a *assembler) emitFunction(n *pipeline.Processor) {
	var samplers []emit.SamplerHandle
	for _, t := range n.Effect().Textures() {
		samplers = append(samplers, a.addSampler(t.Swizzle))
	}
	fb := a.frag.Sub()
	args := &pipeline.EffectArgs{
		Frag:         fb,
		Uniforms:     &a.uniforms,
		Caps:         a.caps,
		InputColor:   "inColor",
		Coords:       "coords",
		FragPosition: fragPos,
		Samplers:     samplers,
		Invoke: func(i int, input, coords string) string {
			child := n.Child(i)
			switch n.ChildUsage(i) {
			case pipeline.SampleUniformMatrix:
				if tc, ok := a.fsCoords[n]; ok && child.IsHoisted() {
					return fmt.Sprintf("%s(%s, %s)", a.funcName[child], input, tc)
				}
				return fmt.Sprintf("%s(%s, (%s * vec3<f32>(coords, 1.0)).xy)", a.funcName[child], input, a.matrixExpr[n])
			case pipeline.SampleExplicit:
				return fmt.Sprintf("%s(%s, %s)", a.funcName[child], input, coords)
			default:
				return fmt.Sprintf("%s(%s, coords)", a.funcName[child], input)
			}
		},
	}
	impl := n.Effect().MakeImpl()
	impl.EmitCode(args)
	a.prog.fps[a.index[n]].impl = impl

	if f := fb.Functions(); f != "" {
		a.frag.Function(f)
	}
	a.frag.Function(fmt.Sprintf("fn %s(inColor: vec4<f32>, coords: vec2<f32>) -> vec4<f32> {\n%s}",
		a.funcName[n], fb.Body()))
}

func (a *assembler) emitXfer() {
	pl := a.info.Pipeline
	if a.prog.readsDst {
		a.frag.Code("var result: vec4<f32>;")
		pl.Xfer().EmitBlend(a.frag, "result", "finalColor", "finalCoverage", "dstColor")
	} else {
		a.frag.Code("let result = finalColor * finalCoverage;")
	}
	a.frag.Codef("return %s;", emit.ApplySwizzle("result", pl.WriteSwizzle().String()))
}

func (a *assembler) emitPosition(pos emit.Var) {
	if pos.Type == emit.Float3 {
		a.vert.Codef("out.position = vec4<f32>(%[1]s.xy * %[2]s.xy + %[1]s.z * %[2]s.zw, 0.0, %[1]s.z);", pos.Name, "u.u_rtAdjust")
	} else {
		a.vert.Codef("out.position = vec4<f32>(%s.xy * %s.xy + %s.zw, 0.0, 1.0);", pos.Name, "u.u_rtAdjust", "u.u_rtAdjust")
	}
}

// module stitches the declarations and both entry points together.
func (a *assembler) module() string {
	var sb strings.Builder

	sb.WriteString("struct Uniforms {\n")
	for _, u := range a.uniforms.Uniforms() {
		fmt.Fprintf(&sb, "    %s: %s,\n", u.Name, u.Type.WGSL())
	}
	sb.WriteString("}\n\n@group(0) @binding(0) var<uniform> u: Uniforms;\n")
	a.prog.numSamplers = len(a.samplerDecl)
	for _, d := range a.samplerDecl {
		sb.WriteString(d)
		sb.WriteByte('\n')
	}
	if a.prog.readsDst {
		fmt.Fprintf(&sb, "@group(0) @binding(%d) var t_dst: texture_2d<f32>;\n", 1+2*len(a.samplerDecl))
	}

	sb.WriteString("\nstruct VertexInput {\n")
	loc := 0
	for _, set := range []stage.AttributeSet{a.info.Stage.VertexAttributes(), a.info.Stage.InstanceAttributes()} {
		for _, attr := range set.Resolved() {
			fmt.Fprintf(&sb, "    @location(%d) %s: %s,\n", loc, attr.Name(), attr.GPUType().WGSL())
			loc++
		}
	}
	sb.WriteString("    @builtin(vertex_index) vertex_index: u32,\n")
	sb.WriteString("    @builtin(instance_index) instance_index: u32,\n}\n\n")

	sb.WriteString("struct VertexOutput {\n    @builtin(position) position: vec4<f32>,\n")
	for _, v := range a.varyings.List() {
		interp := ""
		if v.Flat {
			interp = " @interpolate(flat)"
		}
		fmt.Fprintf(&sb, "    @location(%d)%s %s: %s,\n", v.Location, interp, v.Name, v.Type.WGSL())
	}
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "var<private> %s: vec4<f32>;\n", fragPos)
	for _, p := range a.privates {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString(a.vert.Functions())
	sb.WriteString(a.frag.Functions())

	fmt.Fprintf(&sb, "@vertex\nfn %s(in: VertexInput) -> VertexOutput {\n    var out: VertexOutput;\n", VertexEntry)
	sb.WriteString(a.vert.Body())
	sb.WriteString("    return out;\n}\n\n")

	fmt.Fprintf(&sb, "@fragment\nfn %s(in: VertexOutput) -> @location(0) vec4<f32> {\n", FragmentEntry)
	fmt.Fprintf(&sb, "    %s = in.position;\n", fragPos)
	for _, p := range a.prologue {
		sb.WriteString("    " + p + "\n")
	}
	sb.WriteString(a.frag.Body())
	sb.WriteString("}\n")
	return sb.String()
}

package shader

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd/emit"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/stage"
)

var identity = f32.Aff3{1, 0, 0, 0, 1, 0}

var target = program.Target{Width: 256, Height: 128, Format: gputypes.TextureFormatRGBA8Unorm, NumSamples: 1}

func proxy(id gpucore.TextureID) *gpucore.TextureProxy {
	return &gpucore.TextureProxy{ID: id, Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm}
}

func texture(id gpucore.TextureID) *pipeline.Processor {
	return pipeline.NewTexture(proxy(id), gpucore.DefaultSampler, gpucore.SwizzleRGBA)
}

func info(st stage.Descriptor, color, coverage *pipeline.Processor, xfer pipeline.Xfer) *program.Info {
	set := pipeline.NewProcessorSet(color, coverage, xfer)
	caps := gpucore.DefaultCaps()
	set.Finalize(pipeline.InputColor{}, pipeline.CoverageNone, nil, caps, gpucore.ClampAuto)
	pl := pipeline.New(pipeline.InitArgs{Caps: caps}, set, nil)
	return program.NewInfo(nil, target, st, pl, pipeline.StencilSettings{},
		gputypes.PrimitiveTopologyTriangleList, gputypes.LoadOpLoad)
}

func assemble(t *testing.T, in *program.Info) *Program {
	t.Helper()
	p, err := Assemble(in, &gpucore.DefaultCaps().Shader)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	return p
}

func meshStage() stage.Descriptor {
	return stage.NewMesh(identity, true, false, gpucore.Color{})
}

func localQuad() stage.Descriptor {
	return stage.NewQuadPerEdgeAA(stage.QuadSpec{HasLocalCoords: true, Color: stage.ColorByte}, nil, nil)
}

func TestAssembleMinimal(t *testing.T) {
	p := assemble(t, info(meshStage(), nil, nil, pipeline.SrcOver))
	for _, want := range []string{
		"struct Uniforms", "u_rtAdjust: vec4<f32>", "struct VertexInput",
		"@location(0) position: vec2<f32>", "@location(1) color: vec4<f32>",
		"@builtin(vertex_index)", "fn " + VertexEntry, "fn " + FragmentEntry,
		"out.position = vec4<f32>(in.position.xy", "let result = finalColor * finalCoverage;",
	} {
		if !strings.Contains(p.Source, want) {
			t.Errorf("source missing %q\n%s", want, p.Source)
		}
	}
	if p.NumSamplers() != 0 || p.ReadsDst() {
		t.Errorf("NumSamplers() = %d, ReadsDst() = %v", p.NumSamplers(), p.ReadsDst())
	}
	if p.UniformSize() != 16 {
		t.Errorf("UniformSize() = %d, want 16", p.UniformSize())
	}
}

func TestAssembleCompiles(t *testing.T) {
	sampler := stage.SamplerFor(proxy(1), gpucore.DefaultSampler, gpucore.SwizzleRGBA)
	xf := &gpucore.ColorSpaceXform{Flags: gpucore.XformUnpremul | gpucore.XformLinearize |
		gpucore.XformGamut | gpucore.XformEncode | gpucore.XformPremul}
	quad := func(spec stage.QuadSpec) stage.Descriptor {
		spec.HasLocalCoords = true
		spec.Color = stage.ColorByte
		return stage.NewQuadPerEdgeAA(spec, &sampler, nil)
	}
	nested := pipeline.NewMatrix(f32.Aff3{2, 0, 0, 0, 2, 0},
		pipeline.NewMatrix(f32.Aff3{1, 0, 5, 0, 1, 0}, texture(2)))

	tests := []struct {
		name     string
		st       stage.Descriptor
		color    *pipeline.Processor
		coverage *pipeline.Processor
		xfer     pipeline.Xfer
	}{
		{"mesh", meshStage(), nil, nil, pipeline.SrcOver},
		{"quad", quad(stage.QuadSpec{}), nil, nil, pipeline.SrcOver},
		{"quad aa", quad(stage.QuadSpec{CoverageAA: true}), nil, nil, pipeline.SrcOver},
		{"quad subset", quad(stage.QuadSpec{Subset: true}), nil, nil, pipeline.SrcOver},
		{"quad perspective", quad(stage.QuadSpec{Perspective: true}), nil, nil, pipeline.SrcOver},
		{"quad xform", stage.NewQuadPerEdgeAA(stage.QuadSpec{HasLocalCoords: true, Saturate: true}, &sampler, xf),
			nil, nil, pipeline.SrcOver},
		{"glyph", stage.NewGlyph(stage.MaskA8, []*gpucore.TextureProxy{proxy(1)}, gpucore.DefaultSampler, identity),
			nil, nil, pipeline.SrcOver},
		{"path stencil", stage.NewPathStencil(identity), nil, nil, pipeline.SrcOver},
		{"bbox cover", stage.NewBoundingBoxCover(identity, true), nil, nil, pipeline.SrcOver},
		{"atlas", stage.NewAtlasInstance(proxy(1)), nil, nil, pipeline.SrcOver},
		{"dst read", meshStage(), texture(1), nil, pipeline.Xfer{Mode: pipeline.BlendMultiply}},
		{"nested matrix", localQuad(), nested, nil, pipeline.SrcOver},
		{"color xform", localQuad(), pipeline.NewColorSpaceXform(texture(1), xf), nil, pipeline.SrcOver},
		{"uniform color and rect", localQuad(),
			pipeline.NewModulate(pipeline.NewUniformColor(gpucore.Color{R: 1, A: 1}, pipeline.ColorModulateRGBA), false),
			pipeline.NewDeviceRect(gpucore.Rect{Right: 10, Bottom: 10}, true, false), pipeline.SrcOver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := assemble(t, info(tt.st, tt.color, tt.coverage, tt.xfer))
			m, err := program.NagaCompiler{}.Compile(p.Source)
			if err != nil {
				t.Fatalf("Compile() error = %v\n%s", err, p.Source)
			}
			if len(m.SPIRV) == 0 {
				t.Error("empty SPIR-V")
			}
		})
	}
}

func TestEmissionOrder(t *testing.T) {
	color := pipeline.NewModulate(texture(1), false)
	coverage := pipeline.NewDeviceRect(gpucore.Rect{Right: 10, Bottom: 10}, true, false)
	p := assemble(t, info(localQuad(), color, coverage, pipeline.SrcOver))

	fs := p.Source[strings.Index(p.Source, "fn "+FragmentEntry):]
	order := []string{"var outputColor", "let color_0 = fp1_Modulate(outputColor", "let coverage_1 = fp2_DeviceRect(outputCoverage", "let result"}
	last := -1
	for _, s := range order {
		i := strings.Index(fs, s)
		if i < 0 {
			t.Fatalf("fragment entry missing %q\n%s", s, fs)
		}
		if i < last {
			t.Errorf("%q emitted out of order", s)
		}
		last = i
	}
	// Children are emitted before the parents that call them.
	if strings.Index(p.Source, "fn fp0_Texture") > strings.Index(p.Source, "fn fp1_Modulate") {
		t.Error("child function emitted after parent")
	}
	if !strings.Contains(p.Source, "fp0_Texture(inColor, coords)") {
		t.Error("pass-through child should reuse the parent's coordinates")
	}
	if p.NumSamplers() != 1 || !strings.Contains(p.Source, "@binding(1) var t_0") {
		t.Errorf("sampler binding missing, NumSamplers() = %d", p.NumSamplers())
	}
}

func TestHoistedCoords(t *testing.T) {
	tex := texture(1)
	m := pipeline.NewMatrix(f32.Aff3{2, 0, 0, 0, 2, 0}, tex)
	direct := texture(2)
	root := pipeline.NewModulate(m, false)
	in := info(localQuad(), root, pipeline.NewModulate(direct, true), pipeline.SrcOver)
	p := assemble(t, in)

	v, at, ok := p.Coords(in.Pipeline, tex)
	if !ok || v != "tc_1" || at != m {
		t.Errorf("Coords(tex) = %q, %v, %v; want tc_1 at matrix", v, at, ok)
	}
	v, at, ok = p.Coords(in.Pipeline, direct)
	if !ok || v != "localCoords" || at != nil {
		t.Errorf("Coords(direct) = %q, %v, %v; want localCoords", v, at, ok)
	}
	if _, _, ok := p.Coords(in.Pipeline, root); ok {
		t.Error("root reads no coordinates")
	}
	for _, want := range []string{
		"let vtc_1 = (u.u_matrix * vec3<f32>(in.localCoord, 1.0)).xy;",
		"var<private> tc_1: vec2<f32>;",
		"fp0_Texture(inColor, tc_1)",
	} {
		if !strings.Contains(p.Source, want) {
			t.Errorf("source missing %q\n%s", want, p.Source)
		}
	}
}

func TestNestedMatrices(t *testing.T) {
	tex := texture(1)
	inner := pipeline.NewMatrix(f32.Aff3{1, 0, 5, 0, 1, 0}, tex)
	outer := pipeline.NewMatrix(f32.Aff3{2, 0, 0, 0, 2, 0}, inner)
	p := assemble(t, info(localQuad(), outer, nil, pipeline.SrcOver))

	// post-order: tex=0, inner=1, outer=2
	outerAt := strings.Index(p.Source, "let vtc_2 =")
	innerAt := strings.Index(p.Source, "let vtc_1 = (u.u_matrix * vec3<f32>(vtc_2, 1.0)).xy;")
	if outerAt < 0 || innerAt < 0 || innerAt < outerAt {
		t.Errorf("matrices not composed outside in\n%s", p.Source)
	}
	if strings.Contains(p.Source, "var<private> tc_2") {
		t.Error("outer matrix has no coordinate readers and needs no varying")
	}
}

func TestExplicitChildNotHoisted(t *testing.T) {
	explicit := texture(3)
	root := pipeline.NewModulate(texture(1), false).AddChild(explicit, pipeline.SampleExplicit)
	in := info(localQuad(), root, nil, pipeline.SrcOver)
	p := assemble(t, in)
	if _, _, ok := p.Coords(in.Pipeline, explicit); ok {
		t.Error("explicitly sampled child reported hoisted coordinates")
	}
	if p.NumSamplers() != 2 {
		t.Errorf("NumSamplers() = %d, want 2", p.NumSamplers())
	}
}

func TestDstRead(t *testing.T) {
	xfer := pipeline.Xfer{Mode: pipeline.BlendMultiply}
	p := assemble(t, info(meshStage(), texture(1), nil, xfer))
	if !p.ReadsDst() {
		t.Fatal("advanced blend should read the destination")
	}
	for _, want := range []string{"@binding(3) var t_dst", "let dstColor = textureLoad(t_dst", "var result: vec4<f32>;"} {
		if !strings.Contains(p.Source, want) {
			t.Errorf("source missing %q\n%s", want, p.Source)
		}
	}
}

func TestWriteSwizzle(t *testing.T) {
	st := meshStage()
	pl := pipeline.NewWithHardClip(pipeline.SrcOver, pipeline.HardClip{}, 0, gpucore.SwizzleBGRA)
	in := program.NewInfo(nil, target, st, pl, pipeline.StencilSettings{},
		gputypes.PrimitiveTopologyTriangleList, gputypes.LoadOpLoad)
	p := assemble(t, in)
	if !strings.Contains(p.Source, "return (result).bgra;") {
		t.Errorf("write swizzle not applied\n%s", p.Source)
	}
}

func TestTooManySamplers(t *testing.T) {
	pages := []*gpucore.TextureProxy{proxy(1), proxy(2), proxy(3)}
	st := stage.NewGlyph(stage.MaskA8, pages, gpucore.DefaultSampler, identity)
	caps := gpucore.DefaultCaps().Shader
	caps.MaxFragmentSamplers = 2
	_, err := Assemble(info(st, nil, nil, pipeline.SrcOver), &caps)
	if !errors.Is(err, ErrTooManySamplers) {
		t.Errorf("Assemble() error = %v, want ErrTooManySamplers", err)
	}
}

// brokenStage emits nothing useful.
type brokenStage struct {
	position bool
}

func (brokenStage) Name() string           { return "Broken" }
func (brokenStage) ClassID() stage.ClassID { return stage.ClassID(99) }
func (brokenStage) VertexAttributes() stage.AttributeSet {
	return stage.Implicit(stage.NewAttribute("position", stage.VertexFloat2, emit.Float2))
}
func (brokenStage) InstanceAttributes() stage.AttributeSet            { return stage.AttributeSet{} }
func (brokenStage) NumTextureSamplers() int                           { return 0 }
func (brokenStage) TextureSampler(int) stage.Sampler                  { return stage.Sampler{} }
func (brokenStage) AddToKey(*gpucore.ShaderCaps, *gpucore.KeyBuilder) {}
func (s brokenStage) MakeProgramImpl(*gpucore.ShaderCaps) stage.ProgramImpl {
	return brokenImpl(s)
}

type brokenImpl brokenStage

func (b brokenImpl) EmitCode(*stage.EmitArgs) stage.EmitResult {
	if b.position {
		return stage.EmitResult{Position: emit.Var{Name: "in.position", Type: emit.Float2}}
	}
	return stage.EmitResult{}
}

func (brokenImpl) SetData(*emit.DataManager, *gpucore.ShaderCaps, stage.Descriptor) {}

func TestStageErrors(t *testing.T) {
	tests := []struct {
		name string
		st   brokenStage
		want error
	}{
		{"no position", brokenStage{}, ErrMissingPosition},
		{"no output", brokenStage{position: true}, ErrMissingOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(info(tt.st, nil, nil, pipeline.SrcOver), &gpucore.DefaultCaps().Shader)
			if !errors.Is(err, tt.want) {
				t.Errorf("Assemble() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func readF32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestSetData(t *testing.T) {
	m := f32.Aff3{2, 0, 3, 0, 4, 5}
	in := info(localQuad(), pipeline.NewMatrix(m, texture(1)), nil, pipeline.SrcOver)
	p := assemble(t, in)
	dm := p.NewDataManager(nil)
	p.SetData(dm, in)

	data := dm.Bytes()
	if len(data) != p.UniformSize() {
		t.Fatalf("len(Bytes()) = %d, want %d", len(data), p.UniformSize())
	}
	rt := [4]float32{readF32(data, 0), readF32(data, 4), readF32(data, 8), readF32(data, 12)}
	if rt != [4]float32{2.0 / 256, -2.0 / 128, -1, 1} {
		t.Errorf("rtAdjust = %v", rt)
	}

	var off = -1
	for _, u := range p.Uniforms() {
		if u.Name == "u_matrix" {
			off = u.Offset
		}
	}
	if off < 0 {
		t.Fatal("matrix uniform not declared")
	}
	cols := emit.AffineColumns(m)
	// mat3x3 columns are padded to 16 bytes.
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			if got := readF32(data, off+16*c+4*r); got != cols[3*c+r] {
				t.Errorf("matrix[%d][%d] = %v, want %v", c, r, got, cols[3*c+r])
			}
		}
	}
}

func TestSetDataKeyMismatchPanics(t *testing.T) {
	in := info(localQuad(), texture(1), nil, pipeline.SrcOver)
	p := assemble(t, in)
	other := info(localQuad(), pipeline.NewModulate(texture(1), false), nil, pipeline.SrcOver)
	defer func() {
		if recover() == nil {
			t.Error("SetData with a different pipeline shape should panic")
		}
	}()
	p.SetData(p.NewDataManager(nil), other)
}

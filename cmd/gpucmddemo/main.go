// Command gpucmddemo records a small scene and reports how it was batched.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/go-text/typesetting/font"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/gpucmd"
	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/backend/halexec"
	"github.com/gogpu/gpucmd/draw"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/stage"
)

// Texture ids used by the demo.
const (
	checkerID gpucore.TextureID = iota + 1
	glyphPageID
)

func main() {
	var (
		width   = flag.Int("width", 800, "target width")
		height  = flag.Int("height", 600, "target height")
		name    = flag.String("backend", "", "backend name (hal, trace); empty picks the best")
		squares = flag.Int("squares", 64, "number of squares in the grid")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		gpucmd.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	opts := []gpucmd.ContextOption{gpucmd.WithStencil()}
	if *name != "" {
		opts = append(opts, gpucmd.WithBackendName(*name))
	}
	ctx, err := gpucmd.NewContext(*width, *height, opts...)
	if err != nil {
		log.Fatalf("Failed to create context: %v", err)
	}
	defer ctx.Close()

	checker, page := textures(ctx)

	ctx.Clear(gpucore.Color{R: 0.1, G: 0.2, B: 0.4, A: 1})
	drawGrid(ctx, *squares)
	drawStar(ctx, 600, 400)
	drawImages(ctx, checker)
	drawText(ctx, page)

	if err := ctx.Flush(); err != nil {
		log.Fatalf("Flush failed: %v", err)
	}

	st := ctx.Stats()
	log.Printf("backend %s: %d commands, %d merged, %d chained, %d draws (%d failed)",
		ctx.Backend().Name(), st.List.Recorded, st.List.Merged, st.List.Chained, st.Pass.Draws, st.Pass.FailedDraws)
	if exec, ok := ctx.Executor().(*backend.TraceExecutor); ok {
		for _, line := range exec.Lines() {
			fmt.Println(line)
		}
	}
}

// textures creates the demo textures. Only the hal backend holds texture
// data; other backends get bare proxies.
func textures(ctx *gpucmd.Context) (checker, page *gpucore.TextureProxy) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{R: 40, G: 40, B: 40, A: 255})
			}
		}
	}
	glyphs := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := range 32 {
		glyphs.Set(i, i, color.NRGBA{A: 255})
	}

	b, ok := ctx.Backend().(*halexec.Backend)
	if !ok {
		return proxy(checkerID, 64), proxy(glyphPageID, 32)
	}
	var err error
	if checker, err = b.UploadImage(checkerID, img); err != nil {
		log.Fatalf("Upload failed: %v", err)
	}
	if page, err = b.UploadImage(glyphPageID, glyphs); err != nil {
		log.Fatalf("Upload failed: %v", err)
	}
	return checker, page
}

func proxy(id gpucore.TextureID, size int) *gpucore.TextureProxy {
	return &gpucore.TextureProxy{ID: id, Width: size, Height: size, Format: gputypes.TextureFormatRGBA8Unorm}
}

// drawGrid records squares of two alternating colors. Same-colored squares
// merge into one draw.
func drawGrid(ctx *gpucmd.Context, n int) {
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	colors := [2]gpucore.Color{{R: 1, G: 0.3, B: 0.3, A: 1}, {R: 0.3, G: 1, B: 0.3, A: 1}}
	for i := range n {
		x := float32(20 + (i%cols)*30)
		y := float32(20 + (i/cols)*30)
		ctx.Record(draw.NewMesh(draw.Paint{}, draw.Mesh{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			Positions: []f32.Vec2{
				{x, y}, {x + 20, y}, {x, y + 20},
				{x + 20, y}, {x + 20, y + 20}, {x, y + 20},
			},
			Color: colors[i%2],
		}))
	}
}

// drawStar records a five-pointed star filled with the even-odd rule.
func drawStar(ctx *gpucmd.Context, cx, cy float32) {
	const points = 5
	var outline []f32.Vec2
	for i := range points {
		angle := float64(i) * 4 * math.Pi / points
		outline = append(outline, f32.Vec2{
			cx + float32(80*math.Cos(angle-math.Pi/2)),
			cy + float32(80*math.Sin(angle-math.Pi/2)),
		})
	}
	// Fan from the first vertex; the stencil resolves the overlap.
	var tri []f32.Vec2
	for i := 1; i+1 < len(outline); i++ {
		tri = append(tri, outline[0], outline[i], outline[i+1])
	}
	ctx.Record(draw.NewTessellatedPath(draw.Paint{}, f32.Aff3{}, draw.FillEvenOdd, tri,
		gpucore.Color{R: 1, G: 1, A: 1}))
}

// drawImages records textured quads sampling one texture. They merge into
// one indexed draw.
func drawImages(ctx *gpucmd.Context, tex *gpucore.TextureProxy) {
	var quads []draw.Quad
	for i := range 4 {
		x := float32(350 + i*70)
		quads = append(quads, draw.RectQuad(gpucore.RectXYWH(x, 60, 64, 64), gpucore.RectXYWH(0, 0, 64, 64),
			gpucore.Color{R: 1, G: 1, B: 1, A: 1}))
	}
	for _, q := range quads {
		ctx.Record(draw.NewTexturedQuads(draw.Paint{AA: gpucore.AACoverage},
			draw.QuadTexture{Proxy: tex, Sampler: gpucore.DefaultSampler}, q))
	}
}

// drawText records a run of glyphs from a one-page A8 atlas.
func drawText(ctx *gpucmd.Context, page *gpucore.TextureProxy) {
	run := draw.GlyphRun{
		Format:  stage.MaskA8,
		Pages:   []*gpucore.TextureProxy{page},
		Sampler: gpucore.DefaultSampler,
		Color:   gpucore.Color{R: 1, G: 1, B: 1, A: 1},
	}
	for i := range 8 {
		x := float32(40 + i*12)
		run.Glyphs = append(run.Glyphs, draw.Glyph{
			ID:     font.GID(36 + i),
			Device: gpucore.RectXYWH(x, 540, 10, 14),
			Atlas:  [2]uint16{uint16(i * 4), 0},
		})
	}
	ctx.Record(draw.NewGlyphs(draw.Paint{}, run))
}

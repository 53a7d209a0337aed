package halexec

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/gpucmd/gpucore"
)

type textureEntry struct {
	view    hal.TextureView
	texture hal.Texture // nil when the view is owned by the caller
}

// textureTable maps texture ids to views. It is shared by every executor
// of a backend.
type textureTable struct {
	mu      sync.RWMutex
	device  hal.Device
	queue   hal.Queue
	entries map[gpucore.TextureID]textureEntry
}

func newTextureTable(device hal.Device, queue hal.Queue) *textureTable {
	return &textureTable{device: device, queue: queue, entries: make(map[gpucore.TextureID]textureEntry)}
}

func (t *textureTable) add(id gpucore.TextureID, view hal.TextureView, texture hal.Texture) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.entries[id]; ok {
		t.release(old)
	}
	t.entries[id] = textureEntry{view: view, texture: texture}
}

func (t *textureTable) remove(id gpucore.TextureID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		t.release(e)
		delete(t.entries, id)
	}
}

func (t *textureTable) lookup(id gpucore.TextureID) (hal.TextureView, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTexture, id)
	}
	return e.view, nil
}

func (t *textureTable) release(e textureEntry) {
	if e.texture == nil {
		return
	}
	t.device.DestroyTextureView(e.view)
	t.device.DestroyTexture(e.texture)
}

func (t *textureTable) destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.entries {
		t.release(e)
		delete(t.entries, id)
	}
}

// UploadImage copies img into a new RGBA8 texture registered under id and
// returns its proxy.
func (b *Backend) UploadImage(id gpucore.TextureID, img image.Image) (*gpucore.TextureProxy, error) {
	if id == gpucore.InvalidID {
		return nil, fmt.Errorf("halexec: upload: invalid texture id")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, ErrInvalidDimensions
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		xdraw.Copy(rgba, image.Point{}, img, bounds, xdraw.Src, nil)
	}

	w, h := uint32(bounds.Dx()), uint32(bounds.Dy())
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         fmt.Sprintf("gpucmd_texture_%d", id),
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %d: %w", id, err)
	}
	err = b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex},
		rgba.Pix,
		&hal.ImageDataLayout{BytesPerRow: 4 * w, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, fmt.Errorf("write texture %d: %w", id, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		MipLevelCount: 1,
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create texture view %d: %w", id, err)
	}
	b.textures.add(id, view, tex)

	return &gpucore.TextureProxy{
		ID:     id,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: gputypes.TextureFormatRGBA8Unorm,
		Target: gpucore.Target2D,
	}, nil
}

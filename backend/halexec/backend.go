package halexec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/logging"
	"github.com/gogpu/gpucmd/program"
)

// Package errors.
var (
	// ErrNoAdapter is returned when the hal instance exposes no adapter.
	ErrNoAdapter = errors.New("halexec: no GPU adapters found")

	// ErrUnknownTexture is returned when a draw samples a texture that was
	// never added to the backend.
	ErrUnknownTexture = errors.New("halexec: unknown texture")

	// ErrInvalidDimensions is returned for an empty render target.
	ErrInvalidDimensions = errors.New("halexec: invalid dimensions")
)

func init() {
	backend.Register(backend.BackendHAL, func() backend.Backend {
		return NewBackend()
	})
}

// Option configures a Backend.
type Option func(*Backend)

// WithVariant selects the hal backend to open. The default picks the most
// capable registered one.
func WithVariant(v gputypes.Backend) Option {
	return func(b *Backend) {
		b.variant = v
		b.hasVariant = true
	}
}

// WithDevice adopts a device opened by the host application. The backend
// does not destroy it on Close.
func WithDevice(device hal.Device, queue hal.Queue, info gputypes.AdapterInfo) Option {
	return func(b *Backend) {
		b.device = device
		b.queue = queue
		b.adapter = info
		b.external = true
	}
}

// WithCompiler sets the shader compiler. The default hands WGSL to the
// driver.
func WithCompiler(c program.Compiler) Option {
	return func(b *Backend) {
		b.compiler = c
	}
}

// WithCacheSize bounds the number of compiled programs kept.
func WithCacheSize(n int) Option {
	return func(b *Backend) {
		b.cacheSize = n
	}
}

// WithCaps overrides the capabilities derived from the adapter.
func WithCaps(caps *gpucore.Caps) Option {
	return func(b *Backend) {
		b.capsOverride = caps
	}
}

// Backend is the hal implementation of backend.Backend.
//
// Backend is safe for concurrent use; the executors it creates are not.
type Backend struct {
	mu sync.Mutex

	variant    gputypes.Backend
	hasVariant bool
	external   bool
	compiler   program.Compiler
	cacheSize  int

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  gputypes.AdapterInfo

	caps         *gpucore.Caps
	capsOverride *gpucore.Caps
	programs     *program.Cache
	textures     *textureTable

	initialized bool
}

// NewBackend creates a hal backend. It must be initialized with Init.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{compiler: program.WGSLPassthrough{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendHAL }

// Init opens the device unless one was adopted, derives capabilities and
// creates the program cache.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	if b.device == nil {
		if err := b.openDevice(); err != nil {
			return err
		}
	}

	b.caps = b.capsOverride
	if b.caps == nil {
		b.caps = capsFor(b.adapter)
	}
	b.programs = program.NewCache(b.caps, b.cacheSize)
	b.textures = newTextureTable(b.device, b.queue)
	b.initialized = true
	logging.Logger().Info("halexec: device ready", "adapter", b.adapter.Name,
		"backend", b.adapter.Backend, "external", b.external)
	return nil
}

func (b *Backend) openDevice() error {
	var api hal.Backend
	if b.hasVariant {
		var ok bool
		if api, ok = hal.GetBackend(b.variant); !ok {
			return fmt.Errorf("%w: %s", backend.ErrBackendNotAvailable, b.variant)
		}
	} else {
		var err error
		if api, err = hal.SelectBestBackend(); err != nil {
			return fmt.Errorf("%w: %w", backend.ErrBackendNotAvailable, err)
		}
	}

	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}
	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.adapter = selected.Info
	return nil
}

// capsFor derives capabilities from the adapter. WebGPU has no in-pass
// texture barrier or input attachments, so destination reads always copy.
func capsFor(info gputypes.AdapterInfo) *gpucore.Caps {
	caps := gpucore.CapsFromAdapter(adapterInfo(info))
	caps.TextureBarrier = false
	caps.Shader.InputAttachments = false
	caps.MaxVertexAttributes = int(gputypes.DefaultLimits().MaxVertexAttributes)
	return caps
}

func adapterInfo(info gputypes.AdapterInfo) gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: info.Name, Type: t}
}

// Close releases the program cache and textures, then the device if the
// backend opened it.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}
	if err := b.device.WaitIdle(); err != nil {
		logging.Logger().Warn("halexec: wait idle", "error", err)
	}
	b.programs.Clear()
	b.textures.destroy()
	if !b.external {
		b.device.Destroy()
		if b.instance != nil {
			b.instance.Destroy()
		}
		b.device, b.queue, b.instance = nil, nil, nil
	}
	b.initialized = false
}

// Caps returns the device capabilities. It is nil before Init.
func (b *Backend) Caps() *gpucore.Caps { return b.caps }

// Programs returns the compiled-program cache shared by the executors.
func (b *Backend) Programs() *program.Cache { return b.programs }

// Device returns the hal device and queue.
func (b *Backend) Device() (hal.Device, hal.Queue) { return b.device, b.queue }

// AddTexture makes view available to draws sampling texture id.
func (b *Backend) AddTexture(id gpucore.TextureID, view hal.TextureView) {
	b.textures.add(id, view, nil)
}

// RemoveTexture forgets id. Textures created by UploadImage are destroyed.
func (b *Backend) RemoveTexture(id gpucore.TextureID) {
	b.textures.remove(id)
}

// NewExecutor creates an executor with its own offscreen target.
func (b *Backend) NewExecutor(target program.Target) (backend.Executor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, backend.ErrNotInitialized
	}
	e, err := newExecutor(b, target)
	if err != nil {
		return nil, err
	}
	return e, nil
}

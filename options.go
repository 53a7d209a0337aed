package gpucmd

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/arena"
	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/gpucore"
)

// ContextOption configures a Context during creation.
//
// Example:
//
//	// Default backend, RGBA8 target
//	ctx, err := gpucmd.NewContext(800, 600)
//
//	// Explicit backend with a stencil buffer
//	ctx, err := gpucmd.NewContext(800, 600,
//	    gpucmd.WithBackendName(backend.BackendTrace),
//	    gpucmd.WithStencil())
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	backend      backend.Backend
	backendName  string
	format       gputypes.TextureFormat
	samples      uint32
	stencil      bool
	clamp        gpucore.ClampMode
	capacity     int
	arenaOpts    []arena.Option
	writeSwizzle gpucore.Swizzle
}

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		format:       gputypes.TextureFormatRGBA8Unorm,
		samples:      1,
		writeSwizzle: gpucore.SwizzleRGBA,
	}
}

// WithBackend uses b instead of a registered backend. The caller keeps
// ownership: Context.Close does not close b.
func WithBackend(b backend.Backend) ContextOption {
	return func(o *contextOptions) {
		o.backend = b
	}
}

// WithBackendName selects a registered backend by name. The default
// tries registered backends in priority order.
func WithBackendName(name string) ContextOption {
	return func(o *contextOptions) {
		o.backendName = name
	}
}

// WithFormat sets the color format of the render target.
func WithFormat(f gputypes.TextureFormat) ContextOption {
	return func(o *contextOptions) {
		o.format = f
	}
}

// WithSampleCount sets the MSAA sample count of the render target.
func WithSampleCount(n uint32) ContextOption {
	return func(o *contextOptions) {
		o.samples = max(n, 1)
	}
}

// WithStencil gives the render target a stencil buffer, which path fills
// and stencil clips need.
func WithStencil() ContextOption {
	return func(o *contextOptions) {
		o.stencil = true
	}
}

// WithClampMode sets how known paint colors are clamped.
func WithClampMode(m gpucore.ClampMode) ContextOption {
	return func(o *contextOptions) {
		o.clamp = m
	}
}

// WithCapacity preallocates room for n commands per flush.
func WithCapacity(n int) ContextOption {
	return func(o *contextOptions) {
		o.capacity = n
	}
}

// WithArenaOptions configures the arena holding vertex data during flush.
func WithArenaOptions(opts ...arena.Option) ContextOption {
	return func(o *contextOptions) {
		o.arenaOpts = append(o.arenaOpts, opts...)
	}
}

// WithWriteSwizzle remaps every color written to the target.
func WithWriteSwizzle(s gpucore.Swizzle) ContextOption {
	return func(o *contextOptions) {
		o.writeSwizzle = s
	}
}

package gpucmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/gogpu/gpucmd/arena"
	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/draw"
	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/pipeline"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
)

// Package errors.
var (
	// ErrClosed is returned by operations on a closed Context.
	ErrClosed = errors.New("gpucmd: context is closed")

	// ErrInvalidDimensions is returned for a non-positive width or height.
	ErrInvalidDimensions = errors.New("gpucmd: invalid dimensions")
)

// Stats accumulates activity over the lifetime of a Context.
type Stats struct {
	Flushes int
	List    draw.Stats       // summed over flushed lists
	Pass    renderpass.Stats // summed over passes
}

// Context records draw commands for one render target and flushes them
// through a backend executor. It is not safe for concurrent use.
// Context implements io.Closer for proper resource cleanup.
type Context struct {
	width  int
	height int

	backend     backend.Backend
	ownsBackend bool
	exec        backend.Executor
	caps        *gpucore.Caps
	target      program.Target

	list     *draw.List
	listOpts []draw.Option
	vertices *arena.Arena
	infos    *arena.Slab[program.Info]
	swizzle  gpucore.Swizzle

	stats  Stats
	closed bool
}

// Ensure Context implements io.Closer
var _ io.Closer = (*Context)(nil)

// NewContext creates a context drawing into a width x height target.
//
//	// Default backend
//	ctx, err := gpucmd.NewContext(800, 600)
//
//	// Backend shared between contexts
//	ctx, err := gpucmd.NewContext(800, 600, gpucmd.WithBackend(b))
func NewContext(width, height int, opts ...ContextOption) (*Context, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	b, owns, err := openBackend(&options)
	if err != nil {
		return nil, err
	}
	target := program.Target{
		Width:      uint32(width),
		Height:     uint32(height),
		Format:     options.format,
		NumSamples: options.samples,
		HasStencil: options.stencil,
	}
	exec, err := b.NewExecutor(target)
	if err != nil {
		if owns {
			b.Close()
		}
		return nil, fmt.Errorf("gpucmd: create executor: %w", err)
	}

	c := &Context{
		width:       width,
		height:      height,
		backend:     b,
		ownsBackend: owns,
		exec:        exec,
		caps:        b.Caps(),
		target:      target,
		vertices:    arena.New(options.arenaOpts...),
		infos:       arena.NewSlab[program.Info](0),
		swizzle:     options.writeSwizzle,
	}
	c.listOpts = append(c.listOpts, draw.WithClampMode(options.clamp))
	if options.capacity > 0 {
		c.listOpts = append(c.listOpts, draw.WithCapacity(options.capacity))
	}
	c.list = draw.NewList(c.caps, c.listOpts...)

	Logger().Debug("gpucmd: context created", "backend", b.Name(),
		"width", width, "height", height, "stencil", options.stencil)
	return c, nil
}

// openBackend resolves the configured backend and reports whether the
// context owns it.
func openBackend(o *contextOptions) (backend.Backend, bool, error) {
	switch {
	case o.backend != nil:
		if err := o.backend.Init(); err != nil {
			return nil, false, fmt.Errorf("gpucmd: init %s backend: %w", o.backend.Name(), err)
		}
		return o.backend, false, nil
	case o.backendName != "":
		b := backend.Get(o.backendName)
		if b == nil {
			return nil, false, fmt.Errorf("%w: %s", backend.ErrBackendNotAvailable, o.backendName)
		}
		if err := b.Init(); err != nil {
			return nil, false, fmt.Errorf("gpucmd: init %s backend: %w", o.backendName, err)
		}
		return b, true, nil
	default:
		b, err := backend.InitDefault()
		if err != nil {
			return nil, false, fmt.Errorf("gpucmd: %w", err)
		}
		return b, true, nil
	}
}

// Width returns the target width in pixels.
func (c *Context) Width() int { return c.width }

// Height returns the target height in pixels.
func (c *Context) Height() int { return c.height }

// Caps returns the capabilities commands are combined against.
func (c *Context) Caps() *gpucore.Caps { return c.caps }

// Target returns the render target description.
func (c *Context) Target() program.Target { return c.target }

// Backend returns the backend executing flushes.
func (c *Context) Backend() backend.Backend { return c.backend }

// Executor returns the executor of the render target.
func (c *Context) Executor() backend.Executor { return c.exec }

// Stats returns accumulated statistics.
func (c *Context) Stats() Stats { return c.stats }

// Record adds cmd to the pending list and returns its reference, which
// stays valid until the next Flush.
func (c *Context) Record(cmd draw.Command) draw.Ref {
	return c.RecordClipped(cmd, nil, nil)
}

// RecordClipped adds cmd under clip. dstProxy is the copy of the target
// the command reads when its blend needs the destination color.
func (c *Context) RecordClipped(cmd draw.Command, clip *pipeline.AppliedClip, dstProxy *gpucore.TextureProxy) draw.Ref {
	if c.closed {
		Logger().Warn("gpucmd: record on closed context", "kind", cmd.Kind())
		return draw.NoRef
	}
	return c.list.Record(cmd, clip, dstProxy)
}

// Clear records a full-target clear. At the head of a flush it becomes
// the pass load op.
func (c *Context) Clear(color gpucore.Color) draw.Ref {
	return c.Record(draw.NewClear(color, nil))
}

// Pending returns the list recorded since the last flush.
func (c *Context) Pending() *draw.List { return c.list }

// VisitProxies calls fn for every texture the pending commands sample.
func (c *Context) VisitProxies(fn func(*gpucore.TextureProxy)) {
	c.list.VisitProxies(fn)
}

// Flush executes the pending commands in one render pass and starts a new
// list. It returns the executor's first error of the pass.
func (c *Context) Flush() error {
	if c.closed {
		return ErrClosed
	}
	list := c.list
	c.list = draw.NewList(c.caps, c.listOpts...)

	pass := renderpass.New(c.exec, c.caps)
	fs := &draw.FlushState{
		Caps:         c.caps,
		Target:       c.target,
		Pass:         pass,
		Vertices:     c.vertices,
		Infos:        c.infos,
		WriteSwizzle: c.swizzle,
	}
	err := list.Flush(fs)
	c.infos.Reset()
	c.accumulate(list.Stats(), pass.Stats())
	if err != nil {
		return fmt.Errorf("gpucmd: flush: %w", err)
	}
	if err := c.exec.Err(); err != nil {
		return fmt.Errorf("gpucmd: flush: %w", err)
	}
	return nil
}

func (c *Context) accumulate(ls draw.Stats, ps renderpass.Stats) {
	c.stats.Flushes++
	c.stats.List.Recorded += ls.Recorded
	c.stats.List.Dropped += ls.Dropped
	c.stats.List.Merged += ls.Merged
	c.stats.List.Chained += ls.Chained
	c.stats.List.Forward += ls.Forward
	c.stats.Pass.Binds += ps.Binds
	c.stats.Pass.FailedBinds += ps.FailedBinds
	c.stats.Pass.Draws += ps.Draws
	c.stats.Pass.FailedDraws += ps.FailedDraws
	c.stats.Pass.Barriers += ps.Barriers
}

// Close releases the executor and, unless it was supplied with
// WithBackend, the backend. Pending commands are discarded.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.list.Close()
	c.exec.Release()
	if c.ownsBackend {
		c.backend.Close()
	}
	if leaked := c.vertices.LeakedIDs(); len(leaked) > 0 {
		Logger().Warn("gpucmd: arena allocations leaked", "ids", leaked)
	}
	c.vertices.Reset()
	return nil
}

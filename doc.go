// Package gpucmd records 2D draw commands and submits them to a GPU in as
// few draw calls as possible.
//
// # Overview
//
// Draws are recorded into a Context. Each command is merged into an
// earlier compatible command or chained behind one when paint order allows
// it. Flush turns the surviving commands into program descriptors, binds
// the programs through a validated render pass and issues the draws on a
// backend executor.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/gpucmd"
//	    "github.com/gogpu/gpucmd/draw"
//	    "github.com/gogpu/gpucmd/gpucore"
//	    _ "github.com/gogpu/gpucmd/backend/halexec" // register the GPU backend
//	)
//
//	ctx, err := gpucmd.NewContext(800, 600)
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
//	ctx.Clear(gpucore.Color{A: 1})
//	ctx.Record(draw.NewMesh(draw.Paint{}, mesh))
//	err = ctx.Flush()
//
// # Architecture
//
// The module is organized into:
//   - arena: block arena for per-flush memory
//   - stage, pipeline, program: descriptors and program keys
//   - shader: WGSL assembly from a program descriptor
//   - draw: command variants, merge and chain, flush
//   - renderpass: the bind/draw state machine
//   - backend: executor backends (hal, trace)
//
// # Backends
//
// The trace backend is always available and records the calls a pass
// made. Importing backend/halexec registers the hal backend, which is
// preferred when a device can be opened.
package gpucmd

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)

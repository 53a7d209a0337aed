// Package backend provides a pluggable executor backend abstraction.
//
// A backend owns a device and hands out executors, the objects a render
// pass drives to issue backend commands. The trace backend is registered
// on import and records every call as text; the hal backend in
// backend/halexec drives a gogpu/wgpu hal device:
//
//	import _ "github.com/gogpu/gpucmd/backend/halexec"
//
// # Backend Selection
//
// Use Default() to get the best available backend, or Get() to request
// a specific backend by name:
//
//	b := backend.Default()
//	if err := b.Init(); err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	exec, err := b.NewExecutor(program.Target{Width: 800, Height: 600})
//
// # Available Backends
//
// - "hal": GPU execution via gogpu/wgpu hal
// - "trace": text recording of executor calls (always available)
package backend

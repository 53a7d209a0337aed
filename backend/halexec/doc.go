// Package halexec executes render passes on a gogpu/wgpu hal device.
//
// A Backend opens (or adopts) a device and owns the program cache shared by
// its executors. An Executor draws into an offscreen color target plus an
// optional depth-stencil attachment and turns every renderpass.Executor
// call into hal encoder calls:
//
//	b := halexec.NewBackend()
//	if err := b.Init(); err != nil {
//		return err
//	}
//	defer b.Close()
//
//	exec, err := b.NewExecutor(program.Target{Width: w, Height: h, Format: f, NumSamples: 1})
//
// Programs are assembled to WGSL by package shader, compiled by a
// program.Compiler and cached by key. Vertex, index and indirect buffers
// are uploaded once per pass and reclaimed after the GPU completes the
// submission.
//
// Importing the package registers the "hal" backend with package backend.
package halexec

// Package shader assembles one WGSL module with vs_main and fs_main entry
// points from a program.Info.
//
// Emission runs in a fixed order: the stage descriptor's code, the
// destination read, one function per fragment effect in post-order
// (children before parents), then the transfer. Effect coordinates that
// are reached only through pass-through and uniform-matrix sampling are
// computed once in the vertex stage and shared through a varying.
//
// Bindings in group 0: the uniform block at 0, then a texture and sampler
// pair per sampled texture (stage textures first, then effect textures in
// processor order), then the destination texture when the transfer reads
// it.
package shader

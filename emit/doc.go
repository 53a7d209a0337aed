// Package emit provides the primitives that stage descriptors, fragment
// effects and the shader assembler use to produce WGSL text: per-stage text
// builders, varying and uniform handlers, sampler handles, and the
// DataManager that packs per-draw uniform values.
package emit

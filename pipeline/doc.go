// Package pipeline holds the immutable per-draw pipeline state: the
// fragment-effect tree split into color and coverage processors, the
// transfer (blend) function, the applied hard clip and the packed stencil
// settings.
//
// A Pipeline is built once per draw and moved into a program.Info. Its
// GenKey output, together with the stage key, identifies a compiled
// program; two pipelines built from equal inputs produce equal keys.
package pipeline

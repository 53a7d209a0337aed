// Package program defines the Program Descriptor (Info), its cache key,
// the compiled-program cache shared across flushes, and the compilers that
// turn assembled WGSL into backend shader source.
//
// An Info is a non-owning aggregate: it points at a stage descriptor and a
// pipeline and lives in whichever arena.Slab the caller allocated it from,
// either per recording or per flush.
package program

// Package arena provides the block allocator backing one recording or flush
// pass.
//
// An Arena hands out aligned byte ranges carved from a chain of blocks. The
// first block is permanent; later blocks are sized by a GrowthPolicy. Every
// allocation is tracked in a side table keyed by its id, so Release is O(1)
// and a block whose live count reaches zero goes back to a free pool where
// the next allocation that fits reuses it.
//
// Build with -tags gpucmd_debug to poison released memory, keep a live-id
// set for leak reports, and cross-check block bookkeeping on every call.
//
// Arena is not safe for concurrent use. Wrap it in a Shared handle when
// several recording contexts need one small-object pool.
package arena

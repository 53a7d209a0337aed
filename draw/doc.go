// Package draw records draw commands and batches them for the GPU.
//
// Commands are recorded into a List. Each new command is compared against
// the most recent chains: it may merge into an earlier command (its
// geometry appended, one GPU draw for both), chain after it (separate
// draws sharing one bound pipeline, textures rebound in between), or start
// a new chain. The search stops at the first chain whose bounds overlap
// the new command, so paint order is preserved. Close runs a second,
// forward pass that moves chains later when that lets them join a
// compatible chain.
//
// Flush prepares vertex data into arena memory, builds one program.Info
// per chain and drives a renderpass.Pass. Every surviving command executes
// exactly once, in order.
package draw

//go:build gpucmd_debug

package debug

// Enabled reports whether debug validation is compiled in.
const Enabled = true

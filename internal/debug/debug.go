// Package debug provides assertions compiled in only with the gpucmd_debug
// build tag. In release builds Enabled is a false constant and every
// assertion folds away.
package debug

import "fmt"

// Assert panics with msg when cond is false in debug builds.
func Assert(cond bool, msg string) {
	if Enabled && !cond {
		panic("gpucmd: assertion failed: " + msg)
	}
}

// Assertf is Assert with a formatted message.
func Assertf(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic("gpucmd: assertion failed: " + fmt.Sprintf(format, args...))
	}
}

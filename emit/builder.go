package emit

import (
	"fmt"
	"strings"
)

// ShaderBuilder accumulates the text of one shader stage: helper functions
// emitted at module scope and statements of the entry point body.
type ShaderBuilder struct {
	funcs  strings.Builder
	body   strings.Builder
	indent int
	names  map[string]int
}

// Codef appends one formatted statement to the entry point body.
func (b *ShaderBuilder) Codef(format string, args ...any) {
	b.Code(fmt.Sprintf(format, args...))
}

// Code appends one statement to the entry point body.
func (b *ShaderBuilder) Code(line string) {
	b.body.WriteString(strings.Repeat("    ", b.indent+1))
	b.body.WriteString(line)
	b.body.WriteByte('\n')
}

// Indent and Dedent adjust the indentation of subsequent statements.
func (b *ShaderBuilder) Indent() { b.indent++ }

// Dedent reverses one Indent.
func (b *ShaderBuilder) Dedent() {
	if b.indent > 0 {
		b.indent--
	}
}

// Function appends a module-scope helper function.
func (b *ShaderBuilder) Function(src string) {
	b.funcs.WriteString(src)
	if !strings.HasSuffix(src, "\n") {
		b.funcs.WriteByte('\n')
	}
	b.funcs.WriteByte('\n')
}

// Functions returns the module-scope helper text.
func (b *ShaderBuilder) Functions() string { return b.funcs.String() }

// Body returns the entry point statements.
func (b *ShaderBuilder) Body() string { return b.body.String() }

// Assigns reports whether the body assigns to name.
func (b *ShaderBuilder) Assigns(name string) bool {
	body := b.body.String()
	return strings.Contains(body, name+" = ") || strings.Contains(body, "var "+name+" ") ||
		strings.Contains(body, "let "+name+" ")
}

// Unique returns base, or base with a numeric suffix if it was already
// handed out by this builder.
func (b *ShaderBuilder) Unique(base string) string {
	if b.names == nil {
		b.names = make(map[string]int)
	}
	n := b.names[base]
	b.names[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n)
}

// Sub returns an empty builder for a separate function body. It shares b's
// unique-name table so helpers emitted through either never collide.
func (b *ShaderBuilder) Sub() *ShaderBuilder {
	if b.names == nil {
		b.names = make(map[string]int)
	}
	return &ShaderBuilder{names: b.names}
}

// Append copies o's helper functions and body statements onto b.
func (b *ShaderBuilder) Append(o *ShaderBuilder) {
	b.funcs.WriteString(o.funcs.String())
	b.body.WriteString(o.body.String())
}

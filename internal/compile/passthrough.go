package compile

import (
	"context"
	"strings"
)

// PassthroughCompiler treats sources as target code already and returns them
// unchanged. It backs the "lua" backend, for trees written directly in Lua or
// produced by an earlier translation step.
type PassthroughCompiler struct{}

// Compile implements Compiler.
func (PassthroughCompiler) Compile(_ context.Context, source, name string, _ int, _ Options) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", Errorf(name, "empty source")
	}
	return strings.TrimRight(source, "\r\n"), nil
}

// ID implements Identifier.
func (PassthroughCompiler) ID() string { return "lua" }

// Package compile defines the boundary to the per-file compiler: the contract
// every backend implements, the single-file and inline entry points, and the
// decorators layered over a backend (logging, caching).
package compile

import (
	"context"
	"fmt"
	"os"
)

// Scope depths passed to Compile.
const (
	// ScopeTopLevel is used for a lone file or inline code.
	ScopeTopLevel = 0
	// ScopeModule is used for files compiled into a module table entry.
	ScopeModule = 2
)

// InlineName is the name inline code is compiled under.
const InlineName = "(command line)"

// Compiler translates one unit of source text into target code.
//
// Implementations must be safe for concurrent use; the scheduler calls Compile
// from several goroutines with the same Options value.
type Compiler interface {
	Compile(ctx context.Context, source, name string, scope int, opts Options) (string, error)
}

// Func adapts an ordinary function to the Compiler interface.
type Func func(ctx context.Context, source, name string, scope int, opts Options) (string, error)

// Compile calls f.
func (f Func) Compile(ctx context.Context, source, name string, scope int, opts Options) (string, error) {
	return f(ctx, source, name, scope, opts)
}

// Error is a compilation failure for a single unit.
type Error struct {
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Errorf builds an *Error for name.
func Errorf(name, format string, args ...any) *Error {
	return &Error{Name: name, Message: fmt.Sprintf(format, args...)}
}

// CompileFile reads path and compiles its contents under name.
func CompileFile(ctx context.Context, c Compiler, path, name string, scope int, opts Options) (string, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from discovery or the command line
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return c.Compile(ctx, string(content), name, scope, opts)
}

// CompileCode compiles a code string passed directly by the user.
func CompileCode(ctx context.Context, c Compiler, code string, opts Options) (string, error) {
	return c.Compile(ctx, code, InlineName, ScopeTopLevel, opts)
}

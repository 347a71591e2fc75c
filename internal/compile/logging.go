package compile

import (
	"context"
	"log/slog"
	"time"
)

type loggingCompiler struct {
	next   Compiler
	logger *slog.Logger
}

// WithLogging reports every compilation on logger: its duration on success
// and, when Options.TraceOutput is set, the generated code.
func WithLogging(next Compiler, logger *slog.Logger) Compiler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &loggingCompiler{next: next, logger: logger}
}

func (c *loggingCompiler) Compile(ctx context.Context, source, name string, scope int, opts Options) (string, error) {
	start := time.Now()
	code, err := c.next.Compile(ctx, source, name, scope, opts)
	if err != nil {
		return "", err
	}

	if opts.TraceOutput {
		c.logger.Info("compiled output", "name", name, "code", code)
	}
	c.logger.Info("compiled file",
		"name", name,
		"duration", time.Since(start).Round(time.Microsecond))
	return code, nil
}

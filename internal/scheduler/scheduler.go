// Package scheduler compiles a discovered source tree on a fixed pool of
// workers and aggregates the per-file outcomes.
//
// Files are handed out through a pre-filled, closed channel, so each file is
// received by exactly one worker. Processing order and fragment order are
// unspecified: callers must treat Result.Fragments as a set.
package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/luaweave/internal/compile"
	"github.com/leapstack-labs/luaweave/internal/discovery"
)

// Config configures a Scheduler.
type Config struct {
	// Compiler is invoked once per file. Required.
	Compiler compile.Compiler
	// Options are shared read-only by every compilation.
	Options compile.Options
	// Parallelism is the hardware parallelism the pool is sized against.
	// Zero uses runtime.NumCPU().
	Parallelism int
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Scheduler runs one compilation per discovered file.
type Scheduler struct {
	compiler    compile.Compiler
	opts        compile.Options
	parallelism int
	logger      *slog.Logger
}

// New creates a scheduler from cfg.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return &Scheduler{
		compiler:    cfg.Compiler,
		opts:        cfg.Options,
		parallelism: parallelism,
		logger:      logger,
	}
}

// WorkerCount returns the pool size for fileCount files:
// min(fileCount, 2*parallelism). Blocking inside the compiler is tolerated by
// the 2x oversubscription.
func WorkerCount(fileCount, parallelism int) int {
	if parallelism < 1 {
		parallelism = 1
	}
	return min(fileCount, 2*parallelism)
}

// Run compiles every file and blocks until all workers have exited. A failing
// file never stops the others; it is logged as it happens and recorded in
// the result. Run has no deadline: a compiler call that never returns stalls
// its worker.
func (s *Scheduler) Run(ctx context.Context, files []discovery.SourceFile) *Result {
	pending := make(chan discovery.SourceFile, len(files))
	for _, f := range files {
		pending <- f
	}
	close(pending)

	res := &Result{
		Workers:   WorkerCount(len(files), s.parallelism),
		Fragments: make([]Fragment, 0, len(files)),
	}
	s.logger.Debug("starting compilation workers", "files", len(files), "workers", res.Workers)

	var (
		g          errgroup.Group
		fragmentMu sync.Mutex
		failureMu  sync.Mutex
	)
	for range res.Workers {
		g.Go(func() error {
			for file := range pending {
				start := time.Now()
				code, err := compile.CompileFile(ctx, s.compiler, file.Path, file.QualifiedName, compile.ScopeModule, s.opts)
				elapsed := time.Since(start)

				if err != nil {
					s.logger.Error("compile failed", "name", file.QualifiedName, "path", file.Path, "error", err)
					failureMu.Lock()
					res.Failures = append(res.Failures, Failure{
						Name: file.QualifiedName, Path: file.Path, Err: err, Duration: elapsed,
					})
					failureMu.Unlock()
					continue
				}

				fragmentMu.Lock()
				res.Fragments = append(res.Fragments, Fragment{
					Name: file.QualifiedName, Path: file.Path, Code: code, Duration: elapsed,
				})
				fragmentMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return res
}

package compile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Cache stores generated code by content key.
type Cache interface {
	GetFragment(key string) (code string, ok bool, err error)
	PutFragment(key, name, code string) error
}

// Identifier is implemented by backends whose output depends on more than
// source and options. The ID is part of every cache key and is read on every
// compilation, so it may change between builds.
type Identifier interface {
	ID() string
}

type cachedCompiler struct {
	next   Compiler
	cache  Cache
	id     Identifier
	logger *slog.Logger
}

// WithCache serves repeated compilations of identical input from cache.
// Only successful compilations are stored. Cache failures never fail a
// compilation; they are logged and the backend is used.
func WithCache(next Compiler, cache Cache, logger *slog.Logger) Compiler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &cachedCompiler{next: next, cache: cache, logger: logger}
	if id, ok := next.(Identifier); ok {
		c.id = id
	}
	return c
}

// CacheKey derives the cache key of one compilation.
func CacheKey(backend, source, name string, scope int, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%s\x00", backend, name, scope, opts.Fingerprint())
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *cachedCompiler) Compile(ctx context.Context, source, name string, scope int, opts Options) (string, error) {
	var backend string
	if c.id != nil {
		backend = c.id.ID()
	}
	key := CacheKey(backend, source, name, scope, opts)

	code, ok, err := c.cache.GetFragment(key)
	switch {
	case err != nil:
		c.logger.Warn("fragment cache lookup failed", "name", name, "error", err)
	case ok:
		c.logger.Debug("fragment cache hit", "name", name)
		return code, nil
	}

	code, err = c.next.Compile(ctx, source, name, scope, opts)
	if err != nil {
		return "", err
	}

	if err := c.cache.PutFragment(key, name, code); err != nil {
		c.logger.Warn("fragment cache store failed", "name", name, "error", err)
	}
	return code, nil
}

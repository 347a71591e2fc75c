package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/luaweave/internal/compile"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.SourceExt, ".") || len(c.SourceExt) < 2 {
		return fmt.Errorf("source_ext must start with a dot, got %q", c.SourceExt)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}

	switch c.Compiler.Backend {
	case BackendLua:
	case BackendCommand:
		if strings.TrimSpace(c.Compiler.Command) == "" {
			return fmt.Errorf("compiler.command is required for the %q backend", BackendCommand)
		}
	default:
		return fmt.Errorf("unknown compiler backend %q (available: %s, %s)", c.Compiler.Backend, BackendLua, BackendCommand)
	}

	if _, err := compile.ParseContinueMode(c.Continue); err != nil {
		return err
	}

	formats := []string{OutputAuto, OutputText, OutputMarkdown, OutputJSON}
	if !slices.Contains(formats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (available: %s)", c.OutputFormat, strings.Join(formats, ", "))
	}

	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}

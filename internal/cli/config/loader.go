package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// EnvPrefix prefixes every environment variable the loader reads. Nested
// keys use a double underscore: LUAWEAVE_COMPILER__BACKEND.
const EnvPrefix = "LUAWEAVE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configFileNames = []string{"luaweave.yaml", "luaweave.yml"}

// flagKeys maps flag names to config keys. Flags not listed here are
// command options only and never reach the config.
var flagKeys = map[string]string{
	"ext":              "source_ext",
	"base":             "base",
	"state":            "state_path",
	"jobs":             "jobs",
	"verbose":          "verbose",
	"output":           "output",
	"manifest":         "manifest",
	"jitbit":           "jitbit",
	"continue":         "continue",
	"rawset-globals":   "rawset_globals",
	"debug":            "debug",
	"backend":          "compiler.backend",
	"compiler-command": "compiler.command",
	"trace-tokens":     "trace.tokens",
	"trace-struct":     "trace.struct",
	"trace-output":     "trace.output",
	"debounce":         "watch.debounce",
}

// Package-level config file tracking
var (
	configFileUsed string
	currentConfig  *Config
)

// ResetConfig clears the loader state. Used for testing.
func ResetConfig() {
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]any {
	return map[string]any{
		"source_ext":       DefaultSourceExt,
		"output_name":      DefaultOutputName,
		"state_path":       DefaultStateFile,
		"cache":            true,
		"jobs":             0,
		"verbose":          false,
		"output":           DefaultOutput,
		"manifest":         false,
		"continue":         DefaultContinue,
		"compiler.backend": DefaultBackend,
		"watch.debounce":   DefaultDebounce.String(),
	}
}

// configExistsIn returns the config file in dir, if any.
func configExistsIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a luaweave config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Paths from the config file resolve against the config file's directory;
// paths given as flags resolve against the working directory.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = cfgFile
	if configFileUsed == "" {
		configFileUsed = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment: LUAWEAVE_OUTPUT_NAME -> output_name,
	// LUAWEAVE_TRACE__TOKENS -> trace.tokens
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Explicitly set flags
	flagPaths := map[string]string{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			if f.Name == "no-cache" {
				noCache, _ := flags.GetBool("no-cache")
				return "cache", !noCache
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			if key == "state_path" || key == "base" {
				flagPaths[key] = f.Value.String()
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	if v, ok := flagPaths["state_path"]; ok {
		cfg.StatePath = resolvePathRelativeTo(v, cwd)
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}
	if v, ok := flagPaths["base"]; ok {
		cfg.Base = resolvePathRelativeTo(v, cwd)
	} else {
		cfg.Base = resolvePathRelativeTo(cfg.Base, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last LoadConfig
// call.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

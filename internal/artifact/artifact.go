// Package artifact weaves compiled fragments into a single runnable Lua file.
//
// Assembly concatenates the fragments (in whatever order they arrive),
// splits the text into a statics prelude and a body at the last statics
// sentinel, and substitutes both into a template. Every occurrence of the
// output marker receives the same body.
package artifact

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/luaweave/internal/scheduler"
)

// Template markers.
const (
	// StaticsSentinel separates hoisted statics from module bodies in the
	// concatenated fragment text.
	StaticsSentinel = "--STATICS"
	// StaticsMarker is replaced by the statics prelude.
	StaticsMarker = StaticsSentinel + "\n"
	// OutputMarker is replaced by the module table body, at every occurrence.
	OutputMarker = "§"
	// DebugPlaceholder is replaced, once, by the artifact being instrumented.
	DebugPlaceholder = "--ARTIFACT--"
)

// DefaultTemplate is the built-in base the folder artifact is assembled into.
//
//go:embed base.lua
var DefaultTemplate string

// DebugTemplate wraps an artifact with error reporting and tracebacks.
//
//go:embed debug.lua
var DebugTemplate string

// ErrTemplateNotFound is returned when a custom template cannot be read.
var ErrTemplateNotFound = errors.New("the given custom base was not found")

// LoadTemplate returns the custom template at path, or DefaultTemplate when
// path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	content, err := os.ReadFile(path) //nolint:gosec // G304: user-selected template
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrTemplateNotFound, path, err)
	}
	return string(content), nil
}

// Prelude returns the statics every folder artifact starts with.
func Prelude(jitBit string) string {
	if jitBit == "" {
		return ""
	}
	return fmt.Sprintf("local %s = require(\"bit\");\n", jitBit)
}

// Concatenate joins prelude and fragment entries, with the statics sentinel
// between them. Fragment order is whatever the caller supplies.
func Concatenate(prelude string, fragments []scheduler.Fragment) string {
	var b strings.Builder
	b.WriteString(prelude)
	b.WriteString(StaticsMarker)
	for _, f := range fragments {
		b.WriteString(f.Entry())
	}
	return b.String()
}

// SplitStatics splits text at the last statics sentinel. Text without a
// sentinel has no statics.
func SplitStatics(text string) (statics, body string) {
	i := strings.LastIndex(text, StaticsSentinel)
	if i < 0 {
		return "", text
	}
	return text[:i], text[i+len(StaticsSentinel):]
}

// Render substitutes statics and body into template.
func Render(template, statics, body string) string {
	out := strings.ReplaceAll(template, StaticsMarker, statics)
	return strings.ReplaceAll(out, OutputMarker, body)
}

// Assemble builds the artifact text from fragments.
func Assemble(template, prelude string, fragments []scheduler.Fragment) string {
	statics, body := SplitStatics(Concatenate(prelude, fragments))
	return Render(template, statics, body)
}

// WrapDebug embeds artifact into the debug template.
func WrapDebug(artifact string) string {
	return strings.Replace(DebugTemplate, DebugPlaceholder, artifact, 1)
}

package compile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ContinueMode selects how `continue` statements are lowered.
type ContinueMode string

// Supported continue modes.
const (
	ContinueSimple     ContinueMode = "simple"
	ContinueLuaJIT     ContinueMode = "luajit"
	ContinueMoonScript ContinueMode = "moonscript"
)

// ContinueModes lists every accepted continue mode.
var ContinueModes = []ContinueMode{ContinueSimple, ContinueLuaJIT, ContinueMoonScript}

// ParseContinueMode parses a continue mode name (case-insensitive).
// The empty string selects ContinueSimple.
func ParseContinueMode(s string) (ContinueMode, error) {
	if s == "" {
		return ContinueSimple, nil
	}
	mode := ContinueMode(strings.ToLower(s))
	for _, m := range ContinueModes {
		if m == mode {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown continue mode %q (expected simple, luajit or moonscript)", s)
}

// Options is the immutable configuration shared read-only by every
// compilation of a run.
type Options struct {
	TraceTokens bool // print scanned tokens
	TraceStruct bool // print parsed structure
	TraceOutput bool // print generated code

	// JITBit names the variable bound to LuaJIT's bit library. Empty means
	// native bitwise operators.
	JITBit string

	Continue      ContinueMode
	RawsetGlobals bool // declare globals through rawset
	Debug         bool // emit debug information

	// Version of the tool driving the compilation.
	Version string
}

// Fingerprint returns a stable digest of every option that can change the
// generated code.
func (o Options) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "jitbit=%s\x00continue=%s\x00rawset=%t\x00debug=%t\x00version=%s",
		o.JITBit, o.continueMode(), o.RawsetGlobals, o.Debug, o.Version)
	return hex.EncodeToString(h.Sum(nil))
}

// Environ renders the options as LUAWEAVE_* environment entries for external
// compiler commands.
func (o Options) Environ(name string, scope int) []string {
	return []string{
		"LUAWEAVE_NAME=" + name,
		"LUAWEAVE_SCOPE=" + strconv.Itoa(scope),
		"LUAWEAVE_VERSION=" + o.Version,
		"LUAWEAVE_JITBIT=" + o.JITBit,
		"LUAWEAVE_CONTINUE=" + string(o.continueMode()),
		"LUAWEAVE_RAWSET_GLOBALS=" + boolEnv(o.RawsetGlobals),
		"LUAWEAVE_DEBUG=" + boolEnv(o.Debug),
		"LUAWEAVE_TRACE_TOKENS=" + boolEnv(o.TraceTokens),
		"LUAWEAVE_TRACE_STRUCT=" + boolEnv(o.TraceStruct),
	}
}

func (o Options) continueMode() ContinueMode {
	if o.Continue == "" {
		return ContinueSimple
	}
	return o.Continue
}

func boolEnv(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

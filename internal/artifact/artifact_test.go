package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/luaweave/internal/scheduler"
)

func TestDefaultTemplateHasMarkers(t *testing.T) {
	assert.Equal(t, 1, strings.Count(DefaultTemplate, StaticsMarker))
	assert.GreaterOrEqual(t, strings.Count(DefaultTemplate, OutputMarker), 1)
	assert.Equal(t, 1, strings.Count(DebugTemplate, DebugPlaceholder))
}

func TestPrelude(t *testing.T) {
	assert.Empty(t, Prelude(""))
	assert.Equal(t, "local bit = require(\"bit\");\n", Prelude("bit"))
}

func TestSplitStatics(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantStatics string
		wantBody    string
	}{
		{name: "no sentinel", text: "body", wantStatics: "", wantBody: "body"},
		{name: "prelude only", text: "local bit = 1\n--STATICS\nentries", wantStatics: "local bit = 1\n", wantBody: "\nentries"},
		{name: "splits at last sentinel", text: "a--STATICS\nb--STATICS\nc", wantStatics: "a--STATICS\nb", wantBody: "\nc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statics, body := SplitStatics(tt.text)
			assert.Equal(t, tt.wantStatics, statics)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestAssemble_DefaultTemplate(t *testing.T) {
	frags := []scheduler.Fragment{
		{Name: "main", Code: "print(import(\"util.helpers\").greet())"},
		{Name: "util.helpers", Code: "return { greet = function() return 'hi' end }"},
	}

	out := Assemble(DefaultTemplate, Prelude("bit"), frags)

	assert.True(t, strings.HasPrefix(out, "local bit = require(\"bit\");\n"))
	assert.NotContains(t, out, StaticsSentinel)
	assert.NotContains(t, out, OutputMarker)
	for _, f := range frags {
		assert.Equal(t, 1, strings.Count(out, f.Entry()), "fragment %s", f.Name)
	}
	assert.Contains(t, out, "return import(\"main\")")
}

func TestAssemble_OrderIndependentContent(t *testing.T) {
	a := scheduler.Fragment{Name: "a", Code: "return 1"}
	b := scheduler.Fragment{Name: "b", Code: "return 2"}

	ab := Assemble(DefaultTemplate, "", []scheduler.Fragment{a, b})
	ba := Assemble(DefaultTemplate, "", []scheduler.Fragment{b, a})

	assert.Len(t, ab, len(ba))
	for _, out := range []string{ab, ba} {
		assert.Contains(t, out, a.Entry())
		assert.Contains(t, out, b.Entry())
	}
}

func TestAssemble_OutputMarkerEveryOccurrence(t *testing.T) {
	tpl := "--STATICS\nlocal first = {§}\nlocal second = {§}\n"
	frags := []scheduler.Fragment{{Name: "main", Code: "return 1"}}

	out := Assemble(tpl, "local x = 0\n", frags)

	_, body := SplitStatics(Concatenate("local x = 0\n", frags))
	assert.Equal(t, "local x = 0\nlocal first = {"+body+"}\nlocal second = {"+body+"}\n", out)
	assert.Equal(t, 2, strings.Count(out, frags[0].Entry()))
}

func TestAssemble_TemplateWithoutMarkers(t *testing.T) {
	out := Assemble("print('static only')\n", "", []scheduler.Fragment{{Name: "main", Code: "x"}})
	assert.Equal(t, "print('static only')\n", out)
}

func TestAssemble_StaticsFromFragments(t *testing.T) {
	frags := []scheduler.Fragment{{Name: "main", Code: "local hoisted = 1\n--STATICS\nreturn hoisted"}}
	out := Assemble("--STATICS\nBODY:§", "", frags)

	statics, body := SplitStatics(Concatenate("", frags))
	assert.Equal(t, statics+"BODY:"+body, out)
	assert.True(t, strings.HasPrefix(out, "--STATICS\n\t[\"main\"] = function()\nlocal hoisted = 1\n"))
}

func TestLoadTemplate(t *testing.T) {
	tpl, err := LoadTemplate("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate, tpl)

	path := filepath.Join(t.TempDir(), "base.lua")
	require.NoError(t, os.WriteFile(path, []byte("--STATICS\n§"), 0o644))
	tpl, err = LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "--STATICS\n§", tpl)

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.lua"))
	require.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWrapDebug(t *testing.T) {
	raw := Assemble(DefaultTemplate, "", []scheduler.Fragment{{Name: "main", Code: "print(1)"}})
	wrapped := WrapDebug(raw)

	assert.Equal(t, 1, strings.Count(wrapped, raw))
	assert.NotContains(t, wrapped, DebugPlaceholder)
	assert.True(t, strings.HasPrefix(wrapped, DebugTemplate[:strings.Index(DebugTemplate, DebugPlaceholder)]))
}

func TestWrapDebug_ArtifactContainingPlaceholder(t *testing.T) {
	raw := "print('" + DebugPlaceholder + "')"
	wrapped := WrapDebug(raw)
	assert.Equal(t, 1, strings.Count(wrapped, raw))
}

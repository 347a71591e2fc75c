package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Fragment is one file's generated code, keyed by its qualified name.
type Fragment struct {
	Name     string
	Path     string
	Code     string
	Duration time.Duration
}

// Entry renders the fragment as an entry of the artifact's module table.
func (f Fragment) Entry() string {
	var b strings.Builder
	b.WriteString("\t[\"")
	b.WriteString(luaEscape(f.Name))
	b.WriteString("\"] = function()\n")
	b.WriteString(f.Code)
	b.WriteString("\n\tend,\n")
	return b.String()
}

func luaEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}

// Failure is one file that did not compile.
type Failure struct {
	Name     string
	Path     string
	Err      error
	Duration time.Duration
}

// Result holds every outcome of a run. It is only read after Run returns, so
// it needs no synchronization.
type Result struct {
	// Fragments is an unordered set of successful compilations.
	Fragments []Fragment
	// Failures is an unordered set of failed compilations.
	Failures []Failure
	// Workers is the number of workers the run used.
	Workers int
}

// FailedCount returns the number of files that failed to compile.
func (r *Result) FailedCount() int {
	return len(r.Failures)
}

// Aggregate returns the fragments when every file compiled, and a
// *CompileFailedError otherwise. Partial fragment sets are never returned.
func (r *Result) Aggregate() ([]Fragment, error) {
	if len(r.Failures) == 0 {
		return r.Fragments, nil
	}

	failed := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		failed = append(failed, f.Name)
	}
	sort.Strings(failed)
	return nil, &CompileFailedError{Failed: failed}
}

// CompileFailedError reports the files of a run that failed to compile.
type CompileFailedError struct {
	// Failed holds the qualified names of the failing files, sorted.
	Failed []string
}

// Count returns the number of failed files.
func (e *CompileFailedError) Count() int {
	return len(e.Failed)
}

func (e *CompileFailedError) Error() string {
	if len(e.Failed) == 1 {
		return "1 file failed to compile!"
	}
	return fmt.Sprintf("%d files failed to compile!", len(e.Failed))
}

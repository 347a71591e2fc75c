package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// CommandCompiler runs a shell command for every unit. The source is fed on
// stdin, stdout is the generated code, and a non-zero exit status is a
// compile error carrying stderr. Options are exported as LUAWEAVE_*
// variables.
type CommandCompiler struct {
	command string
	dir     string
	files   []string
}

// NewCommandCompiler validates command and returns a compiler running it from
// dir (the current directory when empty).
func NewCommandCompiler(command, dir string) (*CommandCompiler, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("compiler command is empty")
	}
	file, err := parseCommand(command)
	if err != nil {
		return nil, err
	}
	return &CommandCompiler{command: command, dir: dir, files: commandFiles(file, dir)}, nil
}

// commandFiles resolves the literal words of every call in file that may name
// a file the command runs or reads: the program (through PATH when it has no
// separator) and each argument, relative to dir.
func commandFiles(file *syntax.File, dir string) []string {
	var paths []string
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok {
			return true
		}
		for i, word := range call.Args {
			lit := word.Lit()
			if lit == "" {
				continue
			}
			if i == 0 && !strings.ContainsRune(lit, '/') {
				if p, err := exec.LookPath(lit); err == nil {
					paths = append(paths, p)
				}
				continue
			}
			if !filepath.IsAbs(lit) {
				lit = filepath.Join(dir, lit)
			}
			paths = append(paths, lit)
		}
		return true
	})
	return paths
}

func parseCommand(command string) (*syntax.File, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "compiler")
	if err != nil {
		return nil, fmt.Errorf("invalid compiler command: %w", err)
	}
	return file, nil
}

// ID implements Identifier. Besides the command it covers the size and
// modification time of every existing regular file the command names, so
// editing a compiler script changes the ID.
func (c *CommandCompiler) ID() string {
	var b strings.Builder
	b.WriteString("command:")
	b.WriteString(c.command)
	for _, path := range c.files {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		fmt.Fprintf(&b, "\x00%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())
	}
	return b.String()
}

// Compile implements Compiler.
func (c *CommandCompiler) Compile(ctx context.Context, source, name string, scope int, opts Options) (string, error) {
	// Runners and parsed files are not shared between goroutines.
	file, err := parseCommand(c.command)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	env := append(os.Environ(), opts.Environ(name, scope)...)
	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(strings.NewReader(source), &stdout, &stderr),
	}
	if c.dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(c.dir))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to create shell runner: %w", err)
	}

	if err := runner.Run(ctx, file); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("compiler exited with status %d", status)
			}
			return "", Errorf(name, "%s", msg)
		}
		return "", Errorf(name, "%v", err)
	}

	return strings.TrimRight(stdout.String(), "\r\n"), nil
}

// Package dune drives the dune build tool and its produced binaries as
// subprocesses.
package dune

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout indicates a subprocess was killed because its deadline expired.
var ErrTimeout = errors.New("command timed out")

// CommandRunner abstracts subprocess execution for testability.
// The env slice holds extra KEY=VALUE pairs appended to the inherited
// environment; later entries win over inherited values.
type CommandRunner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) (output string, err error)
}

// ExecRunner executes real commands via os/exec.
type ExecRunner struct{}

// Run executes a command and returns combined stdout/stderr.
// A relative name is evaluated relative to dir.
func (ExecRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = commandEnv(env)

	output, err := cmd.CombinedOutput()
	return string(output), err
}

// Invoker is a reusable client for driving the dune binary.
// It follows the http.Client pattern: create once, use many times.
// Safe for concurrent use.
type Invoker struct {
	// DuneBinary is the path to the dune executable.
	// Defaults to "dune" (found in PATH).
	DuneBinary string

	// BuildTimeout bounds a single dune invocation.
	// Zero means no timeout.
	BuildTimeout time.Duration

	// RunTimeout bounds execution of a built binary.
	// Zero means no timeout.
	RunTimeout time.Duration

	// ExtraEnv holds KEY=VALUE pairs appended to the subprocess
	// environment for every invocation.
	ExtraEnv []string

	// Runner abstracts subprocess execution.
	// Defaults to ExecRunner when nil.
	Runner CommandRunner
}

// NewInvoker creates a new Invoker with default settings.
func NewInvoker() *Invoker {
	return &Invoker{
		DuneBinary: "dune",
	}
}

// Build runs `dune build <targets...>` in dir and returns combined output.
func (inv *Invoker) Build(ctx context.Context, dir string, targets ...string) (string, error) {
	args := append([]string{"build"}, targets...)
	return inv.run(ctx, inv.BuildTimeout, dir, inv.dunePath(), args...)
}

// Clean runs `dune clean` in dir and returns combined output.
func (inv *Invoker) Clean(ctx context.Context, dir string) (string, error) {
	return inv.run(ctx, inv.BuildTimeout, dir, inv.dunePath(), "clean")
}

// Exec runs a built binary from dir and returns combined output.
// binPath is typically a relative path under _build/default.
func (inv *Invoker) Exec(ctx context.Context, dir, binPath string, args ...string) (string, error) {
	return inv.run(ctx, inv.RunTimeout, dir, binPath, args...)
}

// ToolVersion reports the dune binary's version string.
func (inv *Invoker) ToolVersion(ctx context.Context) (string, error) {
	output, err := inv.run(ctx, inv.BuildTimeout, "", inv.dunePath(), "--version")
	if err != nil {
		return "", fmt.Errorf("query dune version: %w", err)
	}
	return strings.TrimSpace(output), nil
}

// OCamlVersion probes the installed OCaml compiler via `ocaml -vnum`.
// The trimmed output is a bare version number such as "5.3.0".
// Satisfies toolchain.VersionProbe.
func (inv *Invoker) OCamlVersion(ctx context.Context) (string, error) {
	output, err := inv.run(ctx, inv.BuildTimeout, "", "ocaml", "-vnum")
	if err != nil {
		return "", fmt.Errorf("query ocaml version: %w", err)
	}
	return strings.TrimSpace(output), nil
}

// run executes a single subprocess with an optional deadline.
// A deadline expiry is reported as ErrTimeout (wrapped); other failures
// pass through with the runner's error. Output is returned in both cases
// so callers can surface build logs on failure.
func (inv *Invoker) run(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (string, error) {
	ctxToUse := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		ctxToUse, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runner := inv.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	output, err := runner.Run(ctxToUse, dir, inv.ExtraEnv, name, args...)
	if err != nil && errors.Is(ctxToUse.Err(), context.DeadlineExceeded) {
		cmdline := name
		if len(args) > 0 {
			cmdline += " " + strings.Join(args, " ")
		}
		return output, fmt.Errorf("%w after %v: %s", ErrTimeout, timeout, cmdline)
	}
	return output, err
}

func (inv *Invoker) dunePath() string {
	if inv.DuneBinary != "" {
		return inv.DuneBinary
	}
	return "dune"
}

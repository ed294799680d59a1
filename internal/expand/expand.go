// Package expand runs the macro-expansion build step that prints the
// expanded crate source, where the embedded binding records live.
package expand

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrEmptyCommand is returned when no expansion command is configured.
var ErrEmptyCommand = errors.New("empty expansion command")

// Runner runs argv in dir and returns its standard output.
type Runner interface {
	Run(ctx context.Context, dir string, argv []string) ([]byte, error)
}

// Error reports a failed expansion command.
type Error struct {
	Argv   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Argv, " "), e.Err)
	if tail := lastLines(e.Stderr, 10); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// Env is appended to the inherited environment.
	Env []string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &Error{Argv: argv, Stderr: stderr.String(), Err: err}
	}
	if stderr.Len() > 0 {
		Logger().Debug("expansion diagnostics", zap.String("stderr", stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Expand runs argv in dir with r and returns the expanded source.
func Expand(ctx context.Context, r Runner, dir string, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	start := time.Now()
	out, err := r.Run(ctx, dir, argv)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, &Error{Argv: argv, Err: errors.New("no output")}
	}
	Logger().Info("expanded crate",
		zap.String("dir", dir),
		zap.Int("bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

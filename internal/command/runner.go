// Package command runs external tools and records what they printed.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Log captures one external command invocation result.
type Log struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Result is a process execution response.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec; the process is killed when ctx ends.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, err
	}

	return result, nil
}

// NewLog pairs an invocation with its result.
func NewLog(name string, args []string, res Result) Log {
	return Log{
		Command:  name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

// Error is a stage-aware failure with optional command context.
type Error struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Log     Log    `json:"commandLog"`
	Err     error  `json:"-"`
}

// Error formats failures for logs and UI.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Log.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.Log.Command,
		e.Log.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

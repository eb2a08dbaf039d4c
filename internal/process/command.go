package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is the outcome of a short-lived command.
type Result struct {
	Code   int
	Stdout string
	Stderr string
	// LaunchErr is set when the command could not be run at all.
	LaunchErr error
}

// OK reports whether the command exited zero.
func (r Result) OK() bool {
	return r.Code == 0
}

// Runner runs a command to completion.
// Implementations never fail: launch errors are folded into the Result.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) Result
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and captures stdout and stderr separately.
// A launch failure is reported as Code 1 with the error text appended to Stderr
// and kept in LaunchErr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) Result {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Code = 0
	case errors.As(err, &exitErr):
		res.Code = exitErr.ExitCode()
	default:
		res.Code = 1
		res.LaunchErr = err
		if res.Stderr != "" && res.Stderr[len(res.Stderr)-1] != '\n' {
			res.Stderr += "\n"
		}
		res.Stderr += err.Error()
	}
	return res
}

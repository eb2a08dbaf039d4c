package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Scanner queries and signals processes system-wide by command-line pattern.
// It is the only way to find players that are not tracked by a handle, such as
// leftovers from a previous run.
type Scanner struct {
	runner Runner
	logger *slog.Logger
}

// NewScanner creates a Scanner. A nil runner uses ExecRunner.
func NewScanner(runner Runner, logger *slog.Logger) *Scanner {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{runner: runner, logger: logger}
}

// IsRunning reports whether any process matches pattern.
func (s *Scanner) IsRunning(ctx context.Context, pattern string) bool {
	res := s.runner.Run(ctx, "pgrep", "-f", pattern)
	running := res.OK() && strings.TrimSpace(res.Stdout) != ""
	s.logger.Debug("Process scan", "pattern", pattern, "running", running, "exit_code", res.Code)
	return running
}

// KillAll signals every process matching pattern: SIGTERM, or SIGKILL when force is set.
// No matching process is not an error.
func (s *Scanner) KillAll(ctx context.Context, pattern string, force bool) error {
	args := []string{"-f", pattern}
	if force {
		args = []string{"-9", "-f", pattern}
	}

	res := s.runner.Run(ctx, "pkill", args...)
	s.logger.Debug("Process kill", "pattern", pattern, "force", force, "exit_code", res.Code)

	if res.LaunchErr != nil {
		return fmt.Errorf("pkill %s: %w", strings.Join(args, " "), res.LaunchErr)
	}
	// pkill: 0 = signalled, 1 = nothing matched.
	if res.Code == 0 || res.Code == 1 {
		return nil
	}
	return fmt.Errorf("pkill %s (exit %d): %s", strings.Join(args, " "), res.Code, strings.TrimSpace(res.Stderr))
}

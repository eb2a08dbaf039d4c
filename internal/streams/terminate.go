package streams

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/process"
)

// Scanner queries and signals processes system-wide by name pattern.
type Scanner interface {
	IsRunning(ctx context.Context, pattern string) bool
	KillAll(ctx context.Context, pattern string, force bool) error
}

// terminator stops tracked handles and sweeps for untracked players.
type terminator struct {
	scanner     Scanner
	pattern     string
	grace       time.Duration
	killTimeout time.Duration
	settle      time.Duration
	publish     func(events.Event)
	logger      *slog.Logger
}

// terminate sends SIGTERM, waits out the grace period and then sends SIGKILL
// regardless of the outcome. Errors are logged, never returned.
func (t *terminator) terminate(ctx context.Context, deviceID string, proc *process.Process) {
	logger := t.logger.With("device_id", deviceID, "pid", proc.PID())

	logger.Info("Sending SIGTERM to player")
	if err := proc.Terminate(); err != nil {
		logger.Warn("Failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(t.grace)
	defer grace.Stop()
	select {
	case <-proc.Done():
	case <-grace.C:
	case <-ctx.Done():
	}

	if err := proc.Kill(); err != nil {
		logger.Warn("Failed to send SIGKILL", "error", err)
	}

	wait := time.NewTimer(t.killTimeout)
	defer wait.Stop()
	select {
	case <-proc.Done():
		logger.Debug("Player exited", "exit_code", proc.ExitCode())
	case <-wait.C:
		logger.Error("Player did not exit after SIGKILL", "timeout", t.killTimeout)
	}
}

// sweep terminates every process matching the player pattern. A failed
// graceful attempt escalates to SIGKILL. With verify set, players still
// matching after the settle delay are killed as well.
func (t *terminator) sweep(ctx context.Context, reason string, verify bool) {
	logger := t.logger.With("pattern", t.pattern, "reason", reason)

	if !t.scanner.IsRunning(ctx, t.pattern) {
		logger.Debug("No matching players found")
		return
	}

	logger.Info("Sweeping matching players")
	forced := false
	if err := t.scanner.KillAll(ctx, t.pattern, false); err != nil {
		logger.Warn("Graceful sweep failed, forcing", "error", err)
		forced = true
	} else if verify {
		sleepCtx(ctx, t.settle)
		forced = t.scanner.IsRunning(ctx, t.pattern)
		if forced {
			logger.Warn("Players survived graceful sweep, forcing")
		}
	}

	if forced {
		if err := t.scanner.KillAll(ctx, t.pattern, true); err != nil {
			logger.Error("Forced sweep failed", "error", err)
		}
	}

	mode := "graceful"
	if forced {
		mode = "forced"
	}
	sweepTotal.WithLabelValues(reason, mode).Inc()
	t.publish(events.SweepEvent{
		Pattern:   t.pattern,
		Forced:    forced,
		Reason:    reason,
		Timestamp: now(),
	})
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

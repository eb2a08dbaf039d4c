package streams

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/smazurov/camview/internal/player"
	"github.com/smazurov/camview/internal/process"
)

// launchRequest identifies one player session.
type launchRequest struct {
	deviceID  string
	streamURL string
	label     string
}

// launcher resolves, prepares and spawns the player launcher script.
type launcher struct {
	resolver     *player.Resolver
	scanner      Scanner
	pattern      string
	settle       time.Duration
	markers      []string
	logger       *slog.Logger
	playerLogger *slog.Logger
}

// launch runs the launch sequence up to and including the spawn. Resolver and
// spawn failures return a *StreamError and leave no process behind.
// sweepOrphans enables killing untracked players before spawning.
func (l *launcher) launch(ctx context.Context, req launchRequest, sweepOrphans bool, onStart func()) (*process.Process, *outputWatcher, error) {
	logger := l.logger.With("device_id", req.deviceID)

	playerPath, err := l.resolver.ResolvePlayer()
	if err != nil {
		return nil, nil, resolveError(req.deviceID, err)
	}

	script, err := l.resolver.ResolveScript()
	if err != nil {
		return nil, nil, resolveError(req.deviceID, err)
	}

	if err := ensureExecutable(script); err != nil {
		logger.Warn("Failed to mark launcher executable, continuing",
			"kind", KindPermissionFixFailed, "script", script, "error", err)
	}

	if sweepOrphans && l.scanner.IsRunning(ctx, l.pattern) {
		logger.Info("Stopping untracked player before launch", "pattern", l.pattern)
		if err := l.scanner.KillAll(ctx, l.pattern, false); err != nil {
			logger.Warn("Failed to stop untracked player", "error", err)
		}
		sweepTotal.WithLabelValues("launch", "graceful").Inc()
		sleepCtx(ctx, l.settle)
	}

	args := []string{req.streamURL, req.label, "--player-path=" + playerPath}
	proc := process.New(req.deviceID, script, args, logger)
	out := newOutputWatcher(l.markers, onStart)
	proc.SetOutputHandler(out)
	proc.SetLogParser(l.playerLogger.With("device_id", req.deviceID), player.ParseLogLevel)

	if err := proc.Start(); err != nil {
		return nil, nil, &StreamError{
			Kind:     KindSpawnFailure,
			DeviceID: req.deviceID,
			Message:  "could not spawn launcher",
			Cause:    err,
		}
	}

	logger.Info("Player launched",
		"pid", proc.PID(), "script", script, "player", playerPath, "url", RedactURL(req.streamURL))
	return proc, out, nil
}

// ensureExecutable adds execute bits to path. It runs on every launch and is idempotent.
func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode&0o111 == 0o111 {
		return nil
	}
	if err := os.Chmod(path, mode|0o111); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

// RedactURL hides the password embedded in a stream URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}

package streams

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/player"
	"github.com/smazurov/camview/internal/process"
)

// Default timings.
const (
	DefaultGracePeriod = 300 * time.Millisecond
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultKillTimeout = 2 * time.Second
)

// ErrDeviceIDRequired is returned by Start for an empty device ID.
var ErrDeviceIDRequired = errors.New("device id is required")

// Publisher receives lifecycle and failure events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event)
}

// StreamProcess is a snapshot of one device's player process.
type StreamProcess struct {
	DeviceID  string
	Label     string
	URL       string
	PID       int
	StartTime time.Time
	State     process.State
}

// entry is the registry's record for a device. It is the sole owner of the
// process handle; the exit watcher only observes it.
type entry struct {
	info     StreamProcess // guarded by Registry.mu
	stopping bool          // guarded by Registry.mu
	handle   *process.Process
	output   *outputWatcher
}

// Options configures a Registry.
type Options struct {
	// Resolver locates the player and launcher (required).
	Resolver *player.Resolver

	// Scanner sweeps for untracked players. Defaults to process.NewScanner.
	Scanner Scanner

	// Publisher receives events (optional).
	Publisher Publisher

	// PlayerPattern matches player processes system-wide.
	// Defaults to the base name of the resolver's player.
	PlayerPattern string

	// StartMarkers are stdout tokens meaning the player started rendering.
	StartMarkers []string

	GracePeriod time.Duration
	SettleDelay time.Duration
	KillTimeout time.Duration

	// Logger for registry operations. Defaults to the "streams" module logger.
	Logger *slog.Logger
	// PlayerLogger receives player output. Defaults to the "player" module logger.
	PlayerLogger *slog.Logger
}

// Registry tracks at most one player process per device.
// Start and Stop for the same device are serialised; different devices
// proceed independently.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	failures map[string]*StreamError

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	cleaningUp atomic.Bool
	cleanupGen atomic.Uint64 // bumped when a cleanup begins

	launcher  *launcher
	term      *terminator
	publisher Publisher
	logger    *slog.Logger
}

// NewRegistry creates a registry. It is meant to be created once by the host
// and shared by every caller.
func NewRegistry(opts *Options) *Registry {
	if opts == nil || opts.Resolver == nil {
		panic("Options with Resolver is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("streams")
	}
	playerLogger := opts.PlayerLogger
	if playerLogger == nil {
		playerLogger = logging.GetLogger("player")
	}
	scanner := opts.Scanner
	if scanner == nil {
		scanner = process.NewScanner(nil, logger)
	}
	pattern := opts.PlayerPattern
	if pattern == "" {
		pattern = defaultPattern(opts.Resolver)
	}

	r := &Registry{
		entries:   make(map[string]*entry),
		failures:  make(map[string]*StreamError),
		locks:     make(map[string]*sync.Mutex),
		publisher: opts.Publisher,
		logger:    logger,
	}

	r.launcher = &launcher{
		resolver:     opts.Resolver,
		scanner:      scanner,
		pattern:      pattern,
		settle:       durationOr(opts.SettleDelay, DefaultSettleDelay),
		markers:      opts.StartMarkers,
		logger:       logger,
		playerLogger: playerLogger,
	}
	r.term = &terminator{
		scanner:     scanner,
		pattern:     pattern,
		grace:       durationOr(opts.GracePeriod, DefaultGracePeriod),
		killTimeout: durationOr(opts.KillTimeout, DefaultKillTimeout),
		settle:      durationOr(opts.SettleDelay, DefaultSettleDelay),
		publish:     r.publish,
		logger:      logger,
	}

	return r
}

// Start launches a player for deviceID, replacing any existing one.
// The returned record is registered in the starting state before the player
// confirms it is rendering, so an immediate Stop always finds it.
// Failures before the spawn are returned as *StreamError; failures after the
// spawn are published as events.StreamFailedEvent.
func (r *Registry) Start(ctx context.Context, deviceID, streamURL, label string) (StreamProcess, error) {
	if deviceID == "" {
		return StreamProcess{}, ErrDeviceIDRequired
	}
	gen := r.cleanupGen.Load()
	if r.cleaningUp.Load() {
		return StreamProcess{}, ErrCleanupInProgress
	}

	lock := r.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	r.stopLocked(ctx, deviceID)

	e := &entry{info: StreamProcess{
		DeviceID: deviceID,
		Label:    label,
		URL:      streamURL,
		State:    process.StateStarting,
	}}

	req := launchRequest{deviceID: deviceID, streamURL: streamURL, label: label}
	proc, out, err := r.launcher.launch(ctx, req, !r.othersTracked(deviceID), func() { r.markRunning(e) })
	if err != nil {
		var se *StreamError
		if errors.As(err, &se) {
			launchTotal.WithLabelValues(string(se.Kind)).Inc()
			r.recordFailure(se)
		}
		return StreamProcess{}, err
	}

	r.mu.Lock()
	// A cleanup that ran while the launch was suspended did not see this
	// player, so it must not be registered.
	if r.cleaningUp.Load() || r.cleanupGen.Load() != gen {
		e.info.State = process.StateStopping
		r.mu.Unlock()
		launchTotal.WithLabelValues("cleanup").Inc()
		r.discard(deviceID, proc)
		return StreamProcess{}, ErrCleanupInProgress
	}
	launchTotal.WithLabelValues("ok").Inc()
	e.handle = proc
	e.output = out
	e.info.PID = proc.PID()
	e.info.StartTime = proc.StartedAt()
	r.entries[deviceID] = e
	delete(r.failures, deviceID)
	activePlayers.Set(float64(len(r.entries)))
	snapshot := e.info
	r.mu.Unlock()

	go r.watchExit(e)

	r.publish(events.StreamStartedEvent{
		DeviceID:  deviceID,
		Label:     label,
		PID:       snapshot.PID,
		Timestamp: now(),
	})
	return snapshot, nil
}

// Stop terminates the device's player and removes it. Unknown devices are a
// no-op. Termination is best-effort; the entry is always removed.
//
// The pattern sweep for untracked players only runs when no other device is
// tracked, so a player that escaped its process group is caught by the last
// Stop or by Cleanup.
func (r *Registry) Stop(ctx context.Context, deviceID string) {
	lock := r.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	r.stopLocked(ctx, deviceID)
}

// stopLocked stops deviceID; the caller holds the device lock.
func (r *Registry) stopLocked(ctx context.Context, deviceID string) {
	r.mu.Lock()
	e, ok := r.entries[deviceID]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.stopping = true
	e.info.State = process.StateStopping
	r.mu.Unlock()

	r.logger.Info("Stopping player", "device_id", deviceID, "pid", e.info.PID)

	defer func() {
		r.remove(e)
		r.publish(events.StreamStoppedEvent{DeviceID: deviceID, Timestamp: now()})
	}()

	r.term.terminate(ctx, deviceID, e.handle)

	// The launcher may have forked the real player outside the tracked
	// handle. Only sweep when no other device could own a matching process.
	if r.othersTracked(deviceID) {
		r.logger.Debug("Skipping sweep, other players are tracked", "device_id", deviceID)
		return
	}
	r.term.sweep(ctx, "stop", false)
}

// Cleanup stops every tracked player, sweeps for untracked ones and empties
// the registry. Overlapping calls return immediately.
func (r *Registry) Cleanup(ctx context.Context) {
	if !r.cleaningUp.CompareAndSwap(false, true) {
		r.logger.Debug("Cleanup already in progress")
		return
	}
	defer r.cleaningUp.Store(false)
	r.cleanupGen.Add(1)

	ids := r.ids()
	r.logger.Info("Cleaning up players", "count", len(ids))

	for _, id := range ids {
		r.stopForCleanup(ctx, id)
	}

	r.term.sweep(ctx, "cleanup", true)

	r.mu.Lock()
	leftovers := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		e.stopping = true
		leftovers = append(leftovers, e)
	}
	clear(r.entries)
	activePlayers.Set(0)
	r.mu.Unlock()

	for _, e := range leftovers {
		r.logger.Warn("Killing player registered during cleanup", "device_id", e.info.DeviceID)
		if err := e.handle.Kill(); err != nil {
			r.logger.Warn("Failed to send SIGKILL", "device_id", e.info.DeviceID, "pid", e.info.PID, "error", err)
		}
	}

	r.logger.Info("Cleanup complete")
}

// discard kills a player that was spawned but never registered and waits for
// its exit.
func (r *Registry) discard(deviceID string, proc *process.Process) {
	r.logger.Warn("Cleanup ran during launch, killing new player", "device_id", deviceID, "pid", proc.PID())
	if err := proc.Kill(); err != nil {
		r.logger.Warn("Failed to send SIGKILL", "device_id", deviceID, "pid", proc.PID(), "error", err)
	}

	wait := time.NewTimer(r.term.killTimeout)
	defer wait.Stop()
	select {
	case <-proc.Done():
	case <-wait.C:
		r.logger.Error("Player did not exit after SIGKILL", "device_id", deviceID, "timeout", r.term.killTimeout)
	}
}

// stopForCleanup stops one device, logging and continuing past a panic so a
// single device cannot abort the whole cleanup.
func (r *Registry) stopForCleanup(ctx context.Context, deviceID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Failed to stop player during cleanup", "device_id", deviceID, "panic", rec)
		}
	}()
	r.Stop(ctx, deviceID)
}

// CleaningUp reports whether Cleanup is running.
func (r *Registry) CleaningUp() bool {
	return r.cleaningUp.Load()
}

// Get returns the record for deviceID.
func (r *Registry) Get(deviceID string) (StreamProcess, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[deviceID]
	if !ok {
		return StreamProcess{}, false
	}
	return e.info, true
}

// State returns the device's state. Untracked devices are idle, or failed
// when their last session ended in a failure.
func (r *Registry) State(deviceID string) process.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[deviceID]; ok {
		return e.info.State
	}
	if _, failed := r.failures[deviceID]; failed {
		return process.StateFailed
	}
	return process.StateIdle
}

// LastFailure returns the most recent failure of deviceID since its last
// successful start, or nil.
func (r *Registry) LastFailure(deviceID string) *StreamError {
	r.mu.Lock()
	defer r.mu.Unlock()
	se, ok := r.failures[deviceID]
	if !ok {
		return nil
	}
	cp := *se
	return &cp
}

// List returns all records ordered by device ID.
func (r *Registry) List() []StreamProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]StreamProcess, 0, len(r.entries))
	for _, e := range r.entries {
		list = append(list, e.info)
	}
	slices.SortFunc(list, func(a, b StreamProcess) int {
		return strings.Compare(a.DeviceID, b.DeviceID)
	})
	return list
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// watchExit removes the entry once its process exits and reports failures of
// players that were not stopped on purpose.
func (r *Registry) watchExit(e *entry) {
	<-e.handle.Done()

	deviceID := e.info.DeviceID
	code := e.handle.ExitCode()

	r.remove(e)

	r.mu.Lock()
	stopping := e.stopping
	r.mu.Unlock()

	if stopping {
		exitTotal.WithLabelValues("stopped").Inc()
		return
	}

	r.logger.Info("Player exited", "device_id", deviceID, "exit_code", code)

	// The failure is recorded first so exit subscribers can read it.
	kind, failed := Classify(code, e.output.diagnostics(), e.output.Started())
	if failed {
		exitTotal.WithLabelValues(string(kind)).Inc()
		r.recordFailure(exitError(deviceID, kind, code, e.output.lastError()))
	} else {
		exitTotal.WithLabelValues("clean").Inc()
	}
	r.publish(events.StreamExitedEvent{DeviceID: deviceID, ExitCode: code, Timestamp: now()})
}

// remove deletes e if it is still the device's current entry. A newer entry
// for the same device is left alone, so removal is idempotent.
func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[e.info.DeviceID]; ok && cur == e {
		delete(r.entries, e.info.DeviceID)
		activePlayers.Set(float64(len(r.entries)))
	}
}

func (r *Registry) markRunning(e *entry) {
	r.mu.Lock()
	if e.info.State != process.StateStarting {
		r.mu.Unlock()
		return
	}
	e.info.State = process.StateRunning
	deviceID := e.info.DeviceID
	r.mu.Unlock()

	r.logger.Info("Player started rendering", "device_id", deviceID)
	r.publish(events.StreamRunningEvent{DeviceID: deviceID, Timestamp: now()})
}

func (r *Registry) recordFailure(se *StreamError) {
	r.mu.Lock()
	r.failures[se.DeviceID] = se
	r.mu.Unlock()

	r.logger.Error("Stream failed",
		"device_id", se.DeviceID, "kind", se.Kind, "exit_code", se.ExitCode, "error", se.Message)
	r.publish(events.StreamFailedEvent{
		DeviceID:    se.DeviceID,
		Kind:        string(se.Kind),
		Message:     se.Message,
		ExitCode:    se.ExitCode,
		Remediation: se.Remediation,
		Timestamp:   now(),
	})
}

func (r *Registry) othersTracked(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.entries {
		if id != deviceID {
			return true
		}
	}
	return false
}

func (r *Registry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) deviceLock(deviceID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[deviceID] = l
	}
	return l
}

func (r *Registry) publish(ev events.Event) {
	if r.publisher != nil {
		r.publisher.Publish(ev)
	}
}

func defaultPattern(res *player.Resolver) string {
	name := res.PlayerName
	if name == "" {
		name = player.DefaultPlayerName
	}
	return filepath.Base(name)
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

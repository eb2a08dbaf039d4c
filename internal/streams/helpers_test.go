package streams

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/player"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeScanner records sweeps instead of touching real processes.
type fakeScanner struct {
	mu       sync.Mutex
	running  bool
	survive  bool // players keep matching after a graceful kill
	killErr  error
	calls    []string
	onKill   func(force bool)
	onScan   func()
	graceful bool
}

func (s *fakeScanner) IsRunning(_ context.Context, _ string) bool {
	s.mu.Lock()
	hook := s.onScan
	s.calls = append(s.calls, "pgrep")
	running := s.running && (!s.graceful || s.survive)
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return running
}

func (s *fakeScanner) setOnScan(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onScan = hook
}

func (s *fakeScanner) KillAll(_ context.Context, _ string, force bool) error {
	s.mu.Lock()
	hook := s.onKill
	if force {
		s.calls = append(s.calls, "pkill -9")
	} else {
		s.calls = append(s.calls, "pkill")
		s.graceful = true
	}
	err := s.killErr
	if force {
		err = nil
	}
	s.mu.Unlock()

	if hook != nil {
		hook(force)
	}
	return err
}

func (s *fakeScanner) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeScanner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.graceful = false
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count(eventType uint32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type() == eventType {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) failures() []events.StreamFailedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.StreamFailedEvent
	for _, ev := range p.events {
		if f, ok := ev.(events.StreamFailedEvent); ok {
			out = append(out, f)
		}
	}
	return out
}

func (p *recordingPublisher) sweeps() []events.SweepEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.SweepEvent
	for _, ev := range p.events {
		if s, ok := ev.(events.SweepEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

// testEnv is a registry wired to a launcher script in a temp directory.
type testEnv struct {
	dir       string
	player    string
	script    string
	scanner   *fakeScanner
	publisher *recordingPublisher
	registry  *Registry
}

// newTestEnv writes body as the launcher script and builds a registry around it.
func newTestEnv(t *testing.T, body string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	playerPath := writePlayer(t, dir, "")
	script := writeScript(t, dir, body, 0o755)
	return newEnv(t, dir, playerPath, script)
}

// newLauncherEnv runs the shipped launcher script against a fake player whose
// shell body is playerBody.
func newLauncherEnv(t *testing.T, playerBody string) *testEnv {
	t.Helper()

	src, err := filepath.Abs(filepath.Join("..", "..", "scripts", player.DefaultScriptName))
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read launcher: %v", err)
	}

	dir := t.TempDir()
	script := filepath.Join(dir, player.DefaultScriptName)
	if err := os.WriteFile(script, data, 0o755); err != nil {
		t.Fatalf("write launcher: %v", err)
	}
	playerPath := writePlayer(t, dir, playerBody)
	return newEnv(t, dir, playerPath, script)
}

func newEnv(t *testing.T, dir, playerPath, script string) *testEnv {
	t.Helper()

	env := &testEnv{
		dir:       dir,
		player:    playerPath,
		script:    script,
		scanner:   &fakeScanner{},
		publisher: &recordingPublisher{},
	}
	env.registry = NewRegistry(&Options{
		Resolver: &player.Resolver{
			ScriptName: player.DefaultScriptName,
			ScriptDirs: []string{dir},
			PlayerName: playerPath,
		},
		Scanner:      env.scanner,
		Publisher:    env.publisher,
		GracePeriod:  100 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
		KillTimeout:  2 * time.Second,
		Logger:       testLogger(),
		PlayerLogger: testLogger(),
	})
	t.Cleanup(func() { env.registry.Cleanup(context.Background()) })
	return env
}

func writePlayer(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fakeplayer")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write player: %v", err)
	}
	return path
}

func writeScript(t *testing.T, dir, body string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, player.DefaultScriptName)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), mode); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("chmod script: %v", err)
	}
	return path
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

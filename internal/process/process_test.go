package process

import (
	"bufio"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingHandler struct {
	mu    sync.Mutex
	lines map[string][]string
}

func (h *recordingHandler) HandleLine(source, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lines == nil {
		h.lines = make(map[string][]string)
	}
	h.lines[source] = append(h.lines[source], line)
}

func (h *recordingHandler) get(source string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines[source]...)
}

func newShellProcess(script string) *Process {
	return New("test", "sh", []string{"-c", script}, testLogger())
}

// waitDone waits for the process to exit, fails test on timeout.
func waitDone(t *testing.T, p *Process, timeout time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestProcessCapturesOutputAndExitCode(t *testing.T) {
	h := &recordingHandler{}
	p := newShellProcess(`echo hello; echo oops >&2; exit 3`)
	p.SetOutputHandler(h)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if p.PID() == 0 {
		t.Error("expected PID after start")
	}

	waitDone(t, p, 2*time.Second)

	if code := p.ExitCode(); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	if got := h.get("stdout"); len(got) != 1 || got[0] != "hello" {
		t.Errorf("unexpected stdout lines: %v", got)
	}
	if got := h.get("stderr"); len(got) != 1 || got[0] != "oops" {
		t.Errorf("unexpected stderr lines: %v", got)
	}
}

func TestProcessStartTwice(t *testing.T) {
	p := newShellProcess(`exit 0`)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer waitDone(t, p, 2*time.Second)

	if err := p.Start(); err == nil {
		t.Error("expected error on second Start")
	}
}

func TestProcessStartMissingBinary(t *testing.T) {
	p := New("test", "/nonexistent/camview-launcher", nil, testLogger())
	if err := p.Start(); err == nil {
		t.Fatal("expected spawn error for missing binary")
	}
	if p.PID() != 0 {
		t.Error("expected no PID for failed spawn")
	}
}

func TestProcessTerminate(t *testing.T) {
	p := newShellProcess(`trap 'exit 0' TERM; while :; do sleep 0.05; done`)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)
}

func TestProcessKillIgnoringTerm(t *testing.T) {
	p := newShellProcess(`trap '' TERM; sleep 10`)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	_ = p.Terminate()

	select {
	case <-p.Done():
		t.Fatal("process should have ignored SIGTERM")
	case <-time.After(150 * time.Millisecond):
	}

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	if code := p.ExitCode(); code != -1 {
		t.Errorf("expected exit code -1 for signalled process, got %d", code)
	}
}

func TestProcessKillReachesForkedChildren(t *testing.T) {
	// The launcher forks a child that holds stdout open; Done only closes once
	// the whole group is gone.
	p := newShellProcess(`sleep 10 & wait`)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	deadline := time.Now().Add(time.Second)
	for syscall.Kill(-p.PID(), 0) == nil {
		if time.Now().After(deadline) {
			t.Fatal("process group still exists after kill")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestProcessSignalAfterExitIsNoop(t *testing.T) {
	p := newShellProcess(`exit 0`)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	if err := p.Terminate(); err != nil {
		t.Errorf("Terminate after exit: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Errorf("Kill after exit: %v", err)
	}
	if !p.Exited() {
		t.Error("expected Exited to be true")
	}
}

func TestProcessSignalBeforeStart(t *testing.T) {
	p := newShellProcess(`exit 0`)
	if err := p.Kill(); err != ErrNotStarted {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestProcessLogParser(t *testing.T) {
	var levels []string
	var mu sync.Mutex
	p := newShellProcess(`echo "[error] boom"; echo plain`)
	p.SetLogParser(testLogger(), func(line string) (string, string) {
		mu.Lock()
		defer mu.Unlock()
		if strings.HasPrefix(line, "[error] ") {
			levels = append(levels, "error")
			return "error", strings.TrimPrefix(line, "[error] ")
		}
		levels = append(levels, "info")
		return "info", line
	})

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(levels) != 2 || levels[0] != "error" || levels[1] != "info" {
		t.Errorf("unexpected parsed levels: %v", levels)
	}
}

func TestScanLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"carriage return", "frame=1\rframe=2\rframe=3", []string{"frame=1", "frame=2", "frame=3"}},
		{"mixed", "opening\nframe=1\rframe=2\r\ndone", []string{"opening", "frame=1", "frame=2", "done"}},
		{"trailing cr", "a\r", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(scanLines)
			var got []string
			for scanner.Scan() {
				got = append(got, scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("lines = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessCarriageReturnStatusDoesNotBlock(t *testing.T) {
	h := &recordingHandler{}
	// About 200KB of status updates with no newline, like ffplay's progress line.
	p := newShellProcess(`i=0
while [ $i -lt 4000 ]; do
	printf 'frame=%05d fps=25 q=28.0 size=1024kB time=00:00:01.00\r' $i >&2
	i=$((i+1))
done
echo finished`)
	p.SetOutputHandler(h)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 10*time.Second)

	if got := h.get("stderr"); len(got) != 4000 {
		t.Errorf("expected 4000 status lines, got %d", len(got))
	}
	if got := h.get("stdout"); len(got) != 1 || got[0] != "finished" {
		t.Errorf("unexpected stdout lines: %v", got)
	}
}

func TestProcessOverlongLineIsDrained(t *testing.T) {
	h := &recordingHandler{}
	// A single 400KB line exceeds the line limit; the child must still finish.
	p := newShellProcess(`dd if=/dev/zero bs=1000 count=400 2>/dev/null | tr '\0' x >&2; echo finished`)
	p.SetOutputHandler(h)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 10*time.Second)

	if code := p.ExitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if got := h.get("stdout"); len(got) != 1 || got[0] != "finished" {
		t.Errorf("unexpected stdout lines: %v", got)
	}
}

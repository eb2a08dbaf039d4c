package process

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// OutputHandler receives output lines from the subprocess.
// Implementations can detect readiness markers, keep a tail for diagnostics, etc.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from player output (ffmpeg, mpv, etc.)
type LogParser func(line string) (level, msg string)

// ErrNotStarted is returned when signalling a process that was never spawned.
var ErrNotStarted = errors.New("process not started")

// Process is a detached subprocess handle.
//
// The child runs in its own session so it survives independently of the
// caller's terminal and can be signalled as a group. Signal and Kill are
// no-ops once the exit has been observed, so a stale PID is never reused.
type Process struct {
	id            string
	path          string
	args          []string
	cmd           *exec.Cmd
	logger        *slog.Logger
	processLogger *slog.Logger // logger for process output (nil = use logger)
	logParser     LogParser
	outputHandler OutputHandler

	startedAt time.Time
	done      chan struct{}
	exitCode  int
	exitErr   error
	mu        sync.Mutex
}

// New creates a process handle for path with args. Nothing is spawned until Start.
func New(id, path string, args []string, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		id:     id,
		path:   path,
		args:   args,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// SetOutputHandler sets the handler that receives each stdout/stderr line.
func (p *Process) SetOutputHandler(h OutputHandler) {
	p.outputHandler = h
}

// SetLogParser sets a custom logger and log parser for process output.
func (p *Process) SetLogParser(logger *slog.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// Start spawns the subprocess and returns once the OS has created it.
// Output is streamed and the exit is observed in background goroutines.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process %s already started", p.id)
	}

	cmd := exec.Command(p.path, p.args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	p.cmd = cmd
	p.startedAt = time.Now()
	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "path", p.path)

	var outputs sync.WaitGroup
	outputs.Add(2)
	go func() {
		defer outputs.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer outputs.Done()
		p.streamOutput(stderr, "stderr")
	}()

	go func() {
		// Drain output before Wait so no trailing stderr line is lost to classification.
		outputs.Wait()
		waitErr := cmd.Wait()

		p.mu.Lock()
		p.exitErr = waitErr
		p.exitCode = exitCodeFromError(waitErr)
		p.mu.Unlock()

		p.logger.Info("Process exited", "id", p.id, "pid", cmd.Process.Pid, "exit_code", p.ExitCode())
		close(p.done)
	}()

	return nil
}

// PID returns the spawn-time process ID, or 0 if not started.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// StartedAt returns the spawn time.
func (p *Process) StartedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startedAt
}

// Done is closed once the process has exited and its output is drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the exit has been observed.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code. Only meaningful after Done is closed.
// A process terminated by a signal reports -1.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Terminate sends SIGTERM to the process group.
func (p *Process) Terminate() error {
	return p.signalGroup(syscall.SIGTERM)
}

// Kill sends SIGKILL to the process group.
func (p *Process) Kill() error {
	return p.signalGroup(syscall.SIGKILL)
}

// signalGroup signals the whole session so children forked by a launcher
// script receive the signal too. Already-exited processes are not an error.
func (p *Process) signalGroup(sig syscall.Signal) error {
	pid := p.PID()
	if pid == 0 {
		return ErrNotStarted
	}
	if p.Exited() {
		return nil
	}

	err := syscall.Kill(-pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}

	// Fall back to the leader alone if the group could not be signalled.
	p.logger.Debug("Group signal failed, signalling leader", "pid", pid, "signal", sig.String(), "error", err)
	p.mu.Lock()
	proc := p.cmd.Process
	p.mu.Unlock()
	if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// maxLineSize caps a single output line. Longer lines end line reading but the
// pipe keeps being drained.
const maxLineSize = 256 * 1024

// scanLines splits on \n, \r\n and a bare \r. Players such as ffplay redraw
// their status line with \r and rarely print a newline.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// Need one more byte to tell \r\n from a bare \r.
		if i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		if i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// streamOutput streams output from the subprocess.
// Uses the configured processLogger (or falls back to the default logger).
// The reader is always drained to EOF so the child never blocks on a full pipe.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}
	logger = logger.With("id", p.id, "source", source)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error", "panic":
			logger.Error(msg)
		case "warning", "warn":
			logger.Warn(msg)
		case "debug", "trace", "verbose":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		if !errors.Is(err, os.ErrClosed) {
			p.logger.Warn("Error reading output, discarding the rest", "source", source, "error", err)
		}
		_, _ = io.Copy(io.Discard, reader)
	}
}

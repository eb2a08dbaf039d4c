package streams

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/smazurov/camview/internal/process"
)

// DefaultStartMarkers are stdout tokens that mean the player began rendering.
// The launcher prints STREAM_STARTED through the player once playback starts.
var DefaultStartMarkers = []string{"STREAM_STARTED"}

const outputTailLines = 64

// outputWatcher observes a player's output: it detects the start marker and
// keeps the tail of stderr and stdout for failure classification.
type outputWatcher struct {
	markers []string
	stdout  *process.LineRing
	stderr  *process.LineRing
	started atomic.Bool
	once    sync.Once
	onStart func()
}

func newOutputWatcher(markers []string, onStart func()) *outputWatcher {
	if len(markers) == 0 {
		markers = DefaultStartMarkers
	}
	return &outputWatcher{
		markers: markers,
		stdout:  process.NewLineRing(outputTailLines),
		stderr:  process.NewLineRing(outputTailLines),
		onStart: onStart,
	}
}

// HandleLine implements process.OutputHandler.
func (w *outputWatcher) HandleLine(source, line string) {
	if source == "stderr" {
		w.stderr.Add(line)
		return
	}

	w.stdout.Add(line)
	if w.started.Load() {
		return
	}
	for _, m := range w.markers {
		if strings.Contains(line, m) {
			w.started.Store(true)
			if w.onStart != nil {
				w.once.Do(w.onStart)
			}
			return
		}
	}
}

// Started reports whether a start marker was seen.
func (w *outputWatcher) Started() bool {
	return w.started.Load()
}

// diagnostics returns the captured text used for classification, stderr first.
func (w *outputWatcher) diagnostics() string {
	return strings.TrimSpace(w.stderr.String() + "\n" + w.stdout.String())
}

// lastError returns the most relevant single line for a failure message.
func (w *outputWatcher) lastError() string {
	if s := w.stderr.String(); s != "" {
		return lastLine(s)
	}
	return lastLine(w.stdout.String())
}

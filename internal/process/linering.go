package process

import (
	"strings"
	"sync"
)

// LineRing keeps the most recent output lines of a subprocess.
type LineRing struct {
	lines []string
	size  int
	head  int
	count int
	mu    sync.RWMutex
}

// NewLineRing creates a ring holding up to size lines.
func NewLineRing(size int) *LineRing {
	if size < 1 {
		size = 64
	}
	return &LineRing{
		lines: make([]string, size),
		size:  size,
	}
}

// Add appends a line, overwriting the oldest one when full. Blank lines are dropped.
func (r *LineRing) Add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines[r.head] = line
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// Lines returns the retained lines in chronological order.
func (r *LineRing) Lines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	result := make([]string, r.count)
	if r.count < r.size {
		copy(result, r.lines[:r.count])
		return result
	}

	n := copy(result, r.lines[r.head:])
	copy(result[n:], r.lines[:r.head])
	return result
}

// String joins the retained lines with newlines.
func (r *LineRing) String() string {
	return strings.Join(r.Lines(), "\n")
}

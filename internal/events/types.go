package events

// Event type constants for kelindar/event.
const (
	TypeStreamStarted uint32 = iota + 1
	TypeStreamRunning
	TypeStreamStopped
	TypeStreamExited
	TypeStreamFailed
	TypeSweep
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStartedEvent is published once a player process has been spawned and
// registered. The player may not be rendering yet.
type StreamStartedEvent struct {
	DeviceID  string `json:"device_id" example:"cam-1" doc:"Device identifier"`
	Label     string `json:"label" example:"Front door" doc:"Camera label"`
	PID       int    `json:"pid" example:"4242" doc:"Launcher process ID"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStartedEvent.
func (e StreamStartedEvent) Type() uint32 { return TypeStreamStarted }

// StreamRunningEvent is published when the player reports it started rendering.
type StreamRunningEvent struct {
	DeviceID  string `json:"device_id" example:"cam-1" doc:"Device identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamRunningEvent.
func (e StreamRunningEvent) Type() uint32 { return TypeStreamRunning }

// StreamStoppedEvent is published after an explicit stop removed the device.
type StreamStoppedEvent struct {
	DeviceID  string `json:"device_id" example:"cam-1" doc:"Device identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStoppedEvent.
func (e StreamStoppedEvent) Type() uint32 { return TypeStreamStopped }

// StreamExitedEvent is published when a player process exits on its own.
type StreamExitedEvent struct {
	DeviceID  string `json:"device_id" example:"cam-1" doc:"Device identifier"`
	ExitCode  int    `json:"exit_code" example:"0" doc:"Process exit code, -1 if signalled"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamExitedEvent.
func (e StreamExitedEvent) Type() uint32 { return TypeStreamExited }

// StreamFailedEvent carries a failure classification for one device.
// Rendering it for users is left to the consumer.
type StreamFailedEvent struct {
	DeviceID    string `json:"device_id" example:"cam-1" doc:"Device identifier"`
	Kind        string `json:"kind" example:"ConnectionError" doc:"Failure classification"`
	Message     string `json:"message" example:"connection refused" doc:"Short diagnostic"`
	ExitCode    int    `json:"exit_code,omitempty" example:"1" doc:"Exit code for post-spawn failures"`
	Remediation string `json:"remediation,omitempty" example:"install-player" doc:"Suggested remediation action"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamFailedEvent.
func (e StreamFailedEvent) Type() uint32 { return TypeStreamFailed }

// SweepEvent is published when a pattern sweep found and signalled processes.
type SweepEvent struct {
	Pattern   string `json:"pattern" example:"mpv" doc:"Process name pattern"`
	Forced    bool   `json:"forced" example:"false" doc:"Whether SIGKILL was needed"`
	Reason    string `json:"reason" example:"cleanup" doc:"What triggered the sweep"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SweepEvent.
func (e SweepEvent) Type() uint32 { return TypeSweep }

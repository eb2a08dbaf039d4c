package process

// State represents the lifecycle state of a supervised player.
type State string

// Player states.
const (
	StateIdle     State = "idle"     // No process
	StateStarting State = "starting" // Spawned, no start marker seen yet
	StateRunning  State = "running"  // Start marker observed
	StateStopping State = "stopping" // Termination in progress
	StateFailed   State = "failed"   // Exited non-zero before starting
)

// Active reports whether a process exists in this state.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

package process

import "time"

// State represents the lifecycle state of a spawned worker process.
type State string

// Process states.
const (
	StateRunning State = "running" // Spawned, not yet reaped
	StateExited  State = "exited"  // Reaped
)

// Info contains information about a spawned worker process.
type Info struct {
	ID         string
	State      State
	PID        int
	StartedAt  time.Time
	Referenced bool
	ExitCode   int
	LastError  error
}

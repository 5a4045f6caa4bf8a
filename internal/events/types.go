package events

// Event type constants for kelindar/event.
const (
	TypeProcessSpawned uint32 = iota + 1
	TypeProcessPrepared
	TypeProcessAssigned
	TypePreparedDestroyed
	TypeProcessExited
	TypeProcessDestroyed
	TypePoolStats
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcessSpawnedEvent is published after a worker process has been started
// and its channel bound.
type ProcessSpawnedEvent struct {
	ProcessID string `json:"process_id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	PID       int    `json:"pid" example:"4242" doc:"Operating system process id"`
	Strategy  string `json:"strategy" example:"direct" doc:"Spawn strategy: direct or cluster"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessSpawnedEvent.
func (e ProcessSpawnedEvent) Type() uint32 { return TypeProcessSpawned }

// ProcessPreparedEvent is published when a spawned process enters the
// prepared pool.
type ProcessPreparedEvent struct {
	ProcessID string `json:"process_id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	Prepared  int    `json:"prepared" example:"3" doc:"Pool size after the addition"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessPreparedEvent.
func (e ProcessPreparedEvent) Type() uint32 { return TypeProcessPrepared }

// ProcessAssignedEvent is published for every successful assignment.
type ProcessAssignedEvent struct {
	ProcessID string `json:"process_id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	ClientID  string `json:"client_id" example:"0b5c5a5e-5d2e-4d43-9c1f-0f6a1a8c6f9e" doc:"Client identifier"`
	Mode      string `json:"mode" example:"pooled" doc:"Assignment mode: pooled, spawned, shared or round_robin"`
	Dedicated bool   `json:"dedicated" example:"false" doc:"Whether the process is owned by this client alone"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessAssignedEvent.
func (e ProcessAssignedEvent) Type() uint32 { return TypeProcessAssigned }

// PreparedDestroyedEvent is published when the prepared pool is drained.
type PreparedDestroyedEvent struct {
	Count     int    `json:"count" example:"3" doc:"Number of prepared processes terminated"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreparedDestroyedEvent.
func (e PreparedDestroyedEvent) Type() uint32 { return TypePreparedDestroyed }

// ProcessExitedEvent is published when a worker process terminates.
type ProcessExitedEvent struct {
	ProcessID string `json:"process_id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	PID       int    `json:"pid" example:"4242" doc:"Operating system process id"`
	Error     string `json:"error,omitempty" example:"exit status 1" doc:"Exit error, empty on clean exit"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessExitedEvent.
func (e ProcessExitedEvent) Type() uint32 { return TypeProcessExited }

// ProcessDestroyedEvent is published when an assigned process is torn down
// on request.
type ProcessDestroyedEvent struct {
	ProcessID string   `json:"process_id" example:"rworker:process:1:1761000000000" doc:"Worker process identifier"`
	Clients   []string `json:"clients" doc:"Clients that were bound to the process"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessDestroyedEvent.
func (e ProcessDestroyedEvent) Type() uint32 { return TypeProcessDestroyed }

// PoolStatsEvent is a periodic snapshot of pool occupancy.
type PoolStatsEvent struct {
	EventType string `json:"type" example:"pool_stats" doc:"Event type"`
	Prepared  string `json:"prepared" example:"3" doc:"Prepared processes"`
	Processes string `json:"processes" example:"2" doc:"Assigned processes"`
	Clients   string `json:"clients" example:"5" doc:"Bound clients"`
	Spawned   string `json:"spawned" example:"12" doc:"Processes started since boot"`
	Exited    string `json:"exited" example:"7" doc:"Processes exited since boot"`
}

// Type returns the event type identifier for PoolStatsEvent.
func (e PoolStatsEvent) Type() uint32 { return TypePoolStats }

// Package metrics provides Prometheus metrics for the worker pool.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolPrepared = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rworker",
		Subsystem: "pool",
		Name:      "prepared",
		Help:      "Prepared processes waiting for a client",
	})

	poolProcesses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rworker",
		Subsystem: "pool",
		Name:      "processes",
		Help:      "Processes assigned to at least one client",
	})

	poolClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rworker",
		Subsystem: "pool",
		Name:      "clients",
		Help:      "Clients bound to a process",
	})

	poolSpawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rworker",
		Subsystem: "pool",
		Name:      "spawned_total",
		Help:      "Worker processes started",
	}, []string{"strategy"})

	poolSpawnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rworker",
		Subsystem: "pool",
		Name:      "spawn_failures_total",
		Help:      "Worker processes that failed to start",
	}, []string{"strategy"})

	poolExited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rworker",
		Subsystem: "pool",
		Name:      "exited_total",
		Help:      "Worker processes that terminated",
	})

	poolAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rworker",
		Subsystem: "pool",
		Name:      "assignments_total",
		Help:      "Successful client assignments by mode",
	}, []string{"mode"})

	poolAssignmentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rworker",
		Subsystem: "pool",
		Name:      "assignment_errors_total",
		Help:      "Failed client assignments by error code",
	}, []string{"code"})

	// Local cache for SSE exporter access.
	snapshot   PoolSnapshot
	snapshotMu sync.RWMutex
)

// PoolSnapshot holds the current pool values.
type PoolSnapshot struct {
	Prepared  int
	Processes int
	Clients   int
	Spawned   uint64
	Exited    uint64
}

// SetPoolSize records the current pool occupancy.
func SetPoolSize(prepared, processes, clients int) {
	poolPrepared.Set(float64(prepared))
	poolProcesses.Set(float64(processes))
	poolClients.Set(float64(clients))

	snapshotMu.Lock()
	snapshot.Prepared = prepared
	snapshot.Processes = processes
	snapshot.Clients = clients
	snapshotMu.Unlock()
}

// IncSpawned counts a started process.
func IncSpawned(strategy string) {
	poolSpawned.WithLabelValues(strategy).Inc()
	snapshotMu.Lock()
	snapshot.Spawned++
	snapshotMu.Unlock()
}

// IncSpawnFailure counts a process that could not be started.
func IncSpawnFailure(strategy string) {
	poolSpawnFailures.WithLabelValues(strategy).Inc()
}

// IncExited counts a terminated process.
func IncExited() {
	poolExited.Inc()
	snapshotMu.Lock()
	snapshot.Exited++
	snapshotMu.Unlock()
}

// IncAssignment counts a successful assignment.
func IncAssignment(mode string) {
	poolAssignments.WithLabelValues(mode).Inc()
}

// IncAssignmentError counts a failed assignment.
func IncAssignmentError(code string) {
	poolAssignmentErrors.WithLabelValues(code).Inc()
}

// GetPoolSnapshot returns the current pool values.
func GetPoolSnapshot() PoolSnapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

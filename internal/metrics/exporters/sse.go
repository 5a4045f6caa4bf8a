package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/rworker/internal/events"
	"github.com/smazurov/rworker/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes pool statistics as events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu   sync.Mutex
	last metrics.PoolSnapshot
	sent bool
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

// publishMetrics skips unchanged snapshots after the first one.
func (s *SSEExporter) publishMetrics() {
	snap := metrics.GetPoolSnapshot()

	s.mu.Lock()
	if s.sent && snap == s.last {
		s.mu.Unlock()
		return
	}
	s.last = snap
	s.sent = true
	s.mu.Unlock()

	s.eventBus.Publish(poolStats(snap))
}

// PoolStats returns the current pool statistics as an event.
func PoolStats() events.PoolStatsEvent {
	return poolStats(metrics.GetPoolSnapshot())
}

func poolStats(snap metrics.PoolSnapshot) events.PoolStatsEvent {
	return events.PoolStatsEvent{
		EventType: "pool_stats",
		Prepared:  strconv.Itoa(snap.Prepared),
		Processes: strconv.Itoa(snap.Processes),
		Clients:   strconv.Itoa(snap.Clients),
		Spawned:   strconv.FormatUint(snap.Spawned, 10),
		Exited:    strconv.FormatUint(snap.Exited, 10),
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"pool-stats": events.PoolStatsEvent{},
	}
}

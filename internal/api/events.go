package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/rworker/internal/events"
	"github.com/smazurov/rworker/internal/metrics/exporters"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of worker lifecycle events and pool statistics",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func() map[string]any {
		eventTypes := map[string]any{
			"process-spawned":    events.ProcessSpawnedEvent{},
			"process-prepared":   events.ProcessPreparedEvent{},
			"process-assigned":   events.ProcessAssignedEvent{},
			"prepared-destroyed": events.PreparedDestroyedEvent{},
			"process-exited":     events.ProcessExitedEvent{},
			"process-destroyed":  events.ProcessDestroyedEvent{},
		}

		maps.Copy(eventTypes, exporters.GetEventTypes())

		return eventTypes
	}(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribeAll := s.eventBus.SubscribeAll(eventCh)
		defer unsubscribeAll()
		unsubscribeStats := events.SubscribeToChannel[events.PoolStatsEvent](s.eventBus, eventCh)
		defer unsubscribeStats()

		// Initial snapshot so clients render without waiting for the exporter
		if err := send.Data(exporters.PoolStats()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

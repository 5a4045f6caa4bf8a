// Package exporters exposes the pool metrics over HTTP and the event bus.
package exporters

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/rworker/internal/logging"
)

// HTTPHandler serves every metric in the default registry, OpenMetrics
// included. Collection errors are logged and the remaining metrics served.
func HTTPHandler() http.Handler {
	return HandlerFor(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// HandlerFor serves gatherer and counts scrapes in reg.
func HandlerFor(reg prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	errorLog := slog.NewLogLogger(logging.GetLogger("metrics").Handler(), slog.LevelWarn)

	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:          errorLog,
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
}

// ABOUTME: Prometheus metrics surface for the dashboard's event intake.
// ABOUTME: Gauges read the store's counters on scrape; nothing is double-counted.
package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler registers gauge functions over the store's intake counters
// on a private registry, so tests can build multiple servers without
// colliding on the default registry.
func (s *Server) metricsHandler() http.Handler {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "scoutgui_step_events_applied_total",
		Help: "Pipeline step events applied to the task arena.",
	}, func() float64 { return float64(s.store.Stats().EventsApplied) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "scoutgui_step_records_dropped_total",
		Help: "Step records dropped for missing task or thought IDs.",
	}, func() float64 { return float64(s.store.Stats().RecordsDropped) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "scoutgui_stream_frames_failed_total",
		Help: "Stream frames discarded because their payload failed to parse.",
	}, func() float64 { return float64(s.store.Stats().FramesFailed) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "scoutgui_history_poll_errors_total",
		Help: "History polls that failed and were skipped.",
	}, func() float64 { return float64(s.store.Stats().PollErrors) }))

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

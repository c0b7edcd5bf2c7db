// Package metrics collects batch-job counters on a private Prometheus
// registry and writes them in the textfile collector format when a run ends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rollcorr"

// Metrics groups the collectors used by a single command invocation.
// All record methods are safe to call on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	fetchRequests  *prometheus.CounterVec
	fetchRetries   prometheus.Counter
	fetchRows      prometheus.Counter
	playersTotal   *prometheus.CounterVec
	observations   prometheus.Counter
	playerDuration prometheus.Histogram
	windows        prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Statcast range requests by result (ok, error, cached, empty).",
		}, []string{"result"}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Statcast request attempts that were retried.",
		}),
		fetchRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "rows_total",
			Help:      "Event rows appended to the dataset.",
		}),
		playersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rolling",
			Name:      "players_total",
			Help:      "Players seen by the aggregator, by status (processed, skipped).",
		}, []string{"status"}),
		observations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rolling",
			Name:      "observations_total",
			Help:      "Complete rolling observations produced.",
		}),
		playerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rolling",
			Name:      "player_duration_seconds",
			Help:      "Time to generate all windows for one player.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		windows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "correlate",
			Name:      "windows",
			Help:      "Window sizes in the last correlation table.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the command last completed successfully.",
		}),
	}
	m.Registry.MustRegister(
		m.fetchRequests, m.fetchRetries, m.fetchRows,
		m.playersTotal, m.observations, m.playerDuration,
		m.windows, m.lastSuccess,
	)
	return m
}

// FetchResult counts one range request outcome.
func (m *Metrics) FetchResult(result string) {
	if m == nil {
		return
	}
	m.fetchRequests.WithLabelValues(result).Inc()
}

// FetchRetry counts one retried attempt.
func (m *Metrics) FetchRetry() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

// FetchRows adds appended dataset rows.
func (m *Metrics) FetchRows(n int) {
	if m == nil {
		return
	}
	m.fetchRows.Add(float64(n))
}

// PlayerSkipped counts a player below the minimum timeline length.
func (m *Metrics) PlayerSkipped() {
	if m == nil {
		return
	}
	m.playersTotal.WithLabelValues("skipped").Inc()
}

// PlayerDone records one processed player.
func (m *Metrics) PlayerDone(d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.playersTotal.WithLabelValues("processed").Inc()
	m.observations.Add(float64(rows))
	m.playerDuration.Observe(d.Seconds())
}

// Windows sets the number of rows in the correlation table.
func (m *Metrics) Windows(n int) {
	if m == nil {
		return
	}
	m.windows.Set(float64(n))
}

// WriteTextfile marks the run successful and writes all metrics to path.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	m.lastSuccess.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.Registry)
}

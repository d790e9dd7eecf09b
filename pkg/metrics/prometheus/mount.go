package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/mountkeep/pkg/metrics"
)

// mountMetrics is the Prometheus implementation of metrics.MountMetrics.
type mountMetrics struct {
	attempts      *prometheus.CounterVec
	failures      *prometheus.CounterVec
	mountedShares prometheus.Gauge
	sweepRemovals *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
}

// NewMountMetrics creates a new Prometheus-backed MountMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewMountMetrics() metrics.MountMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &mountMetrics{
		attempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mountkeep_mount_attempts_total",
				Help: "Total number of mount attempts by trigger",
			},
			[]string{"trigger"}, // "user", "automatic", "network", "config"
		),
		failures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mountkeep_mount_failures_total",
				Help: "Total number of failed mount attempts by error kind",
			},
			[]string{"kind"},
		),
		mountedShares: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "mountkeep_mounted_shares",
				Help: "Number of shares currently mounted",
			},
		),
		sweepRemovals: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mountkeep_sweep_removals_total",
				Help: "Total number of cleanup sweep removals by kind",
			},
			[]string{"kind"}, // "directory", "junk_file", "stray_mount"
		),
		batchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mountkeep_reconcile_batch_duration_seconds",
				Help: "Duration of reconcile batches in seconds",
				Buckets: []float64{
					0.01, // no-op batches
					0.1,
					0.5,
					1,
					5,
					15,
					30,
					60, // attempts running into the timeout
					120,
				},
			},
			[]string{"trigger"},
		),
	}
}

// RecordAttempt records a mount attempt for a trigger.
func (m *mountMetrics) RecordAttempt(trigger string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(trigger).Inc()
}

// RecordFailure records a failed attempt for an error kind.
func (m *mountMetrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// SetMountedShares records the currently-mounted gauge.
func (m *mountMetrics) SetMountedShares(n int) {
	if m == nil {
		return
	}
	m.mountedShares.Set(float64(n))
}

// RecordSweep records removals from one sweep pass.
func (m *mountMetrics) RecordSweep(removedDirs, removedJunk, unmountedStrays int) {
	if m == nil {
		return
	}
	m.sweepRemovals.WithLabelValues("directory").Add(float64(removedDirs))
	m.sweepRemovals.WithLabelValues("junk_file").Add(float64(removedJunk))
	m.sweepRemovals.WithLabelValues("stray_mount").Add(float64(unmountedStrays))
}

// ObserveBatch records one reconcile batch duration.
func (m *mountMetrics) ObserveBatch(trigger string, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

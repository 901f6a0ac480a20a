// Package metrics exposes the allocator's Prometheus surface: gauges for
// the live executor/container counts an operator watches during a
// reconciliation incident, counters for terminal outcomes, and histograms
// for the latency of the hot paths (allocate cycles, launches).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ExecutorsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nimbus_allocator_executors_running",
			Help: "Number of executors currently running",
		},
	)

	ExecutorsTarget = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nimbus_allocator_executors_target",
			Help: "Requested total number of executors",
		},
	)

	ContainersPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nimbus_allocator_containers_pending",
			Help: "Number of container requests outstanding with the resource manager",
		},
	)

	ContainersReleased = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nimbus_allocator_containers_released",
			Help: "Number of containers released back to the resource manager whose completion has not yet been processed",
		},
	)

	NodesBlacklisted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nimbus_allocator_nodes_blacklisted",
			Help: "Whether every usable node is currently blacklisted (1) or not (0)",
		},
	)

	ExecutorsFailedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nimbus_allocator_executors_failed_total",
			Help: "Number of app-caused executor failures within the current failure window",
		},
	)

	ContainersCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbus_allocator_containers_completed_total",
			Help: "Total completed containers by exit status",
		},
		[]string{"exit_status"},
	)

	ContainersLaunchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_allocator_containers_launched_total",
			Help: "Total number of containers successfully handed to the launcher",
		},
	)

	LaunchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_allocator_launch_failures_total",
			Help: "Total number of launcher.Launch calls that returned an error",
		},
	)

	UnexpectedReleasesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_allocator_unexpected_releases_total",
			Help: "Total number of containers lost without an explicit kill request",
		},
	)

	AllocateCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nimbus_allocator_allocate_cycle_duration_seconds",
			Help:    "Time taken by one reconciliation (allocate) cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	LaunchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nimbus_allocator_launch_duration_seconds",
			Help:    "Time taken for a single container launch to return",
			Buckets: prometheus.DefBuckets,
		},
	)

	RackResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nimbus_allocator_rack_resolution_duration_seconds",
			Help:    "Time taken to resolve racks for a batch of hosts",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ExecutorsRunning)
	prometheus.MustRegister(ExecutorsTarget)
	prometheus.MustRegister(ContainersPending)
	prometheus.MustRegister(ContainersReleased)
	prometheus.MustRegister(NodesBlacklisted)
	prometheus.MustRegister(ExecutorsFailedTotal)
	prometheus.MustRegister(ContainersCompletedTotal)
	prometheus.MustRegister(ContainersLaunchedTotal)
	prometheus.MustRegister(LaunchFailuresTotal)
	prometheus.MustRegister(UnexpectedReleasesTotal)
	prometheus.MustRegister(AllocateCycleDuration)
	prometheus.MustRegister(LaunchDuration)
	prometheus.MustRegister(RackResolutionDuration)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall time for a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

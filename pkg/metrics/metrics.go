package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Locked-memory metrics
	LockedMemoryAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_locked_memory_allocations_total",
			Help: "Total number of locked-memory allocations by backend",
		},
		[]string{"backend"},
	)

	LockedMemoryZeroizeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_locked_memory_zeroize_failures_total",
			Help: "Total number of best-effort zeroization attempts that failed",
		},
	)

	// Vault metrics
	VaultRecordsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warden_vault_records_total",
			Help: "Total number of non-revoked records by client",
		},
		[]string{"client"},
	)

	VaultRecordsRevoked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warden_vault_records_revoked",
			Help: "Total number of revoked, not-yet-collected records by client",
		},
		[]string{"client"},
	)

	VaultGCRecordsCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_vault_gc_records_collected_total",
			Help: "Total number of records zeroized by garbage collection",
		},
	)

	// Actor metrics
	ActorsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warden_actors_active",
			Help: "Number of client actors currently in the Active state",
		},
	)

	// Snapshot metrics
	SnapshotWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_snapshot_writes_total",
			Help: "Total number of snapshot files written",
		},
	)

	SnapshotReadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_snapshot_reads_total",
			Help: "Total number of snapshot files read",
		},
	)

	SnapshotWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warden_snapshot_write_duration_seconds",
			Help:    "Time taken to encrypt and persist a snapshot in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Synchroniser metrics
	SyncMergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_sync_merges_total",
			Help: "Total number of snapshot merges by kind (full/partial)",
		},
		[]string{"kind"},
	)

	SyncClientsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_sync_clients_dropped_total",
			Help: "Total number of client entries dropped by a partial synchronise allow-list",
		},
	)
)

func init() {
	prometheus.MustRegister(LockedMemoryAllocations)
	prometheus.MustRegister(LockedMemoryZeroizeFailures)
	prometheus.MustRegister(VaultRecordsTotal)
	prometheus.MustRegister(VaultRecordsRevoked)
	prometheus.MustRegister(VaultGCRecordsCollected)
	prometheus.MustRegister(ActorsActive)
	prometheus.MustRegister(SnapshotWritesTotal)
	prometheus.MustRegister(SnapshotReadsTotal)
	prometheus.MustRegister(SnapshotWriteDuration)
	prometheus.MustRegister(SyncMergesTotal)
	prometheus.MustRegister(SyncClientsDropped)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogramVec *prometheus.HistogramVec, labels ...string) {
	histogramVec.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

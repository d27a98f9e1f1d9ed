package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Page cache metrics
	PageCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_page_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	PageCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_page_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	PageCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nervusdb_page_cache_size",
			Help: "Number of decoded pages currently cached",
		},
	)

	// WAL metrics
	WALAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_wal_appends_total",
			Help: "Total number of records appended to the write-ahead log",
		},
	)

	WALBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_wal_bytes_written_total",
			Help: "Total bytes appended to the write-ahead log",
		},
	)

	WALSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nervusdb_wal_size_bytes",
			Help: "Current size of the write-ahead log in bytes",
		},
	)

	// Batch/commit metrics
	BatchCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_batch_commits_total",
			Help: "Total number of batches committed",
		},
	)

	BatchAbortsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_batch_aborts_total",
			Help: "Total number of batches aborted",
		},
	)

	BatchCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nervusdb_batch_commit_duration_seconds",
			Help:    "Time taken to commit a batch, including durable fsync when requested",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Checkpoint/compaction metrics
	CheckpointDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nervusdb_checkpoint_duration_seconds",
			Help:    "Time taken for a checkpoint cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nervusdb_compaction_duration_seconds",
			Help:    "Time taken for a compaction cycle in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	CompactionCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_compaction_cycles_total",
			Help: "Total number of compaction cycles completed",
		},
	)

	CompactionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_compaction_failures_total",
			Help: "Total number of compaction cycles that returned an error",
		},
	)

	CurrentEpoch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nervusdb_current_epoch",
			Help: "The epoch named by CURRENT as of the last successful compaction",
		},
	)

	PagesGCedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nervusdb_pages_gced_total",
			Help: "Total number of superseded page/prop/label files deleted by compaction",
		},
	)

	ActiveReaders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nervusdb_active_readers",
			Help: "Number of reader registrations currently pinning an epoch",
		},
	)

	// Query metrics
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nervusdb_query_duration_seconds",
			Help:    "Query execution duration in seconds by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	QueryRowsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nervusdb_query_rows_emitted_total",
			Help: "Total number of rows emitted by queries, by kind",
		},
		[]string{"kind"},
	)

	QueryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nervusdb_query_errors_total",
			Help: "Total number of query errors by error kind",
		},
		[]string{"error_kind"},
	)
)

func init() {
	prometheus.MustRegister(PageCacheHits)
	prometheus.MustRegister(PageCacheMisses)
	prometheus.MustRegister(PageCacheSize)
	prometheus.MustRegister(WALAppendsTotal)
	prometheus.MustRegister(WALBytesWritten)
	prometheus.MustRegister(WALSizeBytes)
	prometheus.MustRegister(BatchCommitsTotal)
	prometheus.MustRegister(BatchAbortsTotal)
	prometheus.MustRegister(BatchCommitDuration)
	prometheus.MustRegister(CheckpointDuration)
	prometheus.MustRegister(CompactionDuration)
	prometheus.MustRegister(CompactionCyclesTotal)
	prometheus.MustRegister(CompactionFailuresTotal)
	prometheus.MustRegister(CurrentEpoch)
	prometheus.MustRegister(PagesGCedTotal)
	prometheus.MustRegister(ActiveReaders)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryRowsEmitted)
	prometheus.MustRegister(QueryErrorsTotal)
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
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Package metrics records pipeline counters and stage latencies with
// Prometheus.
//
// Each Collector owns its registry, so several pipelines (or tests) can run
// in one process without colliding on metric names. A one-shot CLI run has
// no scrape endpoint; WriteToTextfile dumps the registry in the text format
// read by the node_exporter textfile collector.
//
//	c := metrics.NewCollector("ds005")
//	timer := c.Timer(metrics.StageExport)
//	tbl, err := collection.ToTable(opts)
//	timer.Stop()
//	c.RowsExported.Add(float64(tbl.NumRows()))
//	_ = c.WriteToTextfile("/var/lib/node_exporter/runvars.prom")
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "runvars"

// Pipeline stages used as the "stage" label.
const (
	StageLoad     = "load"
	StageBuild    = "build"
	StageMerge    = "merge"
	StageResample = "resample"
	StageExport   = "export"
	StageWrite    = "write"
	StageUpload   = "upload"
)

// Collector holds the metrics of one pipeline job. The job name is attached
// to every series as a constant label.
type Collector struct {
	job      string
	registry *prometheus.Registry

	// RunsLoaded counts raw runs read from manifests
	RunsLoaded prometheus.Counter
	// VariablesBuilt counts variables by density after the build stage
	VariablesBuilt *prometheus.CounterVec
	// Samples counts dense samples produced by resampling
	Samples prometheus.Counter
	// RowsExported counts table rows handed to the writer
	RowsExported prometheus.Counter
	// BytesWritten counts serialized bytes by destination scheme
	BytesWritten *prometheus.CounterVec
	// Errors counts failures by stage and error type
	Errors *prometheus.CounterVec
	// StageDuration is the latency distribution of each stage in seconds
	StageDuration *prometheus.HistogramVec
	// Throughput is the export rate of the last run in rows per second
	Throughput prometheus.Gauge
	// LastSuccess is the unix time of the last successful run
	LastSuccess prometheus.Gauge
}

// NewCollector creates a collector with a fresh registry.
func NewCollector(job string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"job_name": job}

	return &Collector{
		job:      job,
		registry: reg,
		RunsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "runs_loaded_total",
			Help:        "Total number of raw runs read from manifests",
			ConstLabels: labels,
		}),
		VariablesBuilt: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "variables_built_total",
			Help:        "Total number of variables built, by density",
			ConstLabels: labels,
		}, []string{"density"}),
		Samples: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "dense_samples_total",
			Help:        "Total number of dense samples produced by resampling",
			ConstLabels: labels,
		}),
		RowsExported: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_exported_total",
			Help:        "Total number of table rows exported",
			ConstLabels: labels,
		}),
		BytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "bytes_written_total",
			Help:        "Total number of serialized bytes written, by destination",
			ConstLabels: labels,
		}, []string{"sink"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "errors_total",
			Help:        "Total number of pipeline failures, by stage and error type",
			ConstLabels: labels,
		}, []string{"stage", "type"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "stage_duration_seconds",
			Help:        "Pipeline stage latency in seconds",
			ConstLabels: labels,
			Buckets: []float64{
				0.001, // 1ms - small manifests
				0.01,
				0.1,
				1,
				10,
				60, // large dense exports and uploads
			},
		}, []string{"stage"}),
		Throughput: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "throughput_rows_per_second",
			Help:        "Export throughput of the last run in rows per second",
			ConstLabels: labels,
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_success_timestamp_seconds",
			Help:        "Unix time of the last successful run",
			ConstLabels: labels,
		}),
	}
}

// Job returns the job label.
func (c *Collector) Job() string { return c.job }

// Registry exposes the registry for gatherers and HTTP handlers.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordError increments the error counter for a stage.
func (c *Collector) RecordError(stage, errType string) {
	c.Errors.WithLabelValues(stage, errType).Inc()
}

// MarkSuccess sets the last success timestamp to now.
func (c *Collector) MarkSuccess() {
	c.LastSuccess.SetToCurrentTime()
}

// WriteToTextfile writes every metric to path in the Prometheus text
// format. The file is replaced atomically.
func (c *Collector) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Timer measures one stage and observes it into StageDuration on Stop.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
	once     sync.Once
	elapsed  time.Duration
}

// Timer starts timing stage.
func (c *Collector) Timer(stage string) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: c.StageDuration.WithLabelValues(stage),
	}
}

// Stop records the elapsed time once and returns it. Later calls return
// the first measurement.
func (t *Timer) Stop() time.Duration {
	t.once.Do(func() {
		t.elapsed = time.Since(t.start)
		t.observer.Observe(t.elapsed.Seconds())
	})
	return t.elapsed
}

// ThroughputTracker accumulates rows and reports rows per second since it
// was created or last reset. Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	gauge     prometheus.Gauge
}

// NewThroughputTracker creates a tracker feeding the collector's
// Throughput gauge.
func (c *Collector) NewThroughputTracker() *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now(), gauge: c.Throughput}
}

// Increment adds n to the row count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset computes rows per second, publishes it to the gauge and
// starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()
	t.gauge.Set(throughput)

	return throughput
}

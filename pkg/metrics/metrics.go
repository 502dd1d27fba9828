// Package metrics records ingest run statistics with Prometheus collectors.
//
// # Overview
//
// Each run owns a Collector backed by a private registry, so runs in the same
// process (tests, mainly) never share counts. At the end of a run the
// registry can be written in the Prometheus text format for the node
// exporter's textfile collector:
//
//	c := metrics.NewCollector("ingest")
//	c.ChunkProcessed(rows, time.Since(start))
//	c.TableAppended(created, bytes)
//	err := c.WriteTextfile("/var/lib/node_exporter/hdfmast.prom")
//
// # Metric Types
//
// Counter: rows, chunks, appends and bytes written
// Gauge: tables touched, process RSS, throughput
// Histogram: chunk processing time
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/hdfmast/pkg/errors"
)

const namespace = "hdfmast"

// Collector holds the metrics of one component.
type Collector struct {
	name          string
	registry      *prometheus.Registry
	rows          prometheus.Counter
	chunks        prometheus.Counter
	appends       *prometheus.CounterVec
	bytesWritten  prometheus.Counter
	tablesTouched prometheus.Gauge
	chunkDuration prometheus.Histogram
	memoryRSS     prometheus.Gauge
	throughput    prometheus.Gauge
	startTime     time.Time
}

// NewCollector creates a collector whose metrics carry a component label.
func NewCollector(name string) *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"component": name}

	return &Collector{
		name:     name,
		registry: reg,
		rows: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_total",
			Help:        "Total number of input rows appended",
			ConstLabels: labels,
		}),
		chunks: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "chunks_total",
			Help:        "Total number of input chunks processed",
			ConstLabels: labels,
		}),
		appends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "table_appends_total",
			Help:        "Table appends, by whether the append created the table",
			ConstLabels: labels,
		}, []string{"created"}),
		bytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "bytes_written_total",
			Help:        "Compressed column block bytes written",
			ConstLabels: labels,
		}),
		tablesTouched: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "tables_touched",
			Help:        "Distinct tables appended to during the run",
			ConstLabels: labels,
		}),
		chunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "chunk_duration_seconds",
			Help:        "Time to partition and append one chunk",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		memoryRSS: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "memory_rss_bytes",
			Help:        "Resident set size of the process after the last chunk",
			ConstLabels: labels,
		}),
		throughput: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "throughput_rows_per_second",
			Help:        "Rows appended per second over the run",
			ConstLabels: labels,
		}),
		startTime: time.Now(),
	}
}

// Name returns the component name.
func (c *Collector) Name() string { return c.name }

// Registry returns the collector's private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time { return c.startTime }

// ChunkProcessed records one chunk of rows and how long it took.
func (c *Collector) ChunkProcessed(rows int, d time.Duration) {
	c.chunks.Inc()
	c.rows.Add(float64(rows))
	c.chunkDuration.Observe(d.Seconds())
}

// TableAppended records one table append.
func (c *Collector) TableAppended(created bool, bytes int) {
	label := "false"
	if created {
		label = "true"
	}
	c.appends.WithLabelValues(label).Inc()
	c.bytesWritten.Add(float64(bytes))
}

// SetTablesTouched sets the number of distinct tables touched so far.
func (c *Collector) SetTablesTouched(n int) { c.tablesTouched.Set(float64(n)) }

// SetMemoryRSS records the process resident set size.
func (c *Collector) SetMemoryRSS(bytes uint64) { c.memoryRSS.Set(float64(bytes)) }

// SetThroughput records the run's rows per second.
func (c *Collector) SetThroughput(rowsPerSec float64) { c.throughput.Set(rowsPerSec) }

// WriteTextfile writes every metric of the collector to path in the
// Prometheus text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write metrics file").WithDetail("path", path)
	}
	return nil
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. The timer can be stopped
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks rows per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows counted since last reset
	lastReset time.Time // Time of last reset
	collector *Collector
}

// NewThroughputTracker creates a tracker that reports to c. A nil collector
// is allowed.
func NewThroughputTracker(c *Collector) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		collector: c,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (rows/second), updates the
// collector's gauge, resets the counter, and returns the calculated
// throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	if t.collector != nil {
		t.collector.SetThroughput(throughput)
	}
	return throughput
}

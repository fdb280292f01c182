// Package metrics exposes the last valid Snapshot as Prometheus metrics.
//
// The Collector never takes a snapshot itself: it reads whatever the last
// Profiler.Snapshot call produced, so scraping has no effect on the Recorders.
// A snapshot taken with reset covers a shorter window than the one before it,
// so every value is a gauge.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
)

// SnapshotSource provides the most recent Snapshot, or nil if none exists.
type SnapshotSource interface {
	LastSnapshot() *profiler.Snapshot
}

// Collector implements prometheus.Collector over a SnapshotSource.
//
// Metrics (per block, label "block"):
//   - <ns>_block_invocations
//   - <ns>_block_self_time_seconds
//   - <ns>_block_wall_time_seconds
//   - <ns>_block_self_time_max_seconds
//   - <ns>_block_wall_time_max_seconds
//
// and <ns>_snapshot_window_seconds for the covered window. Block names that
// are not valid UTF-8 are exported with U+FFFD in place of the bad bytes.
type Collector struct {
	src SnapshotSource

	invocationsDesc *prometheus.Desc
	selfTimeDesc    *prometheus.Desc
	wallTimeDesc    *prometheus.Desc
	selfMaxDesc     *prometheus.Desc
	wallMaxDesc     *prometheus.Desc
	windowDesc      *prometheus.Desc
}

// NewCollector creates a Collector reading from src under namespace.
func NewCollector(namespace string, src SnapshotSource) *Collector {
	block := []string{"block"}
	return &Collector{
		src: src,
		invocationsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "block", "invocations"),
			"Closed invocations of the block in the last snapshot",
			block, nil,
		),
		selfTimeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "block", "self_time_seconds"),
			"Self time of the block in the last snapshot",
			block, nil,
		),
		wallTimeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "block", "wall_time_seconds"),
			"Wall time of the block in the last snapshot",
			block, nil,
		),
		selfMaxDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "block", "self_time_max_seconds"),
			"Longest self time of a single invocation",
			block, nil,
		),
		wallMaxDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "block", "wall_time_max_seconds"),
			"Longest wall time of a single invocation",
			block, nil,
		),
		windowDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "snapshot", "window_seconds"),
			"Length of the window covered by the last snapshot",
			nil, nil,
		),
	}
}

// Describe implements the prometheus.Collector interface
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.invocationsDesc
	ch <- c.selfTimeDesc
	ch <- c.wallTimeDesc
	ch <- c.selfMaxDesc
	ch <- c.wallMaxDesc
	ch <- c.windowDesc
}

// Collect implements the prometheus.Collector interface
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.LastSnapshot()
	if snap == nil {
		return
	}

	gauge(ch, c.windowDesc, snap.Interval().Seconds())
	for _, r := range snap.Records() {
		block := strings.ToValidUTF8(r.BlockName, "\uFFFD")
		gauge(ch, c.invocationsDesc, float64(r.Invocations), block)
		gauge(ch, c.selfTimeDesc, seconds(r.SelfTime), block)
		gauge(ch, c.wallTimeDesc, seconds(r.WallTime), block)
		gauge(ch, c.selfMaxDesc, seconds(r.SelfTimeMax), block)
		gauge(ch, c.wallMaxDesc, seconds(r.WallTimeMax), block)
	}
}

// gauge sends one gauge sample, or an invalid metric carrying the error so
// the registry reports it instead of the scrape panicking.
func gauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labels ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	if err != nil {
		m = prometheus.NewInvalidMetric(desc, err)
	}
	ch <- m
}

func seconds(ns int64) float64 {
	return time.Duration(ns).Seconds()
}

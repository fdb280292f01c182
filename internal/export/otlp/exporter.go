// Package otlp pushes Snapshots to an OpenTelemetry collector as OTLP
// metrics over HTTP.
package otlp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
)

// ScopeName is the instrumentation scope of every exported metric.
const ScopeName = "github.com/btraceio/btrace-sub009/profiler"

// Metric names.
const (
	InvocationsMetric = "btrace.block.invocations"
	SelfTimeMetric    = "btrace.block.self_time"
	WallTimeMetric    = "btrace.block.wall_time"
)

// BlockKey is the attribute carrying the block name.
const BlockKey = attribute.Key("btrace.block")

const defaultPath = "/v1/metrics"

// Exporter converts Snapshots and hands them to an OTLP metric exporter.
type Exporter struct {
	mu       sync.Mutex
	exporter sdkmetric.Exporter
	resource *resource.Resource
	log      zerolog.Logger
}

// New creates an Exporter sending to endpoint, given as host:port or as an
// http(s) URL with an optional path. Plain http disables TLS.
func New(ctx context.Context, endpoint, session string, log zerolog.Logger) (*Exporter, error) {
	host, path := parseEndpoint(endpoint)
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(host),
		otlpmetrichttp.WithURLPath(path),
		otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression),
	}
	if strings.HasPrefix(endpoint, "http://") {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter for %s: %w", endpoint, err)
	}
	log.Info().Str("endpoint", host).Str("path", path).Msg("otlp exporter created")
	return NewWithExporter(exp, session, log), nil
}

// NewWithExporter wraps exp. The Exporter takes ownership and shuts it down
// in Shutdown.
func NewWithExporter(exp sdkmetric.Exporter, session string, log zerolog.Logger) *Exporter {
	return &Exporter{
		exporter: exp,
		resource: Resource(session),
		log:      log,
	}
}

// Resource describes the profiled process.
func Resource(session string) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", "btrace-profiler"),
		attribute.String("btrace.session", session),
	)
}

// Export sends snap. Empty snapshots are skipped.
func (e *Exporter) Export(ctx context.Context, snap *profiler.Snapshot) error {
	if snap.Len() == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rm := ToResourceMetrics(snap, e.resource)
	if err := e.exporter.Export(ctx, rm); err != nil {
		e.log.Warn().Err(err).Int("blocks", snap.Len()).Msg("otlp export failed")
		return fmt.Errorf("otlp export: %w", err)
	}
	e.log.Debug().Int("blocks", snap.Len()).Msg("otlp export done")
	return nil
}

// Shutdown flushes and stops the underlying exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.exporter.ForceFlush(ctx); err != nil {
		e.log.Debug().Err(err).Msg("otlp flush failed")
	}
	return e.exporter.Shutdown(ctx)
}

// ToResourceMetrics converts snap into three cumulative sums, one data point
// per block: invocations, self seconds and wall seconds. Every point spans the
// snapshot window.
func ToResourceMetrics(snap *profiler.Snapshot, res *resource.Resource) *metricdata.ResourceMetrics {
	recs := snap.Sorted()
	start, end := snap.WindowStart(), snap.WindowEnd()

	calls := make([]metricdata.DataPoint[int64], 0, len(recs))
	self := make([]metricdata.DataPoint[float64], 0, len(recs))
	wall := make([]metricdata.DataPoint[float64], 0, len(recs))
	for _, r := range recs {
		attrs := attribute.NewSet(BlockKey.String(r.BlockName))
		calls = append(calls, metricdata.DataPoint[int64]{
			Attributes: attrs, StartTime: start, Time: end, Value: r.Invocations,
		})
		self = append(self, metricdata.DataPoint[float64]{
			Attributes: attrs, StartTime: start, Time: end, Value: seconds(r.SelfTime),
		})
		wall = append(wall, metricdata.DataPoint[float64]{
			Attributes: attrs, StartTime: start, Time: end, Value: seconds(r.WallTime),
		})
	}

	return &metricdata.ResourceMetrics{
		Resource: res,
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Scope: instrumentation.Scope{Name: ScopeName},
			Metrics: []metricdata.Metrics{
				{
					Name:        InvocationsMetric,
					Description: "Completed invocations of a block.",
					Unit:        "{invocation}",
					Data: metricdata.Sum[int64]{
						Temporality: metricdata.CumulativeTemporality,
						IsMonotonic: true,
						DataPoints:  calls,
					},
				},
				{
					Name:        SelfTimeMetric,
					Description: "Time spent in a block excluding nested blocks.",
					Unit:        "s",
					Data: metricdata.Sum[float64]{
						Temporality: metricdata.CumulativeTemporality,
						DataPoints:  self,
					},
				},
				{
					Name:        WallTimeMetric,
					Description: "Time spent in a block including nested blocks.",
					Unit:        "s",
					Data: metricdata.Sum[float64]{
						Temporality: metricdata.CumulativeTemporality,
						IsMonotonic: true,
						DataPoints:  wall,
					},
				},
			},
		}},
	}
}

func parseEndpoint(endpoint string) (host, path string) {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	i := strings.Index(endpoint, "/")
	if i == -1 {
		return endpoint, defaultPath
	}
	return endpoint[:i], endpoint[i:]
}

func seconds(ns int64) float64 { return float64(ns) / 1e9 }

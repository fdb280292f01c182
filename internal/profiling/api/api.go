// Package api holds the process-wide default Profiler behind the public
// profiling package.
//
// RecordEntry and RecordExit are the hot path: instrumentation calls them
// around every probed block. When recording is disabled they return after a
// single atomic load.
//
// Init replaces the default Profiler and starts the outputs selected by the
// configuration: the local snapshot endpoint, Kafka publishing and the OTLP
// push. Fini stops them and prints a summary table.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/btraceio/btrace-sub009/internal/config"
	"github.com/btraceio/btrace-sub009/internal/export/endpoint"
	"github.com/btraceio/btrace-sub009/internal/export/kafka"
	"github.com/btraceio/btrace-sub009/internal/export/metrics"
	"github.com/btraceio/btrace-sub009/internal/export/otlp"
	"github.com/btraceio/btrace-sub009/internal/logging"
	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/report"
)

// SummaryTitle heads the table printed by Fini.
const SummaryTitle = "BTrace Block Profile"

const shutdownTimeout = 5 * time.Second

var (
	// enabled gates the hot path.
	enabled atomic.Bool

	// prof is the default Profiler. Init swaps it; recorders bound to the
	// previous one stop appearing in snapshots.
	prof atomic.Pointer[profiler.Profiler]

	// mu serializes Init and Fini.
	mu sync.Mutex
	bg *outputs

	// summaryOut receives the Fini table.
	summaryOut io.Writer = os.Stderr
)

func init() {
	prof.Store(profiler.New())
	enabled.Store(true)
}

// outputs are the background consumers started by Init.
type outputs struct {
	log     zerolog.Logger
	session string
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	publisher *kafka.Publisher
	exporter  *otlp.Exporter
}

// RecordEntry records entry into the named block on the calling goroutine.
func RecordEntry(name string) {
	if !enabled.Load() {
		return
	}
	prof.Load().RecordEntry(name)
}

// RecordExit records exit from the named block after duration nanoseconds.
func RecordExit(name string, duration int64) {
	if !enabled.Load() {
		return
	}
	prof.Load().RecordExit(name, duration)
}

// Enable turns recording on.
func Enable() { enabled.Store(true) }

// Disable turns recording off. Blocks entered while enabled and exited while
// disabled stay open until the next reset.
func Disable() { enabled.Store(false) }

// Enabled reports whether recording is on.
func Enabled() bool { return enabled.Load() }

// Default returns the current default Profiler.
func Default() *profiler.Profiler { return prof.Load() }

// Snapshot takes a cumulative Snapshot of the default Profiler.
func Snapshot() *profiler.Snapshot { return prof.Load().Snapshot(false) }

// SnapshotAndReset takes a Snapshot and starts a new window.
func SnapshotAndReset() *profiler.Snapshot { return prof.Load().SnapshotAndReset() }

// Reset discards the recorded data of the default Profiler.
func Reset() { prof.Load().Reset() }

// LastSnapshot returns the most recent Snapshot, or nil.
func LastSnapshot() *profiler.Snapshot { return prof.Load().LastSnapshot() }

// Session returns the session ID assigned by the last Init, or "" before it.
func Session() string {
	mu.Lock()
	defer mu.Unlock()
	if bg == nil {
		return ""
	}
	return bg.session
}

type lastSource struct{}

func (lastSource) LastSnapshot() *profiler.Snapshot { return LastSnapshot() }

// MetricsCollector exposes the last Snapshot of whichever Profiler is the
// default at collection time.
func MetricsCollector(namespace string) prometheus.Collector {
	return metrics.NewCollector(namespace, lastSource{})
}

// Init replaces the default Profiler according to cfg and starts the outputs
// it selects. Outputs of a previous Init are stopped first. On error nothing
// is left running and the previous Profiler stays in place.
func Init(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	stopLocked()

	log := logging.New(os.Stderr, cfg.LogLevel).With().Str("component", "profiler").Logger()
	p := profiler.New(
		profiler.WithExpectedBlocks(cfg.ExpectedBlocks),
		profiler.WithLogger(log),
	)

	o, err := start(cfg, p, log)
	if err != nil {
		return err
	}
	bg = o
	prof.Store(p)
	enabled.Store(cfg.Enabled)

	log.Info().
		Str("session", o.session).
		Int("expected_blocks", cfg.ExpectedBlocks).
		Bool("enabled", cfg.Enabled).
		Msg("profiler initialized")
	return nil
}

func start(cfg config.Config, p *profiler.Profiler, log zerolog.Logger) (*outputs, error) {
	ctx, cancel := context.WithCancel(context.Background())
	o := &outputs{log: log, session: report.NewSession(), cancel: cancel}

	fail := func(err error) (*outputs, error) {
		o.stop()
		return nil, err
	}

	if cfg.Endpoint != "" {
		addr := cfg.Endpoint
		if addr == config.AutoEndpoint {
			addr = endpoint.DefaultAddress(os.Getpid())
		}
		ln, err := endpoint.Listen(addr)
		if err != nil {
			return fail(fmt.Errorf("snapshot endpoint: %w", err))
		}
		srv := &endpoint.Server{Source: p, Session: o.session, Logger: log}
		o.goLoop("endpoint", func() error { return srv.Serve(ctx, ln) })
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return fail(err)
		}
		o.publisher = pub
		o.goLoop("kafka", func() error { return pub.Run(ctx, p, o.session, cfg.ReportInterval) })
	}

	if cfg.OTLPEndpoint != "" {
		exp, err := otlp.New(ctx, cfg.OTLPEndpoint, o.session, log)
		if err != nil {
			return fail(err)
		}
		o.exporter = exp
		o.goLoop("otlp", func() error { return pushLoop(ctx, exp, p, cfg.ReportInterval) })
	}
	return o, nil
}

func pushLoop(ctx context.Context, exp *otlp.Exporter, p *profiler.Profiler, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Failures are logged by the exporter; the next tick retries.
			_ = exp.Export(ctx, p.Snapshot(false))
		}
	}
}

func (o *outputs) goLoop(name string, run func() error) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := run(); err != nil {
			o.log.Error().Err(err).Str("output", name).Msg("output stopped")
		}
	}()
}

// flush sends snap through the push outputs before they stop.
func (o *outputs) flush(snap *profiler.Snapshot) {
	if o.publisher != nil {
		host, _ := report.CollectHostStats(context.Background())
		if err := o.publisher.Publish(report.NewEnvelope(o.session, snap, host)); err != nil {
			o.log.Warn().Err(err).Msg("final kafka publish failed")
		}
	}
	if o.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = o.exporter.Export(ctx, snap)
	}
}

func (o *outputs) stop() {
	o.cancel()
	o.wg.Wait()

	var errs []error
	if o.publisher != nil {
		errs = append(errs, o.publisher.Close())
	}
	if o.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, o.exporter.Shutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		o.log.Warn().Err(err).Msg("output shutdown")
	}
}

func stopLocked() {
	if bg != nil {
		bg.stop()
		bg = nil
	}
}

// Fini disables recording, takes a final cumulative Snapshot, flushes it to
// the push outputs, stops every output and prints the Snapshot as a table.
// It returns the final Snapshot.
func Fini() *profiler.Snapshot {
	enabled.Store(false)

	mu.Lock()
	defer mu.Unlock()

	snap := prof.Load().Snapshot(false)
	if bg != nil {
		bg.flush(snap)
		bg.log.Info().
			Int("blocks", snap.Len()).
			Int64("invocations", snap.TotalInvocations()).
			Msg("profiler finished")
	}
	stopLocked()

	fmt.Fprintln(summaryOut)
	if err := report.WriteTable(summaryOut, SummaryTitle, snap); err != nil {
		fmt.Fprintf(os.Stderr, "profiler summary: %v\n", err)
	}
	return snap
}

// demo.go implements the 'btprof demo' command.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/btraceio/btrace-sub009/internal/config"
	"github.com/btraceio/btrace-sub009/internal/export/kafka"
	"github.com/btraceio/btrace-sub009/internal/logging"
	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
	"github.com/btraceio/btrace-sub009/internal/report"
)

// Demo block names.
const (
	blockRequest = "demo.request"
	blockParse   = "demo.parse"
	blockQuery   = "demo.query"
	blockWalk    = "demo.walk"
)

// demoConfig holds configuration for the demo command.
type demoConfig struct {
	goroutines int
	iterations int

	// Recursion depth of demo.walk
	depth int

	format     string
	outputFile string

	// Kafka publishing (-kafka, -topic)
	brokers []string
	topic   string

	logLevel string
}

// demoCommand implements the 'btprof demo' command.
//
// It records a synthetic request workload on several goroutines: each request
// parses, queries and walks a recursive structure. Durations are synthetic so
// the output is reproducible.
//
// Example:
//
//	btprof demo -goroutines 8 -iterations 1000
//	btprof demo -format html -o demo.html
func demoCommand(args []string) {
	config, err := parseDemoArgs(args, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logging.Console(config.logLevel)
	env, err := runDemo(context.Background(), config, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := writeOutput(config.outputFile, config.format, "Demo block profile", env); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseDemoArgs parses command-line arguments for 'btprof demo'.
func parseDemoArgs(args []string, errOut io.Writer) (*demoConfig, error) {
	cfg := &demoConfig{}
	var brokers string

	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.IntVar(&cfg.goroutines, "goroutines", 4, "number of recording goroutines")
	fs.IntVar(&cfg.iterations, "iterations", 1000, "requests per goroutine")
	fs.IntVar(&cfg.depth, "depth", 3, "recursion depth of "+blockWalk)
	fs.StringVar(&cfg.format, "format", formatText, "output format: text, json, pprof or html")
	fs.StringVar(&cfg.outputFile, "o", "", "output file (default stdout)")
	fs.StringVar(&brokers, "kafka", "", "comma separated Kafka brokers to publish the profile to")
	fs.StringVar(&cfg.topic, "topic", config.DefaultKafkaTopic, "Kafka topic")
	fs.StringVar(&cfg.logLevel, "log-level", "warn", "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.brokers = append(cfg.brokers, b)
		}
	}
	if cfg.goroutines < 1 || cfg.iterations < 1 || cfg.depth < 1 {
		return nil, fmt.Errorf("goroutines, iterations and depth must be positive")
	}
	if err := checkFormat(cfg.format); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runDemo records the workload and returns its profile, published to Kafka
// when brokers are configured.
func runDemo(ctx context.Context, cfg *demoConfig, log zerolog.Logger) (report.Envelope, error) {
	p := profiler.New(profiler.WithExpectedBlocks(8), profiler.WithLogger(log))

	var wg sync.WaitGroup
	for g := 0; g < cfg.goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := p.Recorder()
			for i := 0; i < cfg.iterations; i++ {
				request(r, i, cfg.depth)
			}
		}()
	}
	wg.Wait()

	snap := p.Snapshot(false)
	host, err := report.CollectHostStats(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("partial host stats")
	}
	env := report.NewEnvelope(report.NewSession(), snap, host)
	log.Info().Int("blocks", snap.Len()).Int64("invocations", snap.TotalInvocations()).Msg("demo finished")

	if len(cfg.brokers) == 0 {
		return env, nil
	}
	pub, err := kafka.New(cfg.brokers, cfg.topic, log)
	if err != nil {
		return env, err
	}
	if err := pub.Publish(env); err != nil {
		pub.Close()
		return env, err
	}
	if err := pub.Close(); err != nil {
		return env, err
	}
	if pub.Failed() > 0 {
		return env, fmt.Errorf("profile not delivered to %s", cfg.topic)
	}
	log.Info().Str("topic", cfg.topic).Str("session", env.Session).Msg("profile published")
	return env, nil
}

// request records one synthetic request and returns its duration.
func request(r *recorder.Recorder, i, depth int) int64 {
	r.RecordEntry(blockRequest)
	d := leaf(r, blockParse, int64(2000+i%7*100))
	d += leaf(r, blockQuery, int64(20000+i%13*1000))
	d += walk(r, depth)
	d += 500
	r.RecordExit(blockRequest, d)
	return d
}

func leaf(r *recorder.Recorder, name string, d int64) int64 {
	r.RecordEntry(name)
	r.RecordExit(name, d)
	return d
}

// walk recurses depth times; each level spends 100ns on its own.
func walk(r *recorder.Recorder, depth int) int64 {
	r.RecordEntry(blockWalk)
	d := int64(100)
	if depth > 1 {
		d += walk(r, depth-1)
	}
	r.RecordExit(blockWalk, d)
	return d
}

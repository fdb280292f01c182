// Package config provides the parameters of a profiler process, read from
// environment variables prefixed with BTRACE_PROF_.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Prefix is prepended to every variable name.
const Prefix = "BTRACE_PROF_"

// Defaults.
const (
	DefaultExpectedBlocks   = 600
	DefaultLogLevel         = "info"
	DefaultKafkaTopic       = "btrace.profiles"
	DefaultMetricsNamespace = "btrace"
	DefaultReportInterval   = 10 * time.Second
)

// AutoEndpoint requests the default endpoint address of the process.
const AutoEndpoint = "auto"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// A Config holds the parameters of a profiler process.
type Config struct {
	// Enabled turns recording on at Init.
	Enabled bool

	// ExpectedBlocks sizes the per-goroutine logs.
	ExpectedBlocks int

	// LogLevel is a zerolog level name.
	LogLevel string

	// Endpoint is the snapshot endpoint address: a unix socket path, or a
	// named pipe name on Windows. AutoEndpoint selects the per-process
	// default address; empty disables the endpoint.
	Endpoint string

	// KafkaBrokers and KafkaTopic configure snapshot publishing.
	// No brokers disables publishing.
	KafkaBrokers []string
	KafkaTopic   string

	// OTLPEndpoint is the collector receiving OTLP metrics, as host:port or
	// an http(s) URL. Empty disables the push.
	OTLPEndpoint string

	// MetricsNamespace prefixes the exported metric names.
	MetricsNamespace string

	// ReportInterval is the period of background snapshot publishing.
	ReportInterval time.Duration
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Enabled:          true,
		ExpectedBlocks:   DefaultExpectedBlocks,
		LogLevel:         DefaultLogLevel,
		KafkaTopic:       DefaultKafkaTopic,
		MetricsNamespace: DefaultMetricsNamespace,
		ReportInterval:   DefaultReportInterval,
	}
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load reads the configuration through lookup, starting from Default.
// Unset variables keep their default; malformed ones are reported.
func Load(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(Prefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []error
	if v, ok := get("ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sENABLED: %w", Prefix, err))
		}
		c.Enabled = b
	}
	if v, ok := get("EXPECTED_BLOCKS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sEXPECTED_BLOCKS: %w", Prefix, err))
		}
		c.ExpectedBlocks = n
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("ENDPOINT"); ok {
		c.Endpoint = v
	}
	if v, ok := get("KAFKA_BROKERS"); ok {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, b)
			}
		}
	}
	if v, ok := get("KAFKA_TOPIC"); ok {
		c.KafkaTopic = v
	}
	if v, ok := get("OTLP_ENDPOINT"); ok {
		c.OTLPEndpoint = v
	}
	if v, ok := get("METRICS_NAMESPACE"); ok {
		c.MetricsNamespace = v
	}
	if v, ok := get("REPORT_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREPORT_INTERVAL: %w", Prefix, err))
		}
		c.ReportInterval = d
	}

	if err := errors.Join(errs...); err != nil {
		return c, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return c, c.Validate()
}

// Validate reports every out-of-range field.
func (c Config) Validate() error {
	var errs []error
	if c.ExpectedBlocks < 1 {
		errs = append(errs, fmt.Errorf("expected blocks %d: must be positive", c.ExpectedBlocks))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka brokers set without a topic"))
	}
	if c.ReportInterval <= 0 {
		errs = append(errs, fmt.Errorf("report interval %v: must be positive", c.ReportInterval))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

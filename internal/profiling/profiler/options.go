package profiler

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultExpectedBlocks is the expected number of distinct block names used
// to size new Recorders when no option overrides it.
const DefaultExpectedBlocks = 600

// DefaultPruneInterval is the number of new goroutine bindings between two
// background scans for exited goroutines.
const DefaultPruneInterval = 1000

// Option configures a Profiler.
type Option func(*Profiler)

// WithExpectedBlocks sets the expected number of distinct block names.
// Values below 1 are treated as 1.
func WithExpectedBlocks(n int) Option {
	return func(p *Profiler) {
		p.expectedBlocks = max(n, 1)
	}
}

// WithClock replaces time.Now as the source of snapshot window timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger used for registry events. The default discards.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Profiler) {
		p.log = log
	}
}

// WithPruneInterval sets how many new goroutine bindings trigger a background
// scan for exited goroutines. Zero disables automatic pruning.
func WithPruneInterval(n int) Option {
	return func(p *Profiler) {
		p.pruneInterval = int64(max(n, 0))
	}
}

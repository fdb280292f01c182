// Package report packages a Snapshot for consumers outside the process.
//
// An Envelope carries the merged Records with their window, the identity of
// the profiling session and a few host statistics. Envelopes travel as one
// JSON document per line over the snapshot endpoint and to Kafka.
package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/mod/semver"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
)

// SchemaVersion is the envelope format version written by this package.
const SchemaVersion = "v1.0.0"

// ErrIncompatibleSchema is returned when an envelope uses another major version.
var ErrIncompatibleSchema = errors.New("incompatible envelope schema")

// Envelope is the transport form of a Snapshot.
type Envelope struct {
	Schema      string            `json:"schema"`
	Session     string            `json:"session"`
	Host        HostStats         `json:"host"`
	WindowStart time.Time         `json:"windowStart"`
	WindowEnd   time.Time         `json:"windowEnd"`
	Records     []recorder.Record `json:"records"`
}

// NewEnvelope wraps snap for session. Records are ordered by block name.
func NewEnvelope(session string, snap *profiler.Snapshot, host HostStats) Envelope {
	return Envelope{
		Schema:      SchemaVersion,
		Session:     session,
		Host:        host,
		WindowStart: snap.WindowStart(),
		WindowEnd:   snap.WindowEnd(),
		Records:     snap.Sorted(),
	}
}

// Snapshot rebuilds the Snapshot carried by e.
func (e Envelope) Snapshot() *profiler.Snapshot {
	return profiler.NewSnapshot(e.Records, e.WindowStart, e.WindowEnd)
}

// CheckSchema accepts any version with the same major as SchemaVersion.
func CheckSchema(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrIncompatibleSchema, v)
	}
	if semver.Major(v) != semver.Major(SchemaVersion) {
		return fmt.Errorf("%w: %s, want %s.x", ErrIncompatibleSchema, v, semver.Major(SchemaVersion))
	}
	return nil
}

// Encode writes e as one JSON line.
func Encode(w io.Writer, e Envelope) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return nil
}

// Marshal returns e as JSON without a trailing newline.
func Marshal(e Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

// Decode reads one JSON line from r and checks its schema.
func Decode(r *bufio.Reader) (Envelope, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return Envelope{}, fmt.Errorf("read envelope: %w", err)
	}

	var e Envelope
	if err := json.Unmarshal(line, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := CheckSchema(e.Schema); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

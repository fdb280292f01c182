// Package endpoint serves Snapshots to local clients over a unix socket, or a
// named pipe on Windows.
//
// The protocol is line based. A client sends one command line and the server
// replies with one JSON envelope line, or with a line starting with "error: ".
//
//	snapshot   cumulative snapshot
//	reset      snapshot and reset
package endpoint

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/report"
)

// Commands.
const (
	CmdSnapshot = "snapshot"
	CmdReset    = "reset"
)

const (
	errPrefix   = "error: "
	ioTimeout   = 10 * time.Second
	maxCmdBytes = 64
)

var (
	// ErrClosed is returned by Serve when its listener was closed while the
	// context was still live.
	ErrClosed = errors.New("endpoint closed")

	// ErrRejected is returned by Fetch when the server refused the command.
	ErrRejected = errors.New("endpoint rejected command")
)

// Source produces Snapshots on demand.
type Source interface {
	Snapshot(reset bool) *profiler.Snapshot
}

// Server answers snapshot requests from Source.
type Server struct {
	Source  Source
	Session string
	Logger  zerolog.Logger
}

// Serve accepts connections on ln until ctx is done, then closes ln and waits
// for in-flight requests. It returns nil after cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.Logger.Info().Str("addr", ln.Addr().String()).Msg("snapshot endpoint listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrClosed
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	cmd, err := bufio.NewReaderSize(conn, maxCmdBytes).ReadString('\n')
	if err != nil {
		s.Logger.Debug().Err(err).Msg("endpoint read failed")
		return
	}

	var reset bool
	switch cmd = strings.TrimSpace(cmd); cmd {
	case CmdSnapshot:
	case CmdReset:
		reset = true
	default:
		s.Logger.Warn().Str("command", cmd).Msg("unknown endpoint command")
		fmt.Fprintf(conn, "%sunknown command %q\n", errPrefix, cmd)
		return
	}

	host, err := report.CollectHostStats(ctx)
	if err != nil {
		s.Logger.Debug().Err(err).Msg("partial host stats")
	}
	env := report.NewEnvelope(s.Session, s.Source.Snapshot(reset), host)
	if err := report.Encode(conn, env); err != nil {
		s.Logger.Warn().Err(err).Msg("endpoint write failed")
		return
	}
	s.Logger.Debug().Str("command", cmd).Int("blocks", len(env.Records)).Msg("snapshot served")
}

// Fetch asks the endpoint at addr for a snapshot, resetting the profiler when
// reset is set.
func Fetch(ctx context.Context, addr string, reset bool) (report.Envelope, error) {
	conn, err := dial(ctx, addr)
	if err != nil {
		return report.Envelope{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	cmd := CmdSnapshot
	if reset {
		cmd = CmdReset
	}
	if _, err := fmt.Fprintln(conn, cmd); err != nil {
		return report.Envelope{}, fmt.Errorf("send %s: %w", cmd, err)
	}

	br := bufio.NewReader(conn)
	if head, _ := br.Peek(len(errPrefix)); string(head) == errPrefix {
		line, _ := br.ReadString('\n')
		return report.Envelope{}, fmt.Errorf("%w: %s", ErrRejected, strings.TrimSpace(strings.TrimPrefix(line, errPrefix)))
	}
	return report.Decode(br)
}

//go:build windows

package endpoint

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// Listen creates the named pipe addr.
func Listen(addr string) (net.Listener, error) {
	ln, err := winio.ListenPipe(addr, &winio.PipeConfig{
		InputBufferSize:  maxCmdBytes,
		OutputBufferSize: 64 << 10,
	})
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func dial(ctx context.Context, addr string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, addr)
}

// DefaultAddress is the pipe name of process pid.
func DefaultAddress(pid int) string {
	return fmt.Sprintf(`\\.\pipe\btrace-prof-%d`, pid)
}

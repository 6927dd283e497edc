package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

type SocketListener struct {
	path     string
	listener net.Listener
}

func NewSocketListener(socketPath string) *SocketListener {
	return &SocketListener{
		path: socketPath,
	}
}

// Start removes a socket left behind by a crashed daemon and listens with
// owner-only permissions.
func (sl *SocketListener) Start() error {
	dir := filepath.Dir(sl.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create socket dir: %w", err)
	}

	if err := os.Remove(sl.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove socket: %w", err)
	}

	listener, err := net.Listen("unix", sl.path)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	sl.listener = listener
	if err := os.Chmod(sl.path, 0700); err != nil {
		listener.Close()
		return fmt.Errorf("failed to chmod socket: %w", err)
	}
	return nil
}

func (sl *SocketListener) Accept() (net.Conn, error) {
	if sl.listener == nil {
		return nil, fmt.Errorf("listener not started")
	}
	return sl.listener.Accept()
}

// Close stops listening and removes the socket file.
func (sl *SocketListener) Close() error {
	if sl.listener == nil {
		return nil
	}
	err := sl.listener.Close()
	if rerr := os.Remove(sl.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
		err = rerr
	}
	return err
}

func (sl *SocketListener) Path() string {
	return sl.path
}

type SocketConnector struct {
	path    string
	timeout time.Duration
}

func NewSocketConnector(socketPath string, timeout time.Duration) *SocketConnector {
	return &SocketConnector{
		path:    socketPath,
		timeout: timeout,
	}
}

func (sc *SocketConnector) Connect(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: sc.timeout}
	return d.DialContext(ctx, "unix", sc.path)
}

// WaitReady polls until the socket accepts a connection or ctx ends.
func (sc *SocketConnector) WaitReady(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		conn, err := sc.Connect(ctx)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon not ready at %s: %w", sc.path, err)
		case <-ticker.C:
		}
	}
}

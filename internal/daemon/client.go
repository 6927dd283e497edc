package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/misu-units/misu/internal/rpc"
)

// Connect opens an RPC client on the daemon socket and checks that the
// daemon answers.
func Connect(ctx context.Context, socketPath string, timeout time.Duration) (*rpc.Client, error) {
	conn, err := NewSocketConnector(socketPath, timeout).Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	client := rpc.NewClient(ctx, conn)

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := client.Health(hctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("daemon health check: %w", err)
	}
	return client, nil
}

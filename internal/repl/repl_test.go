package repl

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misu-units/misu/internal/rpc"
	"github.com/misu-units/misu/pkg/catalog"
)

const session = "6 kg / 3 s\n2 kg + 3 m\n\n17+34\nq\n2 kg\n"

func checkSession(t *testing.T, out string) {
	t.Helper()
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "Try some operations (q to end):", lines[0])
	assert.Equal(t, "> 2.0 kg/(s) = 7200 kg/hr", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "> Error: "), lines[2])
	assert.Contains(t, lines[2], "Units don't match: kg and m")
	assert.Contains(t, lines[3], "51.0")
	assert.Equal(t, "> Exiting...", lines[4])
	assert.NotContains(t, out, "2.0 kg\n", "input after q is not read")
}

func TestLocalSession(t *testing.T) {
	var out bytes.Buffer
	r := New(Local(catalog.Default()), strings.NewReader(session), &out)
	require.NoError(t, r.Run(context.Background()))
	checkSession(t, out.String())
}

func TestRemoteSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverSide, clientSide := net.Pipe()
	conn := rpc.NewServer(rpc.Static(catalog.Default())).ServeConn(ctx, serverSide)
	defer conn.Close()
	client := rpc.NewClient(ctx, clientSide)
	defer client.Close()

	var out bytes.Buffer
	r := New(Remote(client), strings.NewReader(session), &out)
	require.NoError(t, r.Run(ctx))
	checkSession(t, out.String())
}

func TestEndOfInput(t *testing.T) {
	var out bytes.Buffer
	r := New(Local(catalog.Default()), strings.NewReader("1 m"), &out)
	r.Quiet = true
	require.NoError(t, r.Run(context.Background()))
	assert.NotContains(t, out.String(), "Try some operations")
	assert.True(t, strings.HasPrefix(out.String(), "> 1.0 m = "))
	assert.True(t, strings.HasSuffix(out.String(), "\n> \n"))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(Local(catalog.Default()), strings.NewReader("1 m\n"), &bytes.Buffer{})
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
}

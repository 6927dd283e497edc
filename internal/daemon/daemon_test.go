package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misu-units/misu/internal/config"
	"github.com/misu-units/misu/internal/rpc"
	"github.com/misu-units/misu/internal/watcher"
	"github.com/misu-units/misu/pkg/catalog"
	"github.com/misu-units/misu/pkg/parser"
)

// Unix socket paths are length limited, so tests keep state under a short
// temp dir instead of t.TempDir.
func shortHome(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "misud")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(config.EnvHome, shortHome(t))
	cfg := config.Default()
	cfg.Watcher.DebounceWindow = 20 * time.Millisecond
	return cfg
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func render(t *testing.T, e *Engine, expr string) string {
	t.Helper()
	q, err := parser.Parse(expr, e.System())
	require.NoError(t, err)
	return q.String()
}

func TestEngineReload(t *testing.T) {
	dir := t.TempDir()
	sys, err := catalog.New()
	require.NoError(t, err)

	metrics := rpc.NewMetrics()
	e := NewEngine(sys, dir, nil, metrics)
	assert.True(t, sys.Frozen())
	assert.Equal(t, "9000 kg/hr", render(t, e, "2.5 kg/s"))

	rules := filepath.Join(dir, "flow.yaml")
	writeFile(t, rules, "represent:\n  - {unit: \"kg/s\", as: \"kg/s\", symbol: \"kg/s\"}\n")
	require.NoError(t, e.Reload(context.Background(), watcher.Batch{Changed: []string{rules}}))
	assert.Equal(t, "2.5 kg/s", render(t, e, "2.5 kg/s"))
	base, err := parser.Parse("2.5 kg/s", sys)
	require.NoError(t, err)
	assert.Equal(t, "9000 kg/hr", base.String(), "the base system keeps its own rules")

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "represent:\n  - {unit: \"kg/s\", as: \"m\"}\n")
	err = e.Reload(context.Background(), watcher.Batch{Changed: []string{bad}})
	require.Error(t, err)
	assert.Equal(t, "2.5 kg/s", render(t, e, "2.5 kg/s"), "a failed reload keeps the previous rules")

	require.NoError(t, os.Remove(bad))
	require.NoError(t, os.Remove(rules))
	require.NoError(t, e.Reload(context.Background(), watcher.Batch{Removed: []string{rules, bad}}))
	assert.Equal(t, "9000 kg/hr", render(t, e, "2.5 kg/s"), "removing the file restores the catalog rule")
}

func TestEngineReloadWithoutDirectory(t *testing.T) {
	sys, err := catalog.New()
	require.NoError(t, err)
	e := NewEngine(sys, filepath.Join(t.TempDir(), "missing"), nil, nil)
	require.NoError(t, e.Reload(context.Background(), watcher.Batch{}))
	assert.Equal(t, sys.Formats().Len(), e.System().Formats().Len())
}

func TestBuildSystemLoadsCatalogDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "site.yaml"), "units:\n  - {symbols: \"smoot\", expr: \"1.7018 * m\"}\n")

	sys, err := BuildSystem(true, []string{dir, filepath.Join(dir, "missing")}, nil)
	require.NoError(t, err)
	_, ok := sys.Lookup("smoot")
	assert.True(t, ok)

	writeFile(t, filepath.Join(dir, "broken.yaml"), "units:\n  - {symbols: \"x\", expr: \"nope\"}\n")
	_, err = BuildSystem(true, []string{dir}, nil)
	assert.Error(t, err)
}

func TestDaemonServesAndReloads(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	defer d.Shutdown()

	pid, running := d.lifecycle.PIDFile().Running()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	client, err := Connect(ctx, cfg.SocketPath, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	res, err := client.Eval(ctx, "2000 kPa", "")
	require.NoError(t, err)
	assert.Equal(t, "2e+06 Pa", res.Text)

	entry, err := client.WorksheetSet(ctx, "p", "2000 kPa")
	require.NoError(t, err)
	assert.Equal(t, "2e+06 Pa", entry.Value.Text)

	writeFile(t, filepath.Join(cfg.RepresentDir, "pressure.yaml"),
		"represent:\n  - {unit: \"Pa\", as: \"bar\", format: \".3g\"}\n")

	require.Eventually(t, func() bool {
		res, err := client.Eval(ctx, "2000 kPa", "")
		return err == nil && res.Text == "20 bar"
	}, 5*time.Second, 20*time.Millisecond)

	got, err := client.WorksheetGet(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "20 bar", got.Value.Text, "stored values render with the current rules")

	second, err := NewDaemon(cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, second.Start(ctx), ErrLockHeld)

	d.Shutdown()
	d.Wait()

	_, err = os.Stat(cfg.SocketPath)
	assert.True(t, os.IsNotExist(err), "socket removed")
	_, running = d.lifecycle.PIDFile().Running()
	assert.False(t, running)
}

func TestDaemonStopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watcher.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))

	cancel()
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}

func TestAcceptLoopExits(t *testing.T) {
	exits := func(t *testing.T, d *Daemon) {
		t.Helper()
		exited := make(chan struct{})
		go func() {
			d.acceptConnections(context.Background())
			close(exited)
		}()
		select {
		case <-exited:
		case <-time.After(5 * time.Second):
			t.Fatal("accept loop still running")
		}
	}

	t.Run("closed listener", func(t *testing.T) {
		d, err := NewDaemon(testConfig(t))
		require.NoError(t, err)
		require.NoError(t, d.listener.Start())
		require.NoError(t, d.listener.Close())
		exits(t, d)
	})

	t.Run("failing listener until shutdown", func(t *testing.T) {
		d, err := NewDaemon(testConfig(t))
		require.NoError(t, err)
		time.AfterFunc(50*time.Millisecond, func() { close(d.shutdown) })
		exits(t, d)
	})
}

func TestNextAcceptDelay(t *testing.T) {
	var delays []time.Duration
	var d time.Duration
	for i := 0; i < 10; i++ {
		d = nextAcceptDelay(d)
		delays = append(delays, d)
	}
	assert.Equal(t, 5*time.Millisecond, delays[0])
	assert.Equal(t, 10*time.Millisecond, delays[1])
	assert.Equal(t, maxAcceptDelay, delays[len(delays)-1])
	assert.IsNonDecreasing(t, delays)
}

func TestLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "misud.lock")
	first := NewLockFile(path)
	require.NoError(t, first.Acquire())
	assert.True(t, first.IsLocked())

	second := NewLockFile(path)
	assert.ErrorIs(t, second.Acquire(), ErrLockHeld)

	require.NoError(t, first.Release())
	assert.False(t, first.IsLocked())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestPIDFile(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), "misud.pid"))

	pid, err := p.Read()
	require.NoError(t, err)
	assert.Zero(t, pid)

	require.NoError(t, p.Write())
	pid, err = p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, p.Write(), "a stale file is replaced")
	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove(), "removing twice is fine")

	require.NoError(t, os.WriteFile(p.Path(), []byte("abc"), 0o600))
	_, err = p.Read()
	assert.Error(t, err)
}

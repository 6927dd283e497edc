// Package daemon runs misud: the unit engine behind a unix socket, with a
// worksheet database and hot-reloaded representation rules.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/misu-units/misu/internal/config"
	"github.com/misu-units/misu/internal/logger"
	"github.com/misu-units/misu/internal/rpc"
	"github.com/misu-units/misu/internal/store"
	"github.com/misu-units/misu/internal/watcher"
)

var log = logger.ForComponent("daemon")

type Daemon struct {
	cfg       *config.Config
	lifecycle *LifecycleManager
	listener  *SocketListener
	engine    *Engine
	store     *store.Store
	metrics   *rpc.Metrics
	server    *rpc.Server
	watcher   *watcher.Watcher
	httpSrv   *http.Server

	connections  map[*jsonrpc2.Conn]bool
	connMu       sync.Mutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	startTime    time.Time
}

func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Daemon{
		cfg:         cfg,
		lifecycle:   NewLifecycleManager(cfg.LockPath(), cfg.PIDPath(), cfg.SocketPath),
		listener:    NewSocketListener(cfg.SocketPath),
		metrics:     rpc.NewMetrics(),
		connections: make(map[*jsonrpc2.Conn]bool),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start brings every component up and begins accepting connections. It
// returns once the socket is listening; Wait blocks until shutdown.
func (d *Daemon) Start(ctx context.Context) (err error) {
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	if err := d.lifecycle.AcquireInstanceLock(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			d.listener.Close()
			d.closeComponents()
			d.lifecycle.Cleanup()
		}
	}()

	sys, err := BuildSystem(d.cfg.Catalog.Builtin, d.cfg.Catalog.Dirs, d.cfg.Catalog.Patterns)
	if err != nil {
		return fmt.Errorf("failed to build unit system: %w", err)
	}

	d.engine = NewEngine(sys, d.cfg.RepresentDir, d.cfg.Watcher.Patterns, d.metrics)
	if err := d.engine.Reload(ctx, watcher.Batch{}); err != nil {
		log.Warn("representation rules not loaded", "error", err)
	}

	if d.store, err = store.Open(d.cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to open worksheet: %w", err)
	}

	d.server = rpc.NewServer(d.engine,
		rpc.WithStore(d.store),
		rpc.WithMetrics(d.metrics),
		rpc.WithTimeout(d.cfg.RequestTimeout))

	if d.cfg.Watcher.Enabled && d.cfg.RepresentDir != "" {
		if err := d.startWatcher(ctx); err != nil {
			return err
		}
	}

	if d.cfg.Metrics.Enabled {
		if err := d.startMetrics(); err != nil {
			return err
		}
	}

	if err := d.listener.Start(); err != nil {
		return err
	}
	if err := d.lifecycle.RegisterRunningDaemon(); err != nil {
		return err
	}

	d.startTime = time.Now()
	go d.acceptConnections(ctx)
	go func() {
		select {
		case <-ctx.Done():
			d.Shutdown()
		case <-d.shutdown:
		}
	}()

	log.Info("daemon started",
		"socket", d.cfg.SocketPath,
		"units", sys.Registry().Len(),
		"categories", sys.Categories().Len())
	return nil
}

func (d *Daemon) startWatcher(ctx context.Context) error {
	w, err := watcher.New(d.cfg.Watcher, d.engine)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.AddRoot(d.cfg.RepresentDir); err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch %s: %w", d.cfg.RepresentDir, err)
	}
	d.watcher = w
	return w.Start(ctx)
}

func (d *Daemon) startMetrics() error {
	ln, err := net.Listen("tcp", d.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	d.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := d.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	log.Info("metrics listening", "addr", ln.Addr().String())
	return nil
}

const maxAcceptDelay = time.Second

func (d *Daemon) acceptConnections(ctx context.Context) {
	var delay time.Duration
	for {
		nc, err := d.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			delay = nextAcceptDelay(delay)
			log.Debug("accept failed", "error", err, "retry", delay)
			select {
			case <-d.shutdown:
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		d.connMu.Lock()
		if limit := d.cfg.MaxConnections; limit > 0 && len(d.connections) >= limit {
			d.connMu.Unlock()
			log.Warn("connection limit reached", "max", limit)
			nc.Close()
			continue
		}
		conn := d.server.ServeConn(ctx, nc)
		d.connections[conn] = true
		d.connMu.Unlock()

		go func() {
			<-conn.DisconnectNotify()
			d.connMu.Lock()
			delete(d.connections, conn)
			d.connMu.Unlock()
		}()
	}
}

// Shutdown stops accepting, closes open connections and releases the
// instance files. It is safe to call more than once.
func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() {
		log.Info("daemon shutting down")
		close(d.shutdown)

		d.listener.Close()

		d.connMu.Lock()
		for conn := range d.connections {
			conn.Close()
		}
		d.connMu.Unlock()

		d.closeComponents()
		d.lifecycle.Cleanup()
		close(d.done)
	})
}

func (d *Daemon) closeComponents() {
	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	if d.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		d.httpSrv.Shutdown(ctx)
		cancel()
		d.httpSrv = nil
	}
	if d.store != nil {
		d.store.Close()
		d.store = nil
	}
}

// Wait blocks until Shutdown has finished.
func (d *Daemon) Wait() {
	<-d.done
}

func (d *Daemon) SocketPath() string {
	return d.cfg.SocketPath
}

func (d *Daemon) Engine() *Engine {
	return d.engine
}

func (d *Daemon) Metrics() *rpc.Metrics {
	return d.metrics
}

func (d *Daemon) Uptime() time.Duration {
	if d.startTime.IsZero() {
		return 0
	}
	return time.Since(d.startTime)
}

func (d *Daemon) ConnectionCount() int {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	return len(d.connections)
}

// nextAcceptDelay doubles prev from 5ms up to maxAcceptDelay.
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	if prev *= 2; prev > maxAcceptDelay {
		prev = maxAcceptDelay
	}
	return prev
}

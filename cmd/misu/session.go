package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/text/language"

	"github.com/misu-units/misu/internal/config"
	"github.com/misu-units/misu/internal/daemon"
	"github.com/misu-units/misu/internal/logger"
	"github.com/misu-units/misu/internal/rpc"
	"github.com/misu-units/misu/internal/store"
	"github.com/misu-units/misu/pkg/numfmt"
	"github.com/misu-units/misu/pkg/units"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	useDaemon  bool
	output     string
	logLevel   string

	cfg *config.Config
	sys *units.System

	closers []func() error
}

func (a *app) setup() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logCfg, err := logger.ConfigFrom(level, a.cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	logger.Init(logCfg)

	tag, err := language.Parse(a.cfg.Locale)
	if err != nil {
		return fmt.Errorf("locale %q: %w", a.cfg.Locale, err)
	}
	numfmt.SetLocale(tag)

	switch a.output {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output %q (want text or json)", a.output)
	}
	return nil
}

// system builds the in-process unit system on first use.
func (a *app) system() (*units.System, error) {
	if a.sys != nil {
		return a.sys, nil
	}
	sys, err := daemon.BuildSystem(a.cfg.Catalog.Builtin, a.cfg.Catalog.Dirs, a.cfg.Catalog.Patterns)
	if err != nil {
		return nil, err
	}
	a.sys = sys
	return sys, nil
}

// client returns a connection to misud when --daemon is set. Otherwise the
// same RPC server runs in process over a pipe, so both modes share one code
// path. The worksheet database is only opened when withStore is set.
func (a *app) client(ctx context.Context, withStore bool) (*rpc.Client, error) {
	if a.useDaemon {
		c, err := daemon.Connect(ctx, a.cfg.SocketPath, a.cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w (is misud running? try \"misu daemon start\")", err)
		}
		a.onClose(c.Close)
		return c, nil
	}

	sys, err := a.system()
	if err != nil {
		return nil, err
	}

	var opts []rpc.Option
	if withStore {
		if err := a.cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		st, err := store.Open(a.cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.onClose(st.Close)
		opts = append(opts, rpc.WithStore(st))
	}

	serverSide, clientSide := net.Pipe()
	conn := rpc.NewServer(rpc.Static(sys), opts...).ServeConn(ctx, serverSide)
	c := rpc.NewClient(ctx, clientSide)
	a.onClose(conn.Close)
	a.onClose(c.Close)
	return c, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases everything opened for the command. A pipe closes from
// both ends, so errors are only logged.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Debug("close", "error", err)
		}
	}
	a.closers = nil
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/misu-units/misu/internal/rpc"
	"github.com/misu-units/misu/internal/watcher"
	"github.com/misu-units/misu/pkg/catalog"
	"github.com/misu-units/misu/pkg/represent"
	"github.com/misu-units/misu/pkg/units"
)

// Engine owns the unit system requests run against. Units and categories
// are frozen at start-up; the formatting context is rebuilt from the
// representation directory on every reload and swapped in whole, so a
// request never sees a half-applied set of rules.
type Engine struct {
	base     *units.System
	baseline *represent.Cache
	dir      string
	patterns []string
	metrics  *rpc.Metrics

	current atomic.Pointer[units.System]
	mu      sync.Mutex
}

// NewEngine freezes base and remembers its current rules as the baseline
// each reload starts from.
func NewEngine(base *units.System, representDir string, patterns []string, metrics *rpc.Metrics) *Engine {
	base.Freeze()
	e := &Engine{
		base:     base,
		baseline: base.Formats().Clone(),
		dir:      representDir,
		patterns: patterns,
		metrics:  metrics,
	}
	e.current.Store(base.WithFormats(e.baseline.Clone()))
	return e
}

func (e *Engine) System() *units.System {
	return e.current.Load()
}

// Reload implements watcher.Reloader. The batch only says that something
// changed; all files are read again because removing a rule has to fall
// back to whatever the remaining files and the catalog say.
func (e *Engine) Reload(ctx context.Context, batch watcher.Batch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := e.base.WithFormats(e.baseline.Clone())
	var loaded []string
	if e.dir != "" {
		if _, err := os.Stat(e.dir); err == nil {
			paths, err := catalog.LoadRepresentFiles(next, e.dir, e.patterns)
			if err != nil {
				e.metrics.Reloaded(err, 0)
				return fmt.Errorf("reload %s: %w", e.dir, err)
			}
			loaded = paths
		} else if !errors.Is(err, os.ErrNotExist) {
			e.metrics.Reloaded(err, 0)
			return fmt.Errorf("reload %s: %w", e.dir, err)
		}
	}

	e.current.Store(next)
	e.metrics.Reloaded(nil, next.Formats().Len())
	log.Info("representation rules loaded",
		"files", len(loaded),
		"rules", next.Formats().Len(),
		"changed", len(batch.Changed),
		"removed", len(batch.Removed))
	return nil
}

// BuildSystem creates the unit system described by the catalog settings:
// the embedded catalog when builtin is set, then every matching file in
// dirs. Missing directories are skipped.
func BuildSystem(builtin bool, dirs, patterns []string) (*units.System, error) {
	var sys *units.System
	if builtin {
		var err error
		if sys, err = catalog.New(); err != nil {
			return nil, err
		}
	} else {
		sys = units.NewSystem()
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			log.Debug("catalog directory missing", "dir", dir)
			continue
		}
		paths, err := catalog.LoadFiles(sys, dir, patterns)
		if err != nil {
			return nil, err
		}
		log.Info("catalog loaded", "dir", dir, "files", len(paths))
	}
	return sys, nil
}

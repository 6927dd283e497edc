package units

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"unicode"

	"github.com/misu-units/misu/pkg/quantity"
)

var ErrUnknownUnit = errors.New("unknown unit")

// UnknownUnitError names the symbol that failed to resolve.
type UnknownUnitError struct {
	Symbol string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unknown unit: %s", e.Symbol)
}

func (e *UnknownUnitError) Unwrap() error { return ErrUnknownUnit }

// Definition is one registered unit. Synonyms share a single Definition.
type Definition struct {
	Symbols  []string
	Quantity quantity.Quantity
	Category string
	Notes    string

	// Set for units generated from a stem by a metric prefix.
	Prefix *Prefix
	Stem   string
}

// Display is the first symbol, the one used when rendering.
func (d *Definition) Display() string {
	return d.Symbols[0]
}

// Registry maps symbols to unit definitions. Registering a symbol again
// replaces the earlier definition.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]*Definition),
	}
}

// Register files def under every one of its symbols.
func (r *Registry) Register(def *Definition) error {
	if err := checkSymbols(def.Symbols); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sym := range def.Symbols {
		if prev, exists := r.defs[sym]; exists {
			if prev == def {
				continue
			}
			slog.Debug("unit symbol redefined", "symbol", sym, "previous", prev.Display(), "now", def.Display())
		} else {
			r.order = append(r.order, sym)
		}
		r.defs[sym] = def
	}
	return nil
}

func (r *Registry) Get(sym string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[sym]
	return def, ok
}

// Symbols returns every registered symbol in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ordered returns symbols in first-registration order.
func (r *Registry) Ordered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// checkSymbols reports the first symbol Register would reject.
func checkSymbols(syms []string) error {
	if len(syms) == 0 {
		return fmt.Errorf("unit definition has no symbols")
	}
	for _, sym := range syms {
		if !validSymbol(sym) {
			return fmt.Errorf("invalid unit symbol: %q", sym)
		}
	}
	return nil
}

func validSymbol(sym string) bool {
	if sym == "" {
		return false
	}
	for i, c := range sym {
		switch {
		case c == '_' || unicode.IsLetter(c):
		case unicode.IsDigit(c) && i > 0:
		default:
			return false
		}
	}
	return true
}

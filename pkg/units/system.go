// Package units owns the unit registry and bundles it with the category
// registry and a representation cache into a System, the value through
// which units are defined, looked up, categorised and rendered.
//
// A System is built by calling CreateUnit, AddType and SetRepresent in
// definition order, then frozen. Later definitions are usually expressed
// over earlier symbols, so order matters.
package units

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/misu-units/misu/pkg/category"
	"github.com/misu-units/misu/pkg/numfmt"
	"github.com/misu-units/misu/pkg/quantity"
	"github.com/misu-units/misu/pkg/represent"
)

var ErrFrozen = errors.New("unit system is frozen")

type System struct {
	units      *Registry
	categories *category.Registry
	formats    *represent.Cache
	frozen     *atomic.Bool
}

func NewSystem() *System {
	return &System{
		units:      NewRegistry(),
		categories: category.NewRegistry(),
		formats:    represent.New(),
		frozen:     new(atomic.Bool),
	}
}

// WithFormats returns a view sharing units and categories with s but
// rendering through cache. Rules set on the view do not affect s.
func (s *System) WithFormats(cache *represent.Cache) *System {
	view := *s
	view.formats = cache
	return &view
}

func (s *System) Formats() *represent.Cache { return s.formats }

func (s *System) Categories() *category.Registry { return s.categories }

func (s *System) Registry() *Registry { return s.units }

// Freeze ends the definition phase. CreateUnit and AddType fail with
// ErrFrozen afterwards; SetRepresent stays available.
func (s *System) Freeze() {
	s.frozen.Store(true)
}

func (s *System) Frozen() bool {
	return s.frozen.Load()
}

type unitOptions struct {
	prefixes bool
	skip     func(Prefix) bool
	stems    []string
	dims     map[string]float64
	category string
	notes    string
}

type UnitOption func(*unitOptions)

// WithPrefixes also creates every SI-prefixed variant of the first symbol.
func WithPrefixes() UnitOption {
	return func(o *unitOptions) {
		o.prefixes = true
	}
}

// WithPrefixSkip excludes prefixes for which skip returns true.
func WithPrefixSkip(skip func(Prefix) bool) UnitOption {
	return func(o *unitOptions) {
		o.prefixes = true
		o.skip = skip
	}
}

// WithPrefixStems prefixes each of stems instead of the first symbol, so
// "mol mole" can yield both kmol and kmole.
func WithPrefixStems(stems ...string) UnitOption {
	return func(o *unitOptions) {
		o.prefixes = true
		o.stems = stems
	}
}

// WithDimensions assigns base exponents to the prototype; used for the
// base units themselves.
func WithDimensions(exps map[string]float64) UnitOption {
	return func(o *unitOptions) {
		o.dims = exps
	}
}

// WithCategory registers the prototype's vector under name and makes the
// unit its default representation.
func WithCategory(name string) UnitOption {
	return func(o *unitOptions) {
		o.category = name
	}
}

func WithNotes(notes string) UnitOption {
	return func(o *unitOptions) {
		o.notes = notes
	}
}

// CreateUnit registers the space separated symbols as synonyms of q. The
// first symbol is the display symbol and the stem for prefixes.
func (s *System) CreateUnit(symbols string, q quantity.Value, opts ...UnitOption) error {
	if s.Frozen() {
		return fmt.Errorf("create unit %q: %w", symbols, ErrFrozen)
	}
	var o unitOptions
	for _, opt := range opts {
		opt(&o)
	}

	syms := strings.Fields(symbols)
	if len(syms) == 0 {
		return fmt.Errorf("create unit: no symbols given")
	}
	// Symbols are checked before the category and rule are installed so a
	// rejected unit leaves nothing behind.
	if err := checkSymbols(syms); err != nil {
		return fmt.Errorf("create unit %q: %w", symbols, err)
	}
	proto := quantity.Coerce(q).WithRenderer(nil)
	if o.dims != nil {
		var err error
		if proto, err = proto.WithDimensions(o.dims); err != nil {
			return fmt.Errorf("create unit %s: %w", syms[0], err)
		}
	}

	if o.category != "" {
		if err := s.categories.Add(proto, o.category); err != nil {
			return fmt.Errorf("create unit %s: %w", syms[0], err)
		}
		if err := s.formats.Set(proto, represent.AsUnit(proto), represent.Symbol(syms[0])); err != nil {
			return fmt.Errorf("create unit %s: %w", syms[0], err)
		}
	}

	def := &Definition{
		Symbols:  syms,
		Quantity: proto,
		Category: o.category,
		Notes:    o.notes,
	}
	if err := s.units.Register(def); err != nil {
		return err
	}

	if !o.prefixes {
		return nil
	}
	stems := o.stems
	if len(stems) == 0 {
		stems = syms[:1]
	}
	for _, stem := range stems {
		if err := s.createPrefixed(stem, proto, o.skip); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) createPrefixed(stem string, q quantity.Quantity, skip func(Prefix) bool) error {
	for _, p := range Prefixes {
		if skip != nil && skip(p) {
			continue
		}
		p := p
		def := &Definition{
			Symbols:  []string{p.Symbol + stem},
			Quantity: q.Scale(p.Factor),
			Prefix:   &p,
			Stem:     stem,
		}
		if err := s.units.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// AddType registers a category name for q's dimension vector.
func (s *System) AddType(q quantity.Value, name string) error {
	if s.Frozen() {
		return fmt.Errorf("add type %q: %w", name, ErrFrozen)
	}
	return s.categories.Add(quantity.Coerce(q), name)
}

// SetRepresent installs a representation rule on the system's cache. It
// affects every quantity rendered through that cache.
func (s *System) SetRepresent(q quantity.Value, opts ...represent.Option) error {
	return s.formats.Set(quantity.Coerce(q), opts...)
}

// Category returns the category name of q.
func (s *System) Category(q quantity.Value) (string, error) {
	return s.categories.Of(s.Bind(quantity.Coerce(q)))
}

// Bind attaches the system's formatting context to q.
func (s *System) Bind(q quantity.Quantity) quantity.Quantity {
	return s.formats.Bind(q)
}

// Lookup resolves a symbol to its prototype quantity.
func (s *System) Lookup(sym string) (quantity.Quantity, bool) {
	def, ok := s.units.Get(sym)
	if !ok {
		return quantity.Quantity{}, false
	}
	return s.Bind(def.Quantity), true
}

// Unit is Lookup with an UnknownUnitError on failure.
func (s *System) Unit(sym string) (quantity.Quantity, error) {
	q, ok := s.Lookup(sym)
	if !ok {
		return quantity.Quantity{}, &UnknownUnitError{Symbol: sym}
	}
	return q, nil
}

// MustUnit panics when sym is not registered. Meant for fixed catalogs.
func (s *System) MustUnit(sym string) quantity.Quantity {
	q, err := s.Unit(sym)
	if err != nil {
		panic(err)
	}
	return q
}

func (s *System) Definition(sym string) (*Definition, bool) {
	return s.units.Get(sym)
}

func (s *System) Symbols() []string {
	return s.units.Symbols()
}

// Convert expresses q in the named unit as "<ratio> <symbol>".
func (s *System) Convert(q quantity.Value, sym string) (string, error) {
	target, err := s.Unit(sym)
	if err != nil {
		return "", err
	}
	ratio, err := s.Bind(quantity.Coerce(q)).Convert(target)
	if err != nil {
		return "", err
	}
	if v, ok := ratio.Float(); ok {
		return numfmt.Repr(v) + " " + sym, nil
	}
	return ratio.String() + " " + sym, nil
}

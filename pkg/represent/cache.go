// Package represent holds representation rules: how quantities of a given
// dimension vector are converted, labelled and formatted when rendered.
//
// A Cache is the formatting context a quantity.Quantity carries. Setting a
// rule changes the rendering of every quantity bound to that cache with
// that vector, including ones created earlier.
package represent

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/misu-units/misu/pkg/dimension"
	"github.com/misu-units/misu/pkg/numfmt"
	"github.com/misu-units/misu/pkg/quantity"
)

// DefaultFormat is the number spec used when a rule is set without one.
const DefaultFormat = ".4g"

var ErrNoRepresentTarget = errors.New("represent: either a target unit or a conversion function is required")

type settings struct {
	target    *quantity.Quantity
	convert   quantity.ConvertFunc
	symbol    string
	format    string
	hasFormat bool
	offset    float64
}

type Option func(*settings)

// AsUnit renders magnitudes as multiples of target, which must have the
// same dimension vector as the represented quantity.
func AsUnit(target quantity.Quantity) Option {
	return func(s *settings) {
		s.target = &target
	}
}

// ConvertWith installs a custom conversion. AsUnit is ignored when present.
func ConvertWith(fn quantity.ConvertFunc) Option {
	return func(s *settings) {
		s.convert = fn
	}
}

func Symbol(sym string) Option {
	return func(s *settings) {
		s.symbol = sym
	}
}

func Format(spec string) Option {
	return func(s *settings) {
		s.format = spec
		s.hasFormat = true
	}
}

// Offset is added after proportional conversion, for displays such as
// degrees Celsius over kelvin.
func Offset(k float64) Option {
	return func(s *settings) {
		s.offset = k
	}
}

type Cache struct {
	mu    sync.RWMutex
	rules map[dimension.Vector]quantity.Rule
}

func New() *Cache {
	return &Cache{
		rules: make(map[dimension.Vector]quantity.Rule),
	}
}

// Set installs the rule for q's dimension vector, replacing any earlier one.
func (c *Cache) Set(q quantity.Quantity, opts ...Option) error {
	s := settings{format: DefaultFormat}
	for _, opt := range opts {
		opt(&s)
	}
	if s.hasFormat && s.format == "" {
		s.format = DefaultFormat
	}
	if _, err := numfmt.Parse(s.format); err != nil {
		return fmt.Errorf("represent %s: %w", s.symbol, err)
	}

	convert := s.convert
	if convert == nil {
		if s.target == nil {
			return ErrNoRepresentTarget
		}
		if q.Units() != s.target.Units() {
			_, err := q.Convert(*s.target)
			return err
		}
		factor, ok := s.target.Magnitude().Float()
		if !ok {
			return fmt.Errorf("represent %s: %w", s.symbol, quantity.ErrNotScalar)
		}
		offset := s.offset
		convert = func(_ quantity.Quantity, mag quantity.Magnitude) quantity.Magnitude {
			return mag.Apply(func(x float64) float64 { return x/factor + offset })
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[q.Units()] = quantity.Rule{
		Convert:    convert,
		Symbol:     s.symbol,
		FormatSpec: s.format,
	}
	return nil
}

// Rule implements quantity.Renderer.
func (c *Cache) Rule(dim dimension.Vector) (quantity.Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[dim]
	return r, ok
}

func (c *Cache) Delete(dim dimension.Vector) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rules[dim]
	delete(c.rules, dim)
	return ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

// Bind attaches the cache to q as its formatting context.
func (c *Cache) Bind(q quantity.Quantity) quantity.Quantity {
	return q.WithRenderer(c)
}

// Clone returns an independent cache holding the same rules.
func (c *Cache) Clone() *Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := New()
	for dim, r := range c.rules {
		out.rules[dim] = r
	}
	return out
}

// Entry is one rule as reported by Snapshot.
type Entry struct {
	Dimension dimension.Vector
	Symbol    string
	Format    string
}

// Snapshot lists the installed rules sorted by symbol.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.rules))
	for dim, r := range c.rules {
		out = append(out, Entry{Dimension: dim, Symbol: r.Symbol, Format: r.FormatSpec})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Dimension.String() < out[j].Dimension.String()
	})
	return out
}

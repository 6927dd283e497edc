// Package signature checks the physical category of function arguments
// before the function runs.
//
//	re := signature.Dimensions(sys, map[string]string{
//		"rho": "Mass density",
//		"v":   "Velocity",
//		"L":   "Length",
//		"mu":  "Dynamic viscosity",
//	}, signature.Params("rho", "v", "L", "mu"))(reynolds)
//
//	out, err := re.Call([]any{rho, v, L, mu}, nil)
package signature

import (
	"errors"
	"fmt"
	"sort"

	"github.com/misu-units/misu/pkg/quantity"
)

var ErrValidation = errors.New("argument validation failed")

// Reasons reported in ValidationError.
const (
	ReasonMissing     = "missing"
	ReasonNotQuantity = "must be an instance of Quantity"
	ReasonCategory    = "must be unit type"
	ReasonUnknown     = "unexpected argument"
	ReasonDuplicate   = "given more than once"
	ReasonTooMany     = "too many positional arguments"
)

type ValidationError struct {
	Param    string
	Category string
	Reason   string
	// Actual is the category the argument turned out to have, if any.
	Actual string
	Err    error
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonNotQuantity:
		return fmt.Sprintf("Parameter %q must be an instance of class Quantity (and must be of unit type %q).", e.Param, e.Category)
	case ReasonCategory:
		return fmt.Sprintf("Parameter %q must be unit type %q.", e.Param, e.Category)
	case ReasonMissing:
		return fmt.Sprintf("Parameter %q is missing.", e.Param)
	}
	return fmt.Sprintf("Parameter %q: %s.", e.Param, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// Categorizer names the physical category of a quantity. *units.System
// satisfies it.
type Categorizer interface {
	Category(q quantity.Value) (string, error)
}

// Args are the bound arguments handed to the wrapped function.
type Args map[string]any

// Quantity returns the named argument if it is a quantity.
func (a Args) Quantity(name string) (quantity.Quantity, bool) {
	q, ok := a[name].(quantity.Quantity)
	return q, ok
}

// Float returns the named argument as a plain number.
func (a Args) Float(name string) (float64, bool) {
	switch v := a[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case quantity.Number:
		return float64(v), true
	}
	return 0, false
}

type Func func(Args) (quantity.Value, error)

type config struct {
	params   []string
	defaults map[string]any
}

type Option func(*config)

// Params declares parameter names in positional order.
func Params(names ...string) Option {
	return func(c *config) {
		c.params = append(c.params, names...)
	}
}

// Default supplies a value for name when the caller omits it.
func Default(name string, v any) Option {
	return func(c *config) {
		if c.defaults == nil {
			c.defaults = make(map[string]any)
		}
		c.defaults[name] = v
	}
}

// Checked is a function guarded by declared argument categories.
type Checked struct {
	reg        Categorizer
	categories map[string]string
	order      []string
	cfg        config
	fn         Func
}

// Dimensions returns a wrapper that validates the categories of the named
// arguments against reg before calling the function.
func Dimensions(reg Categorizer, categories map[string]string, opts ...Option) func(Func) *Checked {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	cats := make(map[string]string, len(categories))
	for k, v := range categories {
		cats[k] = v
	}
	order := checkOrder(cfg.params, cats)

	return func(fn Func) *Checked {
		return &Checked{reg: reg, categories: cats, order: order, cfg: cfg, fn: fn}
	}
}

// checkOrder validates declared parameters first, then any remaining
// categorised names alphabetically.
func checkOrder(params []string, cats map[string]string) []string {
	seen := make(map[string]bool, len(cats))
	var order []string
	for _, p := range params {
		if _, ok := cats[p]; ok && !seen[p] {
			order = append(order, p)
			seen[p] = true
		}
	}
	var rest []string
	for name := range cats {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Call binds positional arguments to the declared parameters in order,
// merges keywords and defaults, validates, then invokes the function.
func (c *Checked) Call(positional []any, keywords map[string]any) (quantity.Value, error) {
	args, err := c.bind(positional, keywords)
	if err != nil {
		return nil, err
	}
	if err := c.validate(args); err != nil {
		return nil, err
	}
	return c.fn(args)
}

// Must is Call for callers that treat validation failure as a bug.
func (c *Checked) Must(positional []any, keywords map[string]any) quantity.Value {
	v, err := c.Call(positional, keywords)
	if err != nil {
		panic(err)
	}
	return v
}

func (c *Checked) bind(positional []any, keywords map[string]any) (Args, error) {
	if len(positional) > len(c.cfg.params) {
		return nil, &ValidationError{Param: fmt.Sprintf("#%d", len(c.cfg.params)), Reason: ReasonTooMany}
	}

	args := make(Args, len(positional)+len(keywords)+len(c.cfg.defaults))
	for i, v := range positional {
		args[c.cfg.params[i]] = v
	}

	declared := make(map[string]bool, len(c.cfg.params))
	for _, p := range c.cfg.params {
		declared[p] = true
	}
	for k, v := range keywords {
		if _, dup := args[k]; dup {
			return nil, &ValidationError{Param: k, Category: c.categories[k], Reason: ReasonDuplicate}
		}
		if len(declared) > 0 && !declared[k] {
			return nil, &ValidationError{Param: k, Reason: ReasonUnknown}
		}
		args[k] = v
	}

	for k, v := range c.cfg.defaults {
		if _, ok := args[k]; !ok {
			args[k] = v
		}
	}
	return args, nil
}

func (c *Checked) validate(args Args) error {
	for _, name := range c.order {
		want := c.categories[name]
		v, ok := args[name]
		if !ok {
			return &ValidationError{Param: name, Category: want, Reason: ReasonMissing}
		}
		q, ok := v.(quantity.Quantity)
		if !ok {
			return &ValidationError{Param: name, Category: want, Reason: ReasonNotQuantity}
		}
		got, err := c.reg.Category(q)
		if err != nil {
			return &ValidationError{Param: name, Category: want, Reason: ReasonCategory, Err: err}
		}
		if got != want {
			return &ValidationError{Param: name, Category: want, Reason: ReasonCategory, Actual: got}
		}
	}
	return nil
}

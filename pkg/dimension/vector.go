// Package dimension defines the exponent vector over the seven SI base
// dimensions that decides whether two quantities are compatible.
package dimension

import (
	"errors"
	"fmt"
	"strings"

	"github.com/misu-units/misu/pkg/numfmt"
)

// Count is the number of SI base dimensions.
const Count = 7

// Base indexes a component of a Vector.
type Base int

const (
	Length Base = iota
	Mass
	Time
	Current
	Temperature
	Luminosity
	Substance
)

// Symbols are the base unit symbols in vector order.
var Symbols = [Count]string{"m", "kg", "s", "A", "K", "ca", "mole"}

var ErrUnknownBase = errors.New("dimension: unknown base symbol")

// Vector holds one exponent per base dimension. It is a comparable value,
// so it can key maps directly; exponents need not be integers.
type Vector [Count]float64

// Dimensionless is the zero vector.
var Dimensionless Vector

// New builds a vector from a base-symbol to exponent mapping, e.g.
// {"kg": 1, "s": -1}.
func New(exps map[string]float64) (Vector, error) {
	var v Vector
	for sym, e := range exps {
		b, ok := BaseOf(sym)
		if !ok {
			return Vector{}, fmt.Errorf("%w %q", ErrUnknownBase, sym)
		}
		v[b] = e
	}
	return v, nil
}

// BaseOf returns the index of a base symbol.
func BaseOf(sym string) (Base, bool) {
	for i, s := range Symbols {
		if s == sym {
			return Base(i), true
		}
	}
	return 0, false
}

// Of returns the unit vector of a single base dimension.
func Of(b Base) Vector {
	var v Vector
	v[b] = 1
	return v
}

func (v Vector) Add(o Vector) Vector {
	for i := range v {
		v[i] += o[i]
	}
	return v
}

func (v Vector) Sub(o Vector) Vector {
	for i := range v {
		v[i] -= o[i]
	}
	return v
}

func (v Vector) Scale(k float64) Vector {
	for i := range v {
		v[i] *= k
	}
	return v
}

func (v Vector) Equal(o Vector) bool {
	return v == o
}

func (v Vector) IsZero() bool {
	return v == Dimensionless
}

func (v Vector) Exponent(b Base) float64 {
	return v[b]
}

// Map returns the nonzero exponents keyed by base symbol.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64)
	for i, e := range v {
		if e != 0 {
			m[Symbols[i]] = e
		}
	}
	return m
}

// String renders the nonzero exponents in base order, e.g. "m^-0.5 kg^1.0".
// The dimensionless vector renders as the empty string.
func (v Vector) String() string {
	parts := make([]string, 0, Count)
	for i, e := range v {
		if e == 0 {
			continue
		}
		parts = append(parts, Symbols[i]+"^"+numfmt.Repr(e))
	}
	return strings.Join(parts, " ")
}

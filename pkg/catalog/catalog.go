// Package catalog holds the built-in unit definitions and loads further
// definition and representation files into a units.System.
//
// A definition file is YAML:
//
//	encoding: latin1          # optional, for files that are not UTF-8
//	units:
//	  - {symbols: "ft foot feet", expr: "0.3048 * m"}
//	  - {symbols: "N newton", expr: "kg * m / s**2", prefixes: true, category: "Force"}
//	represent:
//	  - {unit: "Pa", as: "bar", symbol: "bar", format: ".3g"}
//
// Entries are applied in order and each expression may use any symbol
// defined before it.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/misu-units/misu/pkg/quantity"
	"github.com/misu-units/misu/pkg/units"
)

//go:embed data/builtin.yaml
var builtin []byte

// BuiltinName is the name under which the embedded catalog reports errors.
const BuiltinName = "builtin.yaml"

var (
	defaultOnce   sync.Once
	defaultSystem *units.System
)

// New builds an unfrozen system holding the built-in catalog.
func New() (*units.System, error) {
	sys := units.NewSystem()
	if err := LoadBytes(sys, builtin, BuiltinName); err != nil {
		return nil, err
	}
	return sys, nil
}

// Default returns the process-wide system built from the built-in catalog.
// It is frozen; representation rules may still be changed on it, or on a
// private view obtained with WithFormats.
func Default() *units.System {
	defaultOnce.Do(func() {
		sys, err := New()
		if err != nil {
			panic(fmt.Sprintf("catalog: built-in definitions: %v", err))
		}
		sys.Freeze()
		defaultSystem = sys
	})
	return defaultSystem
}

// Builtin returns a copy of the embedded definition file.
func Builtin() []byte {
	return append([]byte(nil), builtin...)
}

// Celsius is the absolute temperature for a reading in degrees Celsius.
func Celsius(sys *units.System, c float64) quantity.Quantity {
	return sys.MustUnit("K").Scale(c + 273.15)
}

// CelsiusChange is a temperature difference given in degrees Celsius.
func CelsiusChange(sys *units.System, c float64) quantity.Quantity {
	return sys.MustUnit("K").Scale(c)
}

func Fahrenheit(sys *units.System, f float64) quantity.Quantity {
	return sys.MustUnit("R").Scale(f + 459.67)
}

func FahrenheitChange(sys *units.System, f float64) quantity.Quantity {
	return sys.MustUnit("R").Scale(f)
}

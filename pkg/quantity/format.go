package quantity

import (
	"fmt"
	"io"
	"strings"

	"github.com/misu-units/misu/pkg/dimension"
	"github.com/misu-units/misu/pkg/numfmt"
)

// DefaultArraySpec formats array elements when no explicit spec is given.
const DefaultArraySpec = ".3g"

// ConvertFunc maps a magnitude in SI base units to its display value.
// It receives the quantity being rendered for conversions that need it.
type ConvertFunc func(q Quantity, mag Magnitude) Magnitude

// Rule is how quantities of one dimension vector are presented.
type Rule struct {
	Convert    ConvertFunc
	Symbol     string
	FormatSpec string
}

// Renderer looks up the presentation rule for a dimension vector.
type Renderer interface {
	Rule(dim dimension.Vector) (Rule, bool)
}

func (q Quantity) representation() (Magnitude, string, string) {
	if q.rules != nil {
		if r, ok := q.rules.Rule(q.dim); ok {
			mag := q.mag
			if r.Convert != nil {
				mag = r.Convert(q, q.mag)
			}
			return mag, r.Symbol, r.FormatSpec
		}
	}
	return q.mag, q.dim.String(), ""
}

// Symbol is the unit text that follows the number when q is rendered.
func (q Quantity) Symbol() string {
	_, sym, _ := q.representation()
	return sym
}

// String renders q with its formatting context, e.g. "9000 kg/hr", or
// with the synthesized exponent list when no rule applies.
func (q Quantity) String() string {
	s, err := q.FormatSpec("")
	if err != nil {
		return fmt.Sprintf("%s %s", q.mag, q.dim)
	}
	return s
}

// FormatSpec renders q with a format spec such as ".3f" or "<20.2e".
// Number options override the rule's stored spec; width and alignment apply
// to the whole "number symbol" text.
func (q Quantity) FormatSpec(spec string) (string, error) {
	s, err := numfmt.Parse(spec)
	if err != nil {
		return "", err
	}
	return q.render(s)
}

// Format implements fmt.Formatter: %v and %s use the stored spec, while
// %f %e %g and friends map onto the equivalent format spec.
func (q Quantity) Format(f fmt.State, verb rune) {
	s, err := numfmt.FromState(f, verb)
	if err != nil {
		fmt.Fprintf(f, "%%!%c(quantity=%s)", verb, q.String())
		return
	}
	text, err := q.render(s)
	if err != nil {
		fmt.Fprintf(f, "%%!%c(quantity=%s)", verb, q.String())
		return
	}
	io.WriteString(f, text)
}

func (q Quantity) render(layout numfmt.Spec) (string, error) {
	mag, symbol, stored := q.representation()

	number := layout.WithoutLayout()
	override := !number.IsZero()
	if !override {
		storedSpec, err := numfmt.Parse(stored)
		if err != nil {
			return "", fmt.Errorf("stored format for %s: %w", symbol, err)
		}
		number = storedSpec.WithoutLayout()
		if !layout.Layout() {
			layout = storedSpec
		}
	}

	var text string
	if mag.IsArray() {
		elem := number
		if !override {
			elem = numfmt.MustParse(DefaultArraySpec)
		}
		parts := make([]string, mag.Len())
		for i := range parts {
			parts[i] = elem.Number(mag.At(i))
		}
		text = "[" + strings.Join(parts, " ") + "]"
	} else {
		text = number.Number(mag.At(0))
	}

	if symbol != "" {
		text += " " + symbol
	}
	return layout.Pad(text), nil
}

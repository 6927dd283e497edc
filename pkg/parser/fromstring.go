package parser

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/misu-units/misu/pkg/quantity"
)

var implicitMul = regexp.MustCompile(`([A-Za-z0-9_])\s+([A-Za-z0-9_])`)

// Normalize rewrites rendered quantity text into an expression: whitespace
// between names and numbers becomes '*' and '^' becomes '**'.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	for {
		next := implicitMul.ReplaceAllString(s, "$1*$2")
		if next == s {
			break
		}
		s = next
	}
	return strings.ReplaceAll(s, "^", "**")
}

// Parse reads text such as "1 m^2 s^-1" or "-1.158e+05 m/s kg^6.0".
func Parse(s string, r Resolver) (quantity.Quantity, error) {
	return Eval(Normalize(s), r)
}

// FromString is Parse that reports failures through the log and returns
// nil instead of an error.
func FromString(s string, r Resolver) *quantity.Quantity {
	q, err := Parse(s, r)
	if err != nil {
		slog.Warn("string not understood", "input", s, "error", err)
		return nil
	}
	return &q
}

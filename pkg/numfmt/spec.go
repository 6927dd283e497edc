// Package numfmt implements a format-specification mini-language for
// float64 values.
//
// Quantities render their magnitudes with specs such as ".4g", ".3f" or
// "<20.2f":
//
//	[[fill]align][sign][#][0][width][grouping][.precision][type]
//
// Supported types are e E f F g G n % and the empty type. Grouping accepts
// "," and "_"; the "n" type groups digits using the configured locale.
package numfmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrBadSpec is returned for format specs that cannot be parsed.
var ErrBadSpec = errors.New("numfmt: invalid format spec")

// Spec is a parsed format specification.
type Spec struct {
	Fill      rune
	Align     byte
	Sign      byte
	Alt       bool
	Zero      bool
	Width     int
	Grouping  byte
	Precision int
	Type      byte
}

// Parse parses a format spec. The empty string yields the
// zero-configuration spec (repr formatting, no padding).
func Parse(spec string) (Spec, error) {
	s := Spec{Precision: -1}
	rest := spec

	if r, size := utf8.DecodeRuneInString(rest); size > 0 && len(rest) > size && isAlign(rest[size]) {
		s.Fill = r
		s.Align = rest[size]
		rest = rest[size+1:]
	} else if len(rest) > 0 && isAlign(rest[0]) {
		s.Align = rest[0]
		rest = rest[1:]
	}

	if len(rest) > 0 && (rest[0] == '+' || rest[0] == '-' || rest[0] == ' ') {
		s.Sign = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] == '#' {
		s.Alt = true
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] == '0' {
		s.Zero = true
		rest = rest[1:]
	}

	n, rest := leadingInt(rest)
	if n >= 0 {
		s.Width = n
	}

	if len(rest) > 0 && (rest[0] == ',' || rest[0] == '_') {
		s.Grouping = rest[0]
		rest = rest[1:]
	}

	if len(rest) > 0 && rest[0] == '.' {
		p, after := leadingInt(rest[1:])
		if p < 0 {
			return Spec{}, fmt.Errorf("%w %q: missing precision", ErrBadSpec, spec)
		}
		s.Precision = p
		rest = after
	}

	if len(rest) > 0 {
		if len(rest) > 1 || !isType(rest[0]) {
			return Spec{}, fmt.Errorf("%w %q: unknown type %q", ErrBadSpec, spec, rest)
		}
		s.Type = rest[0]
	}

	if s.Type == 'n' && s.Grouping != 0 {
		return Spec{}, fmt.Errorf("%w %q: cannot combine grouping with 'n'", ErrBadSpec, spec)
	}

	return s, nil
}

// MustParse is like Parse but panics on error. Intended for constant specs.
func MustParse(spec string) Spec {
	s, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return s
}

// Layout reports whether the spec carries any padding instructions.
func (s Spec) Layout() bool {
	return s.Width > 0
}

// WithoutLayout returns a copy of s with width, fill and alignment removed.
func (s Spec) WithoutLayout() Spec {
	s.Width = 0
	s.Fill = 0
	s.Align = 0
	s.Zero = false
	return s
}

// IsZero reports whether s is the empty spec.
func (s Spec) IsZero() bool {
	return s == Spec{Precision: -1}
}

// String reassembles the textual spec.
func (s Spec) String() string {
	var b strings.Builder
	if s.Align != 0 {
		if s.Fill != 0 {
			b.WriteRune(s.Fill)
		}
		b.WriteByte(s.Align)
	}
	if s.Sign != 0 {
		b.WriteByte(s.Sign)
	}
	if s.Alt {
		b.WriteByte('#')
	}
	if s.Zero {
		b.WriteByte('0')
	}
	if s.Width > 0 {
		b.WriteString(strconv.Itoa(s.Width))
	}
	if s.Grouping != 0 {
		b.WriteByte(s.Grouping)
	}
	if s.Precision >= 0 {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(s.Precision))
	}
	if s.Type != 0 {
		b.WriteByte(s.Type)
	}
	return b.String()
}

// FromState translates a fmt verb and its flags into a Spec so that
// fmt.Formatter implementations can reuse the same renderer.
func FromState(f fmt.State, verb rune) (Spec, error) {
	s := Spec{Precision: -1}
	switch verb {
	case 'v', 's':
	case 'e', 'E', 'f', 'F', 'g', 'G':
		s.Type = byte(verb)
	default:
		return Spec{}, fmt.Errorf("%w: verb %%%c", ErrBadSpec, verb)
	}
	if p, ok := f.Precision(); ok {
		s.Precision = p
		if s.Type == 0 {
			s.Type = 'g'
		}
	}
	if w, ok := f.Width(); ok {
		s.Width = w
	}
	if f.Flag('-') {
		s.Align = '<'
	}
	if f.Flag('0') && s.Align == 0 {
		s.Zero = true
	}
	switch {
	case f.Flag('+'):
		s.Sign = '+'
	case f.Flag(' '):
		s.Sign = ' '
	}
	s.Alt = f.Flag('#')
	return s, nil
}

func isAlign(c byte) bool {
	return c == '<' || c == '>' || c == '^' || c == '='
}

func isType(c byte) bool {
	switch c {
	case 'e', 'E', 'f', 'F', 'g', 'G', 'n', '%':
		return true
	}
	return false
}

func leadingInt(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return -1, s
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return -1, s
	}
	return n, s[i:]
}

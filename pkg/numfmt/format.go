package numfmt

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var localePrinter atomic.Pointer[message.Printer]

func init() {
	SetLocale(language.English)
}

// SetLocale selects the locale used by the "n" presentation type.
func SetLocale(tag language.Tag) {
	localePrinter.Store(message.NewPrinter(tag))
}

// Format renders v according to the textual spec.
func Format(v float64, spec string) (string, error) {
	s, err := Parse(spec)
	if err != nil {
		return "", err
	}
	return s.Pad(s.Number(v)), nil
}

// Repr renders v as the shortest digit string that round-trips, always
// with a decimal point or an exponent.
func Repr(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	e := strconv.FormatFloat(v, 'e', -1, 64)
	exp := exponentOf(e)
	if exp < -4 || exp >= 16 {
		return e
	}
	f := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(f, '.') {
		f += ".0"
	}
	return f
}

// Number renders v without applying width, fill or alignment.
func (s Spec) Number(v float64) string {
	neg := math.Signbit(v) && !math.IsNaN(v)
	abs := math.Abs(v)

	var body string
	switch {
	case math.IsNaN(v):
		body = "nan"
	case math.IsInf(v, 0):
		body = "inf"
	default:
		body = s.body(abs)
	}
	if s.Type == 'E' || s.Type == 'F' || s.Type == 'G' {
		body = strings.ToUpper(body)
	}

	switch {
	case neg:
		return "-" + body
	case s.Sign == '+':
		return "+" + body
	case s.Sign == ' ':
		return " " + body
	}
	return body
}

// Pad applies width, fill and alignment to an already rendered text.
// Numbers are right-aligned unless the spec says otherwise; "=" places the
// padding between a leading sign and the rest of the text.
func (s Spec) Pad(text string) string {
	n := utf8.RuneCountInString(text)
	if s.Width <= n {
		return text
	}

	fill := s.Fill
	align := s.Align
	if fill == 0 {
		fill = ' '
		if s.Zero && align == 0 {
			fill = '0'
			align = '='
		}
	}
	if align == 0 {
		align = '>'
	}

	pad := s.Width - n
	switch align {
	case '<':
		return text + strings.Repeat(string(fill), pad)
	case '^':
		left := pad / 2
		return strings.Repeat(string(fill), left) + text + strings.Repeat(string(fill), pad-left)
	case '=':
		if len(text) > 0 && (text[0] == '-' || text[0] == '+' || text[0] == ' ') {
			return text[:1] + strings.Repeat(string(fill), pad) + text[1:]
		}
		return strings.Repeat(string(fill), pad) + text
	default:
		return strings.Repeat(string(fill), pad) + text
	}
}

func (s Spec) body(abs float64) string {
	switch s.Type {
	case 0:
		if s.Precision < 0 {
			return group(Repr(abs), s.Grouping)
		}
		out := general(abs, s.Precision, s.Alt)
		if !strings.ContainsAny(out, ".e") {
			out += ".0"
		}
		return group(out, s.Grouping)
	case 'e', 'E':
		out := strconv.FormatFloat(abs, 'e', s.precision(6), 64)
		if s.Alt && s.precision(6) == 0 {
			out = strings.Replace(out, "e", ".e", 1)
		}
		return out
	case 'f', 'F':
		out := strconv.FormatFloat(abs, 'f', s.precision(6), 64)
		if s.Alt && s.precision(6) == 0 {
			out += "."
		}
		return group(out, s.Grouping)
	case '%':
		return group(strconv.FormatFloat(abs*100, 'f', s.precision(6), 64), s.Grouping) + "%"
	case 'n':
		out := general(abs, s.precision(6), s.Alt)
		if strings.ContainsRune(out, 'e') {
			return out
		}
		decimals := 0
		if i := strings.IndexByte(out, '.'); i >= 0 {
			decimals = len(out) - i - 1
		}
		return localePrinter.Load().Sprintf("%."+strconv.Itoa(decimals)+"f", abs)
	default:
		return group(general(abs, s.precision(6), s.Alt), s.Grouping)
	}
}

func (s Spec) precision(def int) int {
	if s.Precision < 0 {
		return def
	}
	return s.Precision
}

// general implements the "g" presentation type for a non-negative value.
func general(abs float64, p int, alt bool) string {
	if p == 0 {
		p = 1
	}
	e := strconv.FormatFloat(abs, 'e', p-1, 64)
	exp := exponentOf(e)

	var out string
	if exp >= -4 && exp < p {
		out = strconv.FormatFloat(abs, 'f', p-1-exp, 64)
	} else {
		out = e
	}
	if alt {
		if !strings.ContainsRune(out, '.') {
			if i := strings.IndexByte(out, 'e'); i >= 0 {
				out = out[:i] + "." + out[i:]
			} else {
				out += "."
			}
		}
		return out
	}
	return trimZeros(out)
}

func trimZeros(s string) string {
	mant, exp := s, ""
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mant, exp = s[:i], s[i:]
	}
	if strings.ContainsRune(mant, '.') {
		mant = strings.TrimRight(mant, "0")
		mant = strings.TrimSuffix(mant, ".")
	}
	return mant + exp
}

func exponentOf(e string) int {
	i := strings.IndexByte(e, 'e')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(e[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// group inserts a separator every three digits of the integer part.
func group(s string, sep byte) string {
	if sep == 0 {
		return s
	}
	end := strings.IndexAny(s, ".e")
	if end < 0 {
		end = len(s)
	}
	intPart := s[:end]
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + s[end:]
}

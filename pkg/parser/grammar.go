package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/misu-units/misu/pkg/numfmt"
	"github.com/misu-units/misu/pkg/quantity"
)

// Accumulator is the calculator's running value: a magnitude and the unit
// text that goes with it. Units is empty for a bare number.
type Accumulator struct {
	Magnitude float64
	Units     string
}

func (a Accumulator) String() string {
	if a.Units == "" {
		return numfmt.Repr(a.Magnitude)
	}
	return numfmt.Repr(a.Magnitude) + " " + a.Units
}

// Grammar is the interactive calculator grammar:
//
//	expr  = term (('+' | '-') term)*
//	term  = value (('*' | '/') value)*
//	value = number [units] | '(' expr ')' [units]
//	units = unit ((ws | '*' | '/') unit)*
//	unit  = name ['^' number]
//
// Addition and subtraction require the unit text on both sides to be
// identical; the check is textual, so "kg*m" and "m*kg" do not match.
type Grammar struct {
	resolver Resolver
}

func NewGrammar(r Resolver) *Grammar {
	return &Grammar{resolver: r}
}

// Reduce parses input down to an accumulator without resolving symbols.
func (g *Grammar) Reduce(input string) (Accumulator, error) {
	toks, err := lex(input)
	if err != nil {
		return Accumulator{}, err
	}
	p := &grammarParser{input: input, toks: toks}
	acc, err := p.expr()
	if err != nil {
		return Accumulator{}, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return Accumulator{}, p.errorf(t, "unexpected %s", t.kind)
	}
	return acc, nil
}

// Eval reduces input and evaluates the resulting unit text.
func (g *Grammar) Eval(input string) (quantity.Quantity, error) {
	acc, err := g.Reduce(input)
	if err != nil {
		return quantity.Quantity{}, err
	}
	return g.Resolve(input, acc)
}

// Resolve turns an accumulator reduced from input into a quantity. Errors
// point into input rather than into the reduced unit text.
func (g *Grammar) Resolve(input string, acc Accumulator) (quantity.Quantity, error) {
	unit := quantity.Dimensionless(1)
	if acc.Units != "" {
		var err error
		if unit, err = Eval(acc.Units, g.resolver); err != nil {
			return quantity.Quantity{}, relocate(err, input)
		}
	} else if b, ok := g.resolver.(Binder); ok {
		unit = b.Bind(unit)
	}
	return unit.Scale(acc.Magnitude), nil
}

// relocate rewrites a ParseError raised on the reduced unit text so it quotes
// input instead. Pos is where the failing symbol first appears in input, or 0.
func relocate(err error, input string) error {
	var perr *ParseError
	if !errors.As(err, &perr) || input == "" {
		return err
	}
	pos := 0
	if perr.Pos >= 0 && perr.Pos < len(perr.Input) {
		word := perr.Input[perr.Pos:]
		if i := strings.IndexFunc(word, func(r rune) bool { return !isUnitRune(r) }); i > 0 {
			word = word[:i]
		}
		if i := strings.Index(input, word); i >= 0 && word != "" {
			pos = i
		}
	}
	return &ParseError{Input: input, Pos: pos, Msg: perr.Msg, Err: perr.Err}
}

func isUnitRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type grammarParser struct {
	input string
	toks  []token
	pos   int
}

func (p *grammarParser) peek() token {
	return p.toks[p.pos]
}

func (p *grammarParser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *grammarParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *grammarParser) errorf(t token, format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *grammarParser) expr() (Accumulator, error) {
	acc, err := p.term()
	if err != nil {
		return Accumulator{}, err
	}
	for {
		op := p.peek()
		if op.kind != tokPlus && op.kind != tokMinus {
			return acc, nil
		}
		p.next()
		rhs, err := p.term()
		if err != nil {
			return Accumulator{}, err
		}
		if acc.Units != rhs.Units {
			return Accumulator{}, p.errorf(op, "Units don't match: %s and %s", acc.Units, rhs.Units)
		}
		if op.kind == tokPlus {
			acc.Magnitude += rhs.Magnitude
		} else {
			acc.Magnitude -= rhs.Magnitude
		}
	}
}

func (p *grammarParser) term() (Accumulator, error) {
	acc, err := p.value()
	if err != nil {
		return Accumulator{}, err
	}
	for {
		op := p.peek()
		if op.kind != tokStar && op.kind != tokSlash {
			return acc, nil
		}
		p.next()
		rhs, err := p.value()
		if err != nil {
			return Accumulator{}, err
		}
		if op.kind == tokStar {
			acc = Accumulator{Magnitude: acc.Magnitude * rhs.Magnitude, Units: joinMul(acc.Units, rhs.Units)}
		} else {
			acc = Accumulator{Magnitude: acc.Magnitude / rhs.Magnitude, Units: joinDiv(acc.Units, rhs.Units)}
		}
	}
}

func (p *grammarParser) value() (Accumulator, error) {
	var acc Accumulator
	switch t := p.peek(); t.kind {
	case tokLParen:
		p.next()
		inner, err := p.expr()
		if err != nil {
			return Accumulator{}, err
		}
		if c := p.next(); c.kind != tokRParen {
			return Accumulator{}, p.errorf(c, "expected ')' but found %s", c.kind)
		}
		acc = inner
	case tokMinus, tokNumber:
		v, err := p.number()
		if err != nil {
			return Accumulator{}, err
		}
		acc.Magnitude = v
	default:
		return Accumulator{}, p.errorf(t, "expected a number or '(' but found %s", t.kind)
	}

	if p.peek().kind == tokIdent {
		u, err := p.units()
		if err != nil {
			return Accumulator{}, err
		}
		acc.Units = joinMul(acc.Units, u)
	}
	return acc, nil
}

// number is an optionally negative literal; the sign must touch the digits.
func (p *grammarParser) number() (float64, error) {
	neg := false
	if t := p.peek(); t.kind == tokMinus {
		if n := p.peekAt(1); n.kind != tokNumber || n.space {
			return 0, p.errorf(n, "expected a number after '-'")
		}
		p.next()
		neg = true
	}
	t := p.next()
	if t.kind != tokNumber {
		return 0, p.errorf(t, "expected a number but found %s", t.kind)
	}
	if neg {
		return -t.num, nil
	}
	return t.num, nil
}

func (p *grammarParser) units() (string, error) {
	var b strings.Builder
	first, err := p.unit()
	if err != nil {
		return "", err
	}
	b.WriteString(first)
	for {
		t := p.peek()
		switch {
		case t.kind == tokIdent:
		case (t.kind == tokStar || t.kind == tokSlash) && p.peekAt(1).kind == tokIdent:
			p.next()
			b.WriteString(t.text)
			u, err := p.unit()
			if err != nil {
				return "", err
			}
			b.WriteString(u)
			continue
		default:
			return b.String(), nil
		}
		u, err := p.unit()
		if err != nil {
			return "", err
		}
		b.WriteString("*")
		b.WriteString(u)
	}
}

// unit reads a name with an optional "^number" exponent, rewritten to "**".
func (p *grammarParser) unit() (string, error) {
	name := p.next()
	if name.kind != tokIdent {
		return "", p.errorf(name, "expected a unit but found %s", name.kind)
	}
	if p.peek().kind != tokCaret {
		return name.text, nil
	}
	p.next()
	sign := ""
	if p.peek().kind == tokMinus {
		p.next()
		sign = "-"
	}
	exp := p.next()
	if exp.kind != tokNumber {
		return "", p.errorf(exp, "expected an exponent but found %s", exp.kind)
	}
	return name.text + "**" + sign + exp.text, nil
}

func joinMul(u1, u2 string) string {
	switch {
	case u1 == "":
		return u2
	case u2 == "":
		return u1
	}
	return u1 + "*" + u2
}

func joinDiv(u1, u2 string) string {
	switch {
	case u2 == "":
		return u1
	case u1 == "":
		return "1/(" + u2 + ")"
	}
	return u1 + "/(" + u2 + ")"
}

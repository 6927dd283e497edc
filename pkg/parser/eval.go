// Package parser turns text into quantities.
//
// Eval evaluates arithmetic over numeric literals and unit symbols with
// the usual precedence: + - below * / below unary minus below **, which is
// right-associative. Grammar is the interactive calculator grammar, which
// tracks unit text separately from magnitudes. FromString and Parse accept
// the text produced by rendering a quantity, such as "1.248e+05 m/s".
package parser

import (
	"fmt"
	"math"

	"github.com/misu-units/misu/pkg/quantity"
	"github.com/misu-units/misu/pkg/units"
)

// Resolver maps unit symbols to quantities. *units.System implements it.
type Resolver interface {
	Lookup(sym string) (quantity.Quantity, bool)
}

// Binder attaches a formatting context to evaluated results.
type Binder interface {
	Bind(q quantity.Quantity) quantity.Quantity
}

// Eval evaluates expr against the symbols known to r.
func Eval(expr string, r Resolver) (quantity.Quantity, error) {
	v, err := evalValue(expr, r)
	if err != nil {
		return quantity.Quantity{}, err
	}
	q := quantity.Coerce(v)
	if b, ok := r.(Binder); ok && q.Renderer() == nil {
		q = b.Bind(q)
	}
	return q, nil
}

func evalValue(expr string, r Resolver) (quantity.Value, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	e := &evaluator{input: expr, toks: toks, resolver: r}
	v, err := e.expr()
	if err != nil {
		return nil, err
	}
	if t := e.peek(); t.kind != tokEOF {
		return nil, e.errorf(t, "unexpected %s", t.kind)
	}
	return v, nil
}

type evaluator struct {
	input    string
	toks     []token
	pos      int
	resolver Resolver
}

func (e *evaluator) peek() token {
	return e.toks[e.pos]
}

func (e *evaluator) next() token {
	t := e.toks[e.pos]
	if t.kind != tokEOF {
		e.pos++
	}
	return t
}

func (e *evaluator) errorf(t token, format string, args ...any) error {
	return &ParseError{Input: e.input, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *evaluator) expr() (quantity.Value, error) {
	left, err := e.term()
	if err != nil {
		return nil, err
	}
	for {
		op := e.peek()
		if op.kind != tokPlus && op.kind != tokMinus {
			return left, nil
		}
		e.next()
		right, err := e.term()
		if err != nil {
			return nil, err
		}
		if left, err = binary(op.kind, left, right); err != nil {
			return nil, err
		}
	}
}

func (e *evaluator) term() (quantity.Value, error) {
	left, err := e.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := e.peek()
		if op.kind != tokStar && op.kind != tokSlash {
			return left, nil
		}
		e.next()
		right, err := e.unary()
		if err != nil {
			return nil, err
		}
		if left, err = binary(op.kind, left, right); err != nil {
			return nil, err
		}
	}
}

func (e *evaluator) unary() (quantity.Value, error) {
	switch e.peek().kind {
	case tokMinus:
		e.next()
		v, err := e.unary()
		if err != nil {
			return nil, err
		}
		return negate(v), nil
	case tokPlus:
		e.next()
		return e.unary()
	}
	return e.power()
}

func (e *evaluator) power() (quantity.Value, error) {
	base, err := e.atom()
	if err != nil {
		return nil, err
	}
	op := e.peek()
	switch op.kind {
	case tokPow:
		e.next()
		exp, err := e.unary()
		if err != nil {
			return nil, err
		}
		return pow(base, exp)
	case tokCaret:
		return nil, e.errorf(op, "unexpected '^', use '**' for powers")
	}
	return base, nil
}

func (e *evaluator) atom() (quantity.Value, error) {
	t := e.next()
	switch t.kind {
	case tokNumber:
		return quantity.Number(t.num), nil
	case tokIdent:
		if e.resolver == nil {
			return nil, &ParseError{Input: e.input, Pos: t.pos, Msg: fmt.Sprintf("unknown unit %q", t.text),
				Err: &units.UnknownUnitError{Symbol: t.text}}
		}
		q, ok := e.resolver.Lookup(t.text)
		if !ok {
			return nil, &ParseError{Input: e.input, Pos: t.pos, Msg: fmt.Sprintf("unknown unit %q", t.text),
				Err: &units.UnknownUnitError{Symbol: t.text}}
		}
		return q, nil
	case tokLParen:
		v, err := e.expr()
		if err != nil {
			return nil, err
		}
		if c := e.next(); c.kind != tokRParen {
			return nil, e.errorf(c, "expected ')' but found %s", c.kind)
		}
		return v, nil
	}
	return nil, e.errorf(t, "unexpected %s", t.kind)
}

// binary keeps pure numbers as numbers so that they stay valid exponents.
func binary(op tokenKind, a, b quantity.Value) (quantity.Value, error) {
	x, okA := a.(quantity.Number)
	y, okB := b.(quantity.Number)
	if okA && okB {
		switch op {
		case tokPlus:
			return x + y, nil
		case tokMinus:
			return x - y, nil
		case tokStar:
			return x * y, nil
		case tokSlash:
			return x / y, nil
		}
	}
	switch op {
	case tokPlus:
		return quantity.Add(a, b)
	case tokMinus:
		return quantity.Sub(a, b)
	case tokStar:
		return quantity.Mul(a, b)
	case tokSlash:
		return quantity.Div(a, b)
	}
	return nil, fmt.Errorf("unsupported operator %s", op)
}

func negate(v quantity.Value) quantity.Value {
	if n, ok := v.(quantity.Number); ok {
		return -n
	}
	return quantity.Coerce(v).Neg()
}

func pow(base, exp quantity.Value) (quantity.Value, error) {
	if x, ok := base.(quantity.Number); ok {
		if y, ok := exp.(quantity.Number); ok {
			return quantity.Number(math.Pow(float64(x), float64(y))), nil
		}
	}
	return quantity.Pow(base, exp)
}

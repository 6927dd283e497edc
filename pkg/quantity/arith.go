package quantity

import (
	"fmt"
	"math"
)

func Add(a, b Value) (Quantity, error) {
	qa, qb := Coerce(a), Coerce(b)
	if qa.dim != qb.dim {
		return Quantity{}, incompatible(qa, qb)
	}
	mag, err := Zip(qa.mag, qb.mag, func(x, y float64) float64 { return x + y })
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{mag: mag, dim: qa.dim, rules: pick(qa, qb)}, nil
}

func Sub(a, b Value) (Quantity, error) {
	qa, qb := Coerce(a), Coerce(b)
	if qa.dim != qb.dim {
		return Quantity{}, incompatible(qa, qb)
	}
	mag, err := Zip(qa.mag, qb.mag, func(x, y float64) float64 { return x - y })
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{mag: mag, dim: qa.dim, rules: pick(qa, qb)}, nil
}

func Mul(a, b Value) (Quantity, error) {
	qa, qb := Coerce(a), Coerce(b)
	mag, err := Zip(qa.mag, qb.mag, func(x, y float64) float64 { return x * y })
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{mag: mag, dim: qa.dim.Add(qb.dim), rules: pick(qa, qb)}, nil
}

// Div always performs floating-point division. Div(Number(x), q) yields the
// negated dimension of q.
func Div(a, b Value) (Quantity, error) {
	qa, qb := Coerce(a), Coerce(b)
	mag, err := Zip(qa.mag, qb.mag, func(x, y float64) float64 { return x / y })
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{mag: mag, dim: qa.dim.Sub(qb.dim), rules: pick(qa, qb)}, nil
}

// Pow raises base to a bare scalar exponent. Quantity exponents fail with
// ErrInvalidExponent, as do array exponents since they would need a
// different dimension per element.
func Pow(base, exp Value) (Quantity, error) {
	switch e := exp.(type) {
	case Quantity:
		return Quantity{}, ErrInvalidExponent
	case Array:
		return Quantity{}, fmt.Errorf("%w: exponent must be a scalar", ErrInvalidExponent)
	case Number:
		return Coerce(base).Pow(float64(e)), nil
	default:
		return Quantity{}, fmt.Errorf("%w: unsupported exponent %T", ErrInvalidExponent, exp)
	}
}

func (q Quantity) Add(v Value) (Quantity, error) { return Add(q, v) }
func (q Quantity) Sub(v Value) (Quantity, error) { return Sub(q, v) }
func (q Quantity) Mul(v Value) (Quantity, error) { return Mul(q, v) }
func (q Quantity) Div(v Value) (Quantity, error) { return Div(q, v) }

// Pow raises q to the scalar k; fractional and negative k are allowed.
func (q Quantity) Pow(k float64) Quantity {
	q.mag = q.mag.Apply(func(x float64) float64 { return math.Pow(x, k) })
	q.dim = q.dim.Scale(k)
	return q
}

// Sqrt is Pow(0.5).
func (q Quantity) Sqrt() Quantity {
	return q.Pow(0.5)
}

func (q Quantity) Neg() Quantity {
	q.mag = q.mag.Apply(func(x float64) float64 { return -x })
	return q
}

// Scale multiplies the magnitude by a bare number.
func (q Quantity) Scale(k float64) Quantity {
	q.mag = q.mag.Apply(func(x float64) float64 { return x * k })
	return q
}

// Inv returns 1/q.
func (q Quantity) Inv() Quantity {
	q.mag = q.mag.Apply(func(x float64) float64 { return 1 / x })
	q.dim = q.dim.Scale(-1)
	return q
}

// Convert expresses q as a multiple of target. The dimensions must match;
// the result is a bare magnitude ("how many targets").
func (q Quantity) Convert(target Value) (Magnitude, error) {
	t := Coerce(target)
	if q.dim != t.dim {
		return Magnitude{}, incompatible(q, t)
	}
	return Zip(q.mag, t.mag, func(x, y float64) float64 { return x / y })
}

// In is shorthand for Convert.
func (q Quantity) In(target Value) (Magnitude, error) {
	return q.Convert(target)
}

// Cmp compares two scalar quantities of the same dimension,
// returning -1, 0 or +1.
func Cmp(a, b Value) (int, error) {
	qa, qb := Coerce(a), Coerce(b)
	if qa.dim != qb.dim {
		return 0, incompatible(qa, qb)
	}
	x, okA := qa.mag.Float()
	y, okB := qb.mag.Float()
	if !okA || !okB {
		return 0, ErrNotScalar
	}
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	}
	return 0, nil
}

func compare(a, b Value, pred func(x, y float64) bool) (bool, error) {
	qa, qb := Coerce(a), Coerce(b)
	if qa.dim != qb.dim {
		return false, incompatible(qa, qb)
	}
	return all(qa.mag, qb.mag, pred)
}

// The comparison methods hold for arrays only if they hold for every
// broadcast element pair.

func (q Quantity) Less(v Value) (bool, error) {
	return compare(q, v, func(x, y float64) bool { return x < y })
}

func (q Quantity) LessEqual(v Value) (bool, error) {
	return compare(q, v, func(x, y float64) bool { return x <= y })
}

func (q Quantity) Equal(v Value) (bool, error) {
	return compare(q, v, func(x, y float64) bool { return x == y })
}

func (q Quantity) Greater(v Value) (bool, error) {
	return compare(q, v, func(x, y float64) bool { return x > y })
}

func (q Quantity) GreaterEqual(v Value) (bool, error) {
	return compare(q, v, func(x, y float64) bool { return x >= y })
}

// ApproxEqual compares magnitudes within a relative tolerance.
func (q Quantity) ApproxEqual(v Value, rel float64) (bool, error) {
	return compare(q, v, func(x, y float64) bool { return closeTo(x, y, rel) })
}

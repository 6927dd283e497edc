// Package quantity implements the dimensional value type: a magnitude
// (scalar or array) paired with a dimension.Vector.
//
// Arithmetic never mutates operands. Addition, subtraction and comparison
// require equal dimension vectors and fail with ErrIncompatibleUnits
// otherwise; multiplication, division and powers combine the vectors.
//
// Operands are passed as a Value, a closed union of Quantity, Number and
// Array. Bare numbers and arrays are coerced to dimensionless quantities at
// every binary entry point, so
//
//	quantity.Mul(quantity.Number(2.5), kg)
//	kg.Mul(quantity.Number(2.5))
//
// are the same operation.
//
// A Quantity may carry a Renderer, the formatting context consulted when
// it is turned into text. The renderer is never serialized and plays no
// part in arithmetic or comparison.
package quantity

import (
	"github.com/misu-units/misu/pkg/dimension"
)

// Value is an arithmetic operand. Only Quantity, Number and Array
// implement it.
type Value interface {
	asQuantity() Quantity
}

// Number is a bare scalar operand.
type Number float64

// Array is a bare array operand.
type Array []float64

func (n Number) asQuantity() Quantity {
	return Quantity{mag: Scalar(float64(n))}
}

func (a Array) asQuantity() Quantity {
	return Quantity{mag: ArrayOf(a)}
}

// Quantity is a magnitude with a dimension vector.
type Quantity struct {
	mag   Magnitude
	dim   dimension.Vector
	rules Renderer
}

func (q Quantity) asQuantity() Quantity {
	return q
}

// Coerce turns any operand into a Quantity; bare values become
// dimensionless. A nil Value coerces to dimensionless zero.
func Coerce(v Value) Quantity {
	if v == nil {
		return Quantity{}
	}
	return v.asQuantity()
}

// AsQuantity reports whether v is a Quantity (as opposed to a bare value).
func AsQuantity(v Value) (Quantity, bool) {
	q, ok := v.(Quantity)
	return q, ok
}

// New declares a quantity from explicit base exponents, e.g.
// New(1, map[string]float64{"m": 1}).
func New(mag float64, exps map[string]float64) (Quantity, error) {
	dim, err := dimension.New(exps)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{mag: Scalar(mag), dim: dim}, nil
}

// NewArray is New for array magnitudes.
func NewArray(mags []float64, exps map[string]float64) (Quantity, error) {
	dim, err := dimension.New(exps)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{mag: ArrayOf(mags), dim: dim}, nil
}

// Of assembles a quantity from parts.
func Of(mag Magnitude, dim dimension.Vector) Quantity {
	return Quantity{mag: mag, dim: dim}
}

func Dimensionless(v float64) Quantity {
	return Quantity{mag: Scalar(v)}
}

func (q Quantity) Magnitude() Magnitude {
	return q.mag
}

// Units returns the raw dimension vector.
func (q Quantity) Units() dimension.Vector {
	return q.dim
}

func (q Quantity) IsArray() bool {
	return q.mag.IsArray()
}

func (q Quantity) Len() int {
	return q.mag.Len()
}

// Float returns the magnitude of a dimensionless scalar.
func (q Quantity) Float() (float64, error) {
	if !q.dim.IsZero() {
		return 0, ErrNotDimensionless
	}
	v, ok := q.mag.Float()
	if !ok {
		return 0, ErrNotScalar
	}
	return v, nil
}

// WithDimensions replaces the dimension vector, keeping the magnitude.
// It is only meant for declaring base units.
func (q Quantity) WithDimensions(exps map[string]float64) (Quantity, error) {
	dim, err := dimension.New(exps)
	if err != nil {
		return Quantity{}, err
	}
	q.dim = dim
	return q, nil
}

// WithRenderer binds q to a formatting context.
func (q Quantity) WithRenderer(r Renderer) Quantity {
	q.rules = r
	return q
}

func (q Quantity) Renderer() Renderer {
	return q.rules
}

// Index returns the i-th element of an array quantity as a scalar quantity.
func (q Quantity) Index(i int) Quantity {
	q.mag = Scalar(q.mag.At(i))
	return q
}

// Slice returns elements [i, j) of an array quantity.
func (q Quantity) Slice(i, j int) Quantity {
	vs := q.mag.Values()
	q.mag = ArrayOf(vs[i:j])
	return q
}

func pick(a, b Quantity) Renderer {
	if a.rules != nil {
		return a.rules
	}
	return b.rules
}

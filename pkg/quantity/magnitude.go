package quantity

import (
	"fmt"
	"math"
	"strings"

	"github.com/misu-units/misu/pkg/numfmt"
)

// Magnitude is either a scalar or a one-dimensional array of float64.
// Arrays are copied in and out so a Magnitude is never shared.
type Magnitude struct {
	scalar  float64
	array   []float64
	isArray bool
}

func Scalar(v float64) Magnitude {
	return Magnitude{scalar: v}
}

// ArrayOf copies vs into an array magnitude.
func ArrayOf(vs []float64) Magnitude {
	cp := make([]float64, len(vs))
	copy(cp, vs)
	return Magnitude{array: cp, isArray: true}
}

func (m Magnitude) IsArray() bool {
	return m.isArray
}

// Len is 1 for scalars.
func (m Magnitude) Len() int {
	if m.isArray {
		return len(m.array)
	}
	return 1
}

// At returns the i-th element; a scalar answers every index with itself.
func (m Magnitude) At(i int) float64 {
	if m.isArray {
		return m.array[i]
	}
	return m.scalar
}

// Float returns the scalar value, or false for arrays.
func (m Magnitude) Float() (float64, bool) {
	if m.isArray {
		return 0, false
	}
	return m.scalar, true
}

// Values returns a copy of the elements; a scalar yields a single element.
func (m Magnitude) Values() []float64 {
	if !m.isArray {
		return []float64{m.scalar}
	}
	cp := make([]float64, len(m.array))
	copy(cp, m.array)
	return cp
}

// Equal compares element by element. Shapes must match exactly.
func (m Magnitude) Equal(o Magnitude) bool {
	if m.isArray != o.isArray {
		return false
	}
	if !m.isArray {
		return m.scalar == o.scalar
	}
	if len(m.array) != len(o.array) {
		return false
	}
	for i := range m.array {
		if m.array[i] != o.array[i] {
			return false
		}
	}
	return true
}

// Apply maps f over every element.
func (m Magnitude) Apply(f func(float64) float64) Magnitude {
	if !m.isArray {
		return Scalar(f(m.scalar))
	}
	out := make([]float64, len(m.array))
	for i, v := range m.array {
		out[i] = f(v)
	}
	return Magnitude{array: out, isArray: true}
}

func (m Magnitude) String() string {
	if !m.isArray {
		return numfmt.Repr(m.scalar)
	}
	parts := make([]string, len(m.array))
	for i, v := range m.array {
		parts[i] = numfmt.Repr(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Zip combines two magnitudes elementwise. A scalar broadcasts against an
// array; two arrays must have the same length.
func Zip(a, b Magnitude, f func(x, y float64) float64) (Magnitude, error) {
	switch {
	case !a.isArray && !b.isArray:
		return Scalar(f(a.scalar, b.scalar)), nil
	case a.isArray && b.isArray && len(a.array) != len(b.array):
		return Magnitude{}, fmt.Errorf("%w: %d and %d elements", ErrShapeMismatch, len(a.array), len(b.array))
	}

	n := a.Len()
	if b.isArray {
		n = b.Len()
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = f(a.At(i), b.At(i))
	}
	return Magnitude{array: out, isArray: true}, nil
}

func all(a, b Magnitude, pred func(x, y float64) bool) (bool, error) {
	if a.isArray && b.isArray && len(a.array) != len(b.array) {
		return false, fmt.Errorf("%w: %d and %d elements", ErrShapeMismatch, len(a.array), len(b.array))
	}
	n := a.Len()
	if b.isArray {
		n = b.Len()
	}
	for i := 0; i < n; i++ {
		if !pred(a.At(i), b.At(i)) {
			return false, nil
		}
	}
	return true, nil
}

func closeTo(x, y, rel float64) bool {
	if x == y {
		return true
	}
	return math.Abs(x-y) <= rel*math.Max(math.Abs(x), math.Abs(y))
}

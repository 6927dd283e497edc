package quantity

import (
	"errors"
	"fmt"
)

var (
	ErrIncompatibleUnits = errors.New("incompatible units")
	ErrInvalidExponent   = errors.New("exponent must not be a quantity")
	ErrShapeMismatch     = errors.New("quantity: array shapes do not match")
	ErrNotDimensionless  = errors.New("quantity: must be dimensionless")
	ErrNotScalar         = errors.New("quantity: array magnitude where a scalar is required")
)

// IncompatibleUnitsError carries both operands of a failed add, subtract,
// compare or convert.
type IncompatibleUnitsError struct {
	Left  Quantity
	Right Quantity
}

func (e *IncompatibleUnitsError) Error() string {
	return fmt.Sprintf("Incompatible units: %s and %s", e.Left, e.Right)
}

func (e *IncompatibleUnitsError) Is(target error) bool {
	return target == ErrIncompatibleUnits
}

func incompatible(a, b Quantity) error {
	r := pick(a, b)
	a.rules, b.rules = r, r
	return &IncompatibleUnitsError{Left: a, Right: b}
}

// Package category maps dimension vectors to physical category names such
// as "Mass" or "Energy". At most one name is registered per vector.
package category

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/misu-units/misu/pkg/dimension"
	"github.com/misu-units/misu/pkg/quantity"
)

var (
	ErrUncategorized     = errors.New("quantity has no registered category")
	ErrDuplicateCategory = errors.New("a category is already registered for this dimension")
)

// UncategorizedError reports a quantity whose vector has no category.
type UncategorizedError struct {
	Quantity quantity.Quantity
}

func (e *UncategorizedError) Error() string {
	return fmt.Sprintf("The collection of units: %q has not been defined as a category yet.", e.Quantity.String())
}

func (e *UncategorizedError) Unwrap() error { return ErrUncategorized }

// DuplicateCategoryError carries the name already owning the vector.
type DuplicateCategoryError struct {
	Owner     string
	Requested string
}

func (e *DuplicateCategoryError) Error() string {
	return fmt.Sprintf("This unit def already registered, owned by: %s", e.Owner)
}

func (e *DuplicateCategoryError) Unwrap() error { return ErrDuplicateCategory }

type Registry struct {
	mu     sync.RWMutex
	byDim  map[dimension.Vector]string
	byName map[string]dimension.Vector
}

func NewRegistry() *Registry {
	return &Registry{
		byDim:  make(map[dimension.Vector]string),
		byName: make(map[string]dimension.Vector),
	}
}

// Add registers name for q's dimension vector. Registering again fails even
// when the name is identical.
func (r *Registry) Add(q quantity.Quantity, name string) error {
	if name == "" {
		return fmt.Errorf("category name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dim := q.Units()
	if owner, exists := r.byDim[dim]; exists {
		return &DuplicateCategoryError{Owner: owner, Requested: name}
	}
	r.byDim[dim] = name
	r.byName[name] = dim
	return nil
}

// Of returns the category of q.
func (r *Registry) Of(q quantity.Quantity) (string, error) {
	r.mu.RLock()
	name, ok := r.byDim[q.Units()]
	r.mu.RUnlock()
	if !ok {
		return "", &UncategorizedError{Quantity: q}
	}
	return name, nil
}

// Lookup returns the vector registered under name.
func (r *Registry) Lookup(name string) (dimension.Vector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dim, ok := r.byName[name]
	return dim, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDim)
}

package category

import (
	"testing"

	"github.com/misu-units/misu/pkg/quantity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndLookup(t *testing.T) {
	r := NewRegistry()
	kg, err := quantity.New(1, map[string]float64{"kg": 1})
	require.NoError(t, err)
	J, err := quantity.New(1, map[string]float64{"kg": 1, "m": 2, "s": -2})
	require.NoError(t, err)

	require.NoError(t, r.Add(kg, "Mass"))
	require.NoError(t, r.Add(J, "Energy"))

	name, err := r.Of(kg.Scale(0.45359237))
	require.NoError(t, err)
	assert.Equal(t, "Mass", name)

	name, err = r.Of(J.Scale(1054))
	require.NoError(t, err)
	assert.Equal(t, "Energy", name)

	dim, ok := r.Lookup("Energy")
	require.True(t, ok)
	assert.Equal(t, J.Units(), dim)

	assert.Equal(t, []string{"Energy", "Mass"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestDuplicateCategory(t *testing.T) {
	r := NewRegistry()
	m, err := quantity.New(1, map[string]float64{"m": 1})
	require.NoError(t, err)
	require.NoError(t, r.Add(m, "Length"))

	err = r.Add(m.Scale(1000), "Distance")
	require.ErrorIs(t, err, ErrDuplicateCategory)
	var dup *DuplicateCategoryError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Length", dup.Owner)
	assert.Equal(t, "This unit def already registered, owned by: Length", err.Error())

	assert.ErrorIs(t, r.Add(m, "Length"), ErrDuplicateCategory, "identical re-registration is still rejected")

	name, err := r.Of(m)
	require.NoError(t, err)
	assert.Equal(t, "Length", name)

	assert.Error(t, r.Add(quantity.Dimensionless(1), ""))
}

func TestUncategorized(t *testing.T) {
	r := NewRegistry()
	q, err := quantity.New(3, map[string]float64{"K": 2, "ca": 1})
	require.NoError(t, err)

	_, err = r.Of(q)
	require.ErrorIs(t, err, ErrUncategorized)
	var unc *UncategorizedError
	require.ErrorAs(t, err, &unc)
	assert.Contains(t, err.Error(), "3.0 K^2.0 ca^1.0")
}

package dimension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	v, err := New(map[string]float64{"kg": 1, "s": -1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Exponent(Mass))
	assert.Equal(t, -1.0, v.Exponent(Time))
	assert.Equal(t, "kg^1.0 s^-1.0", v.String())

	_, err = New(map[string]float64{"furlong": 1})
	assert.ErrorIs(t, err, ErrUnknownBase)
}

func TestArithmetic(t *testing.T) {
	m := Of(Length)
	kg := Of(Mass)
	s := Of(Time)

	velocity := m.Sub(s)
	assert.Equal(t, Vector{1, 0, -1, 0, 0, 0, 0}, velocity)

	force := kg.Add(m).Sub(s.Scale(2))
	assert.Equal(t, Vector{1, 1, -2, 0, 0, 0, 0}, force)
	assert.True(t, force.Equal(Vector{1, 1, -2}))

	root := kg.Scale(2).Sub(m).Scale(0.5)
	assert.Equal(t, "m^-0.5 kg^1.0", root.String())

	assert.True(t, velocity.Sub(velocity).IsZero())
	assert.Equal(t, "", Dimensionless.String())
}

func TestValueSemantics(t *testing.T) {
	a := Of(Length)
	b := a.Add(Of(Length))
	assert.Equal(t, 1.0, a.Exponent(Length), "Add must not mutate the receiver")
	assert.Equal(t, 2.0, b.Exponent(Length))

	lookup := map[Vector]string{Of(Mass): "Mass"}
	assert.Equal(t, "Mass", lookup[Of(Length).Sub(Of(Length)).Add(Of(Mass))])
}

func TestMap(t *testing.T) {
	v := Vector{2, 0, 0, 0, 0, 0, -1}
	assert.Equal(t, map[string]float64{"m": 2, "mole": -1}, v.Map())
	back, err := New(v.Map())
	require.NoError(t, err)
	assert.Equal(t, v, back)
}

package parser

import (
	"testing"

	"github.com/misu-units/misu/pkg/quantity"
	"github.com/misu-units/misu/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSystem(t *testing.T) *units.System {
	t.Helper()
	s := units.NewSystem()
	for _, base := range []struct{ sym, dim, cat string }{
		{"m metre", "m", "Length"},
		{"kg", "kg", "Mass"},
		{"s sec", "s", "Time"},
	} {
		require.NoError(t, s.CreateUnit(base.sym, quantity.Dimensionless(1),
			units.WithDimensions(map[string]float64{base.dim: 1}), units.WithCategory(base.cat)))
	}
	require.NoError(t, s.CreateUnit("hr hour", s.MustUnit("s").Scale(3600)))
	return s
}

func value(t *testing.T, q quantity.Quantity) float64 {
	t.Helper()
	v, ok := q.Magnitude().Float()
	require.True(t, ok)
	return v
}

func TestEvalPrecedence(t *testing.T) {
	s := testSystem(t)
	cases := map[string]float64{
		"2 + 3 * 4":     14,
		"(2 + 3) * 4":   20,
		"-2**2":         -4,
		"2**3**2":       512,
		"2**-1":         0.5,
		"10 / 4":        2.5,
		"7 - 2 - 1":     4,
		"+3":            3,
		"5. * .5":       2.5,
		"1.5e3 / 1E+03": 1.5,
		"2 * -3":        -6,
		"3600 * s / hr": 1,
	}
	for expr, want := range cases {
		q, err := Eval(expr, s)
		require.NoError(t, err, expr)
		assert.InDelta(t, want, value(t, q), 1e-12, expr)
	}
}

func TestEvalUnits(t *testing.T) {
	s := testSystem(t)
	m, kg, sec := s.MustUnit("m"), s.MustUnit("kg"), s.MustUnit("s")

	q, err := Eval("kg * m / s**2", s)
	require.NoError(t, err)
	assert.Equal(t, kg.Units().Add(m.Units()).Sub(sec.Units().Scale(2)), q.Units())

	q, err = Eval("3600 * s / hr", s)
	require.NoError(t, err)
	assert.True(t, q.Units().IsZero())
	assert.InDelta(t, 1.0, value(t, q), 1e-15)

	q, err = Eval("(kg**2 / m)**0.5", s)
	require.NoError(t, err)
	assert.Equal(t, "1.0 m^-0.5 kg^1.0", q.String())

	q, err = Eval("2.5 * kg / s", s)
	require.NoError(t, err)
	assert.NotNil(t, q.Renderer(), "results are bound to the system's formats")
}

func TestEvalErrors(t *testing.T) {
	s := testSystem(t)

	_, err := Eval("3 * furlong", s)
	require.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, units.ErrUnknownUnit)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 4, perr.Pos)

	_, err = Eval("m + kg", s)
	assert.ErrorIs(t, err, quantity.ErrIncompatibleUnits)

	_, err = Eval("m ** kg", s)
	assert.ErrorIs(t, err, quantity.ErrInvalidExponent)

	for _, bad := range []string{"m ^ 2", "(m", "2 $", "", "2 3", "m)", "* 2"} {
		_, err := Eval(bad, s)
		assert.ErrorIs(t, err, ErrParse, bad)
	}

	_, err = Eval("m", nil)
	assert.ErrorIs(t, err, units.ErrUnknownUnit)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1*m**2*s**-1", Normalize("1 m^2 s^-1"))
	assert.Equal(t, "1*m**2*s**-1", Normalize("1 m^2     s^-1"))
	assert.Equal(t, "1*m*kg*s", Normalize("1 m kg s"))
	assert.Equal(t, "-1.158e+05*m/s*kg**6.0", Normalize("-1.158e+05 m/s kg^6.0"))
	assert.Equal(t, "9000*kg/hr", Normalize("  9000 kg/hr "))
}

func TestFromString(t *testing.T) {
	s := testSystem(t)
	m, kg, sec := s.MustUnit("m"), s.MustUnit("kg"), s.MustUnit("s")

	q := FromString("-1.158e+05 m/s kg^6.0", s)
	require.NotNil(t, q)
	want := m.Scale(-1.158e+05)
	want, err := want.Div(sec)
	require.NoError(t, err)
	want, err = want.Mul(kg.Pow(6.0))
	require.NoError(t, err)
	ok, err := q.Equal(want)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, in := range []string{"1 m^2 s^-1", "1 m^2     s^-1"} {
		q := FromString(in, s)
		require.NotNil(t, q, in)
		want, err := m.Pow(2).Div(sec)
		require.NoError(t, err)
		ok, err := q.Equal(want)
		require.NoError(t, err)
		assert.True(t, ok, in)
	}

	assert.Nil(t, FromString("1 furlong", s))
	assert.Nil(t, FromString("1 m +", s))

	_, err = Parse("1 furlong", s)
	assert.ErrorIs(t, err, units.ErrUnknownUnit)
}

func TestGrammarReduce(t *testing.T) {
	g := NewGrammar(testSystem(t))
	cases := []struct {
		in   string
		want Accumulator
	}{
		{"17+34", Accumulator{Magnitude: 51}},
		{"18", Accumulator{Magnitude: 18}},
		{"2 kg + 3 kg", Accumulator{Magnitude: 5, Units: "kg"}},
		{"5 kg - 3 kg", Accumulator{Magnitude: 2, Units: "kg"}},
		{"2 kg * 3 m", Accumulator{Magnitude: 6, Units: "kg*m"}},
		{"6 kg / 3 s", Accumulator{Magnitude: 2, Units: "kg/(s)"}},
		{"2 * 3 kg", Accumulator{Magnitude: 6, Units: "kg"}},
		{"1 / 4 s", Accumulator{Magnitude: 0.25, Units: "1/(s)"}},
		{"(1 + 2) m", Accumulator{Magnitude: 3, Units: "m"}},
		{"(2 kg) m", Accumulator{Magnitude: 2, Units: "kg*m"}},
		{"2 m^2 s^-1", Accumulator{Magnitude: 2, Units: "m**2*s**-1"}},
		{"2 kg/s", Accumulator{Magnitude: 2, Units: "kg/s"}},
		{"2 kg*m", Accumulator{Magnitude: 2, Units: "kg*m"}},
		{"-1.5 m", Accumulator{Magnitude: -1.5, Units: "m"}},
	}
	for _, c := range cases {
		got, err := g.Reduce(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestGrammarUnitsMustMatch(t *testing.T) {
	g := NewGrammar(testSystem(t))

	_, err := g.Reduce("2 kg + 3 m")
	require.ErrorIs(t, err, ErrParse)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Units don't match: kg and m", perr.Msg)

	_, err = g.Reduce("2 kg*m + 3 m*kg")
	assert.ErrorIs(t, err, ErrParse, "the check compares unit text")

	for _, bad := range []string{"kg", "2 +", "(2 kg", "- 2", "2 m^x", "2 kg)"} {
		_, err := g.Reduce(bad)
		assert.ErrorIs(t, err, ErrParse, bad)
	}
}

func TestGrammarUnknownUnitQuotesInput(t *testing.T) {
	g := NewGrammar(testSystem(t))
	input := "6 kg / 3 furlongx"

	acc, err := g.Reduce(input)
	require.NoError(t, err)
	assert.Equal(t, "kg/(furlongx)", acc.Units)

	_, err = g.Resolve(input, acc)
	assert.ErrorIs(t, err, units.ErrUnknownUnit)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, input, perr.Input)
	assert.Equal(t, 9, perr.Pos)
	assert.Equal(t, `unknown unit "furlongx" (at 9 in "6 kg / 3 furlongx")`, err.Error())

	_, err = g.Eval("furlongx")
	assert.ErrorIs(t, err, ErrParse, "a bare symbol is not a value")
}

func TestGrammarEval(t *testing.T) {
	s := testSystem(t)
	g := NewGrammar(s)

	q, err := g.Eval("2 kg / 4 s")
	require.NoError(t, err)
	kgps, err := s.MustUnit("kg").Div(s.MustUnit("s"))
	require.NoError(t, err)
	assert.Equal(t, kgps.Units(), q.Units())
	assert.Equal(t, 0.5, value(t, q))

	q, err = g.Eval("6 * 7")
	require.NoError(t, err)
	v, err := q.Float()
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	_, err = g.Eval("2 furlong")
	assert.ErrorIs(t, err, units.ErrUnknownUnit)

	assert.Equal(t, "2.5 kg/(s)", Accumulator{Magnitude: 2.5, Units: "kg/(s)"}.String())
	assert.Equal(t, "3.0", Accumulator{Magnitude: 3}.String())
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misu-units/misu/pkg/quantity"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "worksheet.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func flowRate(t *testing.T, v float64) quantity.Quantity {
	t.Helper()
	q, err := quantity.New(v, map[string]float64{"kg": 1, "s": -1})
	require.NoError(t, err)
	return q
}

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	e, err := s.Set(ctx, "feed", "2.5 kg/s", flowRate(t, 2.5))
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "feed", e.Name)
	assert.Equal(t, "2.5 kg/s", e.Expr)

	got, err := s.Get(ctx, "feed")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	ok, err := got.Quantity.Equal(flowRate(t, 2.5))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, got.Quantity.Renderer(), "formatting rules are not persisted")
}

func TestSetReplacesValueAndKeepsID(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	first, err := s.Set(ctx, "feed", "2.5 kg/s", flowRate(t, 2.5))
	require.NoError(t, err)
	second, err := s.Set(ctx, "feed", "34.67 kg/s", flowRate(t, 34.67))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "34.67 kg/s", second.Expr)
	v, _ := second.Quantity.Magnitude().Float()
	assert.Equal(t, 34.67, v)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListDeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	arr, err := quantity.NewArray([]float64{1, 2, 3}, map[string]float64{"kg": 1})
	require.NoError(t, err)
	for name, q := range map[string]quantity.Quantity{"b": flowRate(t, 1), "a": arr, "c": quantity.Dimensionless(0.5)} {
		_, err := s.Set(ctx, name, "", q)
		require.NoError(t, err)
	}

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, []float64{1, 2, 3}, entries[0].Quantity.Magnitude().Values())
	assert.True(t, entries[2].Quantity.Units().IsZero())

	require.NoError(t, s.Delete(ctx, "b"))
	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "b"), ErrNotFound)

	_, err = s.Set(ctx, "  ", "1", quantity.Dimensionless(1))
	assert.Error(t, err)
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	_, err := s.Set(ctx, "feed", "2.5 kg/s", flowRate(t, 2.5))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	e, err := again.Get(ctx, "feed")
	require.NoError(t, err)
	assert.Equal(t, flowRate(t, 2.5).Units(), e.Quantity.Units())
}

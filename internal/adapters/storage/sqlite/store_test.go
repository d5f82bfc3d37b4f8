package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/recordstore"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "clinic.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, recordstore.KeyPatients, []byte(`{"version":1,"data":[]}`)))
	require.NoError(t, s.Set(ctx, recordstore.KeyPatients, []byte(`{"version":1,"data":[{"id":"p1"}]}`)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get(ctx, recordstore.KeyPatients)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"version":1,"data":[{"id":"p1"}]}`, string(got))
}

func TestStore_KeysAndDelete(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, recordstore.BudgetsKey("p2"), []byte(`[]`)))
	require.NoError(t, s.Set(ctx, recordstore.BudgetsKey("p1"), []byte(`[]`)))
	require.NoError(t, s.Set(ctx, recordstore.DocumentsKey("p1"), []byte(`[]`)))

	keys, err := s.Keys(ctx, recordstore.PrefixBudgets)
	require.NoError(t, err)
	assert.Equal(t, []string{"patient_budgets_p1", "patient_budgets_p2"}, keys)

	require.NoError(t, s.Delete(ctx, recordstore.BudgetsKey("p1")))
	_, ok, err := s.Get(ctx, recordstore.BudgetsKey("p1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

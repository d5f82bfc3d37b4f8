package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/adapters/storage/memory"
	"dental-clinic/internal/recordstore"
)

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), nil, nil)

	ok, err := svc.LoggedIn(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Login(ctx))
	ok, err = svc.LoggedIn(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Logout(ctx))
	ok, err = svc.LoggedIn(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLegacyBareFlag(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, recordstore.KeyLoggedIn, []byte("true")))

	ok, err := NewService(store, nil, nil).LoggedIn(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

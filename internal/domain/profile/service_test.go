package profile

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/adapters/storage/memory"
	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/recordstore"
)

func dataURL(n int) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", n)))
}

func newTestService(t *testing.T, store recordstore.Store, bus *eventbus.Bus) *Service {
	t.Helper()
	svc := NewService(Options{Store: store, Bus: bus, MaxImageBytes: 100})
	require.NoError(t, svc.Start(context.Background()))
	return svc
}

func TestUpdate_PublishesAndCaches(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New(nil, nil)
	svc := newTestService(t, memory.NewStore(), bus)

	updates := 0
	_, err := eventbus.On(bus, "test", func(context.Context, eventbus.ProfileUpdated) error {
		updates++
		return nil
	})
	require.NoError(t, err)

	p, err := svc.Update(ctx, Profile{Name: " Dra. Elena Martín ", Specialty: "Periodoncia", Signature: dataURL(100)})
	require.NoError(t, err)
	assert.Equal(t, "Dra. Elena Martín", p.Name)
	assert.Equal(t, 1, updates)
	assert.Equal(t, "Periodoncia", svc.Get(ctx).Specialty)
}

func TestUpdate_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewStore(), eventbus.New(nil, nil))

	_, err := svc.Update(ctx, Profile{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Update(ctx, Profile{Name: "X", Logo: dataURL(101)})
	assert.ErrorIs(t, err, ErrTooLarge)
	_, err = svc.Update(ctx, Profile{Name: "X", Logo: "https://example.com/logo.png"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Update(ctx, Profile{Name: "X", Logo: "data:image/png;base64,@@@"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, svc.Get(ctx).Name)
}

func TestExternalWriteRefreshesCache(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New(nil, nil)
	store := recordstore.NewNotifying(memory.NewStore(), bus, nil)
	svc := newTestService(t, store, bus)

	raw, err := recordstore.NewCodec(schemaVersion, nil).Encode(Profile{Name: "Dr. Luis Pardo"})
	require.NoError(t, err)
	require.NoError(t, store.Set(recordstore.WithSource(ctx, "other-tab"), recordstore.KeyProfile, raw))

	assert.Equal(t, "Dr. Luis Pardo", svc.Get(ctx).Name)
}

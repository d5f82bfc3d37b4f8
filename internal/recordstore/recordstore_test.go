package recordstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/adapters/storage/memory"
	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/platform/metrics"
	"dental-clinic/internal/recordstore"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestCodec_RoundTripUsesEnvelope(t *testing.T) {
	c := recordstore.NewCodec(2, nil)

	raw, err := c.Encode([]item{{ID: "1", Name: "a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"data":[{"id":"1","name":"a"}]}`, string(raw))

	var out []item
	require.NoError(t, c.Decode(raw, &out))
	assert.Equal(t, []item{{ID: "1", Name: "a"}}, out)
}

func TestCodec_MigratesLegacyBareValue(t *testing.T) {
	c := recordstore.NewCodec(1, map[int]recordstore.Migration{
		0: func(data json.RawMessage) (json.RawMessage, error) {
			var rows []map[string]any
			if err := json.Unmarshal(data, &rows); err != nil {
				return nil, err
			}
			for _, r := range rows {
				if _, ok := r["name"]; !ok {
					r["name"] = "unknown"
				}
			}
			return json.Marshal(rows)
		},
	})

	var out []item
	require.NoError(t, c.Decode([]byte(`[{"id":"1"}]`), &out))
	assert.Equal(t, []item{{ID: "1", Name: "unknown"}}, out)
}

func TestCodec_LegacyObjectIsNotMistakenForEnvelope(t *testing.T) {
	c := recordstore.NewCodec(1, nil)

	var out map[string]any
	require.NoError(t, c.Decode([]byte(`{"version":"x","data":1,"name":"n"}`), &out))
	assert.Equal(t, "n", out["name"])
}

func TestCodec_Malformed(t *testing.T) {
	c := recordstore.NewCodec(1, nil)
	var out []item

	assert.ErrorIs(t, c.Decode([]byte(`{not json`), &out), recordstore.ErrMalformed)
	assert.ErrorIs(t, c.Decode([]byte(`{"version":9,"data":[]}`), &out), recordstore.ErrMalformed)
	assert.ErrorIs(t, c.Decode([]byte(`"a string"`), &out), recordstore.ErrMalformed)
}

func TestList_ScopedKeysAndTolerantLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	var malformedKey string
	docs := recordstore.NewScopedList[item](store, recordstore.PrefixDocuments, recordstore.NewCodec(1, nil)).
		OnMalformed(func(key string, err error) { malformedKey = key })

	_, err := docs.Load(ctx, "")
	assert.ErrorIs(t, err, recordstore.ErrEmptyKey)

	require.NoError(t, docs.Save(ctx, "p1", []item{{ID: "d1"}}))
	require.NoError(t, docs.Save(ctx, "p2", nil))

	got, err := docs.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "d1"}}, got)

	empty, err := docs.Load(ctx, "p2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	scopes, err := docs.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, scopes)

	require.NoError(t, store.Set(ctx, recordstore.DocumentsKey("p3"), []byte(`garbage`)))
	bad, err := docs.Load(ctx, "p3")
	require.NoError(t, err)
	assert.Empty(t, bad)
	assert.Equal(t, "patient_docs_p3", malformedKey)

	require.NoError(t, docs.Drop(ctx, "p1"))
	_, ok, _ := store.Get(ctx, "patient_docs_p1")
	assert.False(t, ok)
}

func TestValue_LoadSave(t *testing.T) {
	ctx := context.Background()
	v := recordstore.NewValue[bool](memory.NewStore(), recordstore.KeyLoggedIn, recordstore.NewCodec(1, nil))

	_, ok, err := v.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.Save(ctx, true))
	got, ok, err := v.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got)
}

func TestNotifying_PublishesWithSource(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New(nil, nil)
	var seen []eventbus.StoreChanged
	_, _ = eventbus.On(bus, "spy", func(ctx context.Context, e eventbus.StoreChanged) error {
		seen = append(seen, e)
		return nil
	})

	store := recordstore.NewNotifying(memory.NewStore(), bus, nil)
	require.NoError(t, store.Set(recordstore.WithSource(ctx, "patients"), recordstore.KeyPatients, []byte(`[]`)))
	require.NoError(t, store.Delete(ctx, recordstore.BudgetsKey("p1")))

	require.Len(t, seen, 2)
	assert.Equal(t, eventbus.StoreChanged{Key: "patients", Source: "patients"}, seen[0])
	assert.Equal(t, eventbus.StoreChanged{Key: "patient_budgets_p1"}, seen[1])
}

type failingStore struct{ recordstore.Store }

func (failingStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func TestNotifying_NoEventOnFailedWrite(t *testing.T) {
	bus := eventbus.New(nil, nil)
	published := false
	_, _ = eventbus.On(bus, "spy", func(ctx context.Context, e eventbus.StoreChanged) error {
		published = true
		return nil
	})

	store := recordstore.NewNotifying(failingStore{memory.NewStore()}, bus, nil)
	assert.Error(t, store.Set(context.Background(), "k", []byte(`1`)))
	assert.False(t, published)
}

func TestFamilyAndScope(t *testing.T) {
	assert.Equal(t, "patient_docs", recordstore.Family("patient_docs_abc"))
	assert.Equal(t, "patient_budgets", recordstore.Family("patient_budgets_abc"))
	assert.Equal(t, "patients", recordstore.Family("patients"))

	scope, ok := recordstore.ScopeOf(recordstore.PrefixBudgets, "patient_budgets_42")
	assert.True(t, ok)
	assert.Equal(t, "42", scope)
	_, ok = recordstore.ScopeOf(recordstore.PrefixBudgets, "patient_budgets_")
	assert.False(t, ok)
}

func TestLogMalformed_CountsByFamily(t *testing.T) {
	m := metrics.New()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, recordstore.BudgetsKey("p1"), []byte("{oops")))

	list := recordstore.NewScopedList[item](store, recordstore.PrefixBudgets, recordstore.NewCodec(1, nil)).
		OnMalformed(recordstore.LogMalformed(logger.Discard(), m))

	items, err := list.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreReadFailures.WithLabelValues("patient_budgets")))
}

func TestNotifying_PollReportsOnlyForeignWrites(t *testing.T) {
	ctx := context.Background()
	shared := memory.NewStore()

	busA, busB := eventbus.New(nil, nil), eventbus.New(nil, nil)
	a := recordstore.NewNotifying(shared, busA, nil)
	b := recordstore.NewNotifying(shared, busB, nil)

	var seenByB []eventbus.StoreChanged
	_, err := eventbus.On(busB, "test.b", func(_ context.Context, e eventbus.StoreChanged) error {
		seenByB = append(seenByB, e)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "professional_profile", []byte(`{"version":1,"data":{}}`)))
	changed, err := b.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, changed, "first poll only records")

	require.NoError(t, a.Set(ctx, recordstore.KeyPatients, []byte(`{"version":1,"data":[]}`)))
	require.NoError(t, b.Set(ctx, recordstore.KeyInvoices, []byte(`{"version":1,"data":[]}`)))
	require.NoError(t, a.Delete(ctx, "professional_profile"))

	changed, err = b.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{recordstore.KeyPatients, "professional_profile"}, changed)

	var external []string
	for _, e := range seenByB {
		if e.Source == recordstore.SourceExternal {
			external = append(external, e.Key)
		}
	}
	assert.Equal(t, changed, external)

	changed, err = b.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

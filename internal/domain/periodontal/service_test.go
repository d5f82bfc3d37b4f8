package periodontal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/domain/patients"
)

// fakePatients guarda periodontalData en memoria.
type fakePatients struct {
	data map[string]json.RawMessage
}

func (f *fakePatients) Get(_ context.Context, id string) (patients.Patient, error) {
	raw, ok := f.data[id]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	return patients.Patient{ID: id, PeriodontalData: raw}, nil
}

func (f *fakePatients) SetPeriodontalData(_ context.Context, id string, data json.RawMessage) error {
	if _, ok := f.data[id]; !ok {
		return patients.ErrNotFound
	}
	f.data[id] = data
	return nil
}

func newTestService() (*Service, *fakePatients) {
	fp := &fakePatients{data: map[string]json.RawMessage{"p1": nil}}
	svc := NewService(fp, nil)
	svc.now = func() time.Time { return time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC) }
	return svc, fp
}

func TestGet_EmptyChartWhenAbsent(t *testing.T) {
	svc, _ := newTestService()

	c, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, c.Teeth, 32)
	assert.Equal(t, 18, c.Teeth[0].Number)
	assert.Equal(t, Metrics{BleedingPct: 0, PlaquePct: 0, MeanDepth: 0, Sites: 96}, ComputeMetrics(c))

	_, err = svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_MalformedDataReadsAsEmpty(t *testing.T) {
	svc, fp := newTestService()
	fp.data["p1"] = json.RawMessage(`{"teeth":"nope"}`)

	c, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, EmptyChart(), c)
}

func TestSaveAndReload(t *testing.T) {
	ctx := context.Background()
	svc, fp := newTestService()

	_, err := svc.Save(ctx, "p1", Chart{Teeth: []Tooth{
		{Number: 16, Sites: [3]Site{{Depth: 5, Bleeding: true}, {Depth: 3}, {Depth: 4, Plaque: true}}},
		{Number: 48, Missing: true},
	}})
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(fp.data["p1"], &env))
	assert.JSONEq(t, `1`, string(env["version"]))

	c, err := svc.Get(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, c.Teeth, 32)
	for _, tooth := range c.Teeth {
		switch tooth.Number {
		case 16:
			assert.Equal(t, 5, tooth.Sites[0].Depth)
		case 48:
			assert.True(t, tooth.Missing)
		}
	}
	assert.Equal(t, time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC), c.UpdatedAt)
}

func TestSave_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Save(ctx, "p1", Chart{Teeth: []Tooth{{Number: 19}}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Save(ctx, "p1", Chart{Teeth: []Tooth{{Number: 11}, {Number: 11}}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Save(ctx, "p1", Chart{Teeth: []Tooth{{Number: 11, Sites: [3]Site{{Depth: 16}}}}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Save(ctx, "ghost", Chart{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComputeMetrics_ExcludesMissingTeeth(t *testing.T) {
	c := Chart{Teeth: []Tooth{
		{Number: 11, Sites: [3]Site{{Depth: 3, Bleeding: true, Plaque: true}, {Depth: 2}, {Depth: 4, Bleeding: true}}},
		{Number: 21, Missing: true, Sites: [3]Site{{Depth: 9, Bleeding: true}, {Depth: 9}, {Depth: 9}}},
	}}

	m := ComputeMetrics(c)
	assert.Equal(t, 3, m.Sites)
	assert.Equal(t, 66.7, m.BleedingPct)
	assert.Equal(t, 33.3, m.PlaquePct)
	assert.Equal(t, 3.0, m.MeanDepth)

	assert.Equal(t, Metrics{}, ComputeMetrics(Chart{Teeth: []Tooth{{Number: 11, Missing: true}}}))
}

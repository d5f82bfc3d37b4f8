package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic/internal/adapters/storage/memory"
	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/recordstore"
)

func newTestLedger(store recordstore.Store) *Ledger {
	l := NewLedger(store, nil, nil)
	l.now = func() time.Time { return time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestLedger_AppendNumbersSequentially(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(memory.NewStore())

	a, err := l.Append(ctx, AppendInput{AppointmentID: "a1", PatientID: "p1", PatientName: "Ana", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	b, err := l.Append(ctx, AppendInput{AppointmentID: "a2", PatientID: "p1", PatientName: "Ana", Amount: decimal.NewFromInt(20), Method: MethodCard})
	require.NoError(t, err)

	assert.Equal(t, "F-2026-0001", a.Number)
	assert.Equal(t, "F-2026-0002", b.Number)
	assert.Equal(t, MethodCash, a.Method)

	all, err := l.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byAppt, err := l.ListByAppointment(ctx, "a2")
	require.NoError(t, err)
	require.Len(t, byAppt, 1)
	assert.Equal(t, b.ID, byAppt[0].ID)

	byPatient, err := l.ListByPatient(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, byPatient, 2)
}

func TestLedger_RejectsNonPositiveAmounts(t *testing.T) {
	l := newTestLedger(memory.NewStore())

	_, err := l.Append(context.Background(), AppendInput{PatientName: "Ana", Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = l.Append(context.Background(), AppendInput{PatientName: "Ana", Amount: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNextNumber_SkipsGapsAndOtherYears(t *testing.T) {
	items := []Invoice{{Number: "F-2025-0009"}, {Number: "F-2026-0003"}, {Number: "F-2026-0001"}, {Number: "borrador"}}
	assert.Equal(t, "F-2026-0004", nextNumber(items, 2026))
	assert.Equal(t, "F-2027-0001", nextNumber(items, 2027))
}

func TestLedger_WritesCarrySource(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New(nil, nil)
	var sources []string
	_, err := eventbus.On(bus, "test.store", func(_ context.Context, e eventbus.StoreChanged) error {
		sources = append(sources, e.Key+":"+e.Source)
		return nil
	})
	require.NoError(t, err)

	l := newTestLedger(recordstore.NewNotifying(memory.NewStore(), bus, nil))
	_, err = l.Append(ctx, AppendInput{PatientName: "Ana", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	assert.Equal(t, []string{recordstore.KeyInvoices + ":" + Source}, sources)
}

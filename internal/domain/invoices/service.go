package invoices

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/recordstore"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	Source        = "invoices"
	schemaVersion = 1
)

type Ledger struct {
	list *recordstore.List[Invoice]
	log  logger.Logger
	now  func() time.Time

	// Append lee y reescribe la lista completa.
	mu sync.Mutex
}

func NewLedger(store recordstore.Store, onMalformed recordstore.MalformedHook, log logger.Logger) *Ledger {
	if log == nil {
		log = logger.Discard()
	}
	return &Ledger{
		list: recordstore.NewList[Invoice](store, recordstore.KeyInvoices, recordstore.NewCodec(schemaVersion, nil)).
			OnMalformed(onMalformed),
		log: log.With(map[string]any{"module": "invoices"}),
		now: time.Now,
	}
}

type AppendInput struct {
	AppointmentID string
	PatientID     string
	PatientName   string
	Concept       string
	Amount        decimal.Decimal
	Method        string
}

func (l *Ledger) Append(ctx context.Context, in AppendInput) (Invoice, error) {
	if !in.Amount.IsPositive() || strings.TrimSpace(in.PatientName) == "" {
		return Invoice{}, ErrInvalidInput
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = MethodCash
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.list.Load(ctx, "")
	if err != nil {
		return Invoice{}, err
	}

	issued := l.now().UTC()
	inv := Invoice{
		ID:            uuid.NewString(),
		Number:        nextNumber(items, issued.Year()),
		AppointmentID: strings.TrimSpace(in.AppointmentID),
		PatientID:     strings.TrimSpace(in.PatientID),
		PatientName:   strings.TrimSpace(in.PatientName),
		Concept:       strings.TrimSpace(in.Concept),
		Amount:        in.Amount,
		Method:        method,
		IssuedAt:      issued,
	}

	if err := l.list.Save(recordstore.WithSource(ctx, Source), "", append(items, inv)); err != nil {
		return Invoice{}, err
	}

	l.log.Info("invoice issued", map[string]any{"number": inv.Number, "appointment_id": inv.AppointmentID})
	return inv, nil
}

// nextNumber returns F-<year>-<seq> with seq one past the highest issued
// that year, so gaps never cause reuse.
func nextNumber(items []Invoice, year int) string {
	prefix := fmt.Sprintf("F-%d-", year)
	max := 0
	for _, inv := range items {
		if !strings.HasPrefix(inv.Number, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(inv.Number, prefix)); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%04d", prefix, max+1)
}

func (l *Ledger) List(ctx context.Context) ([]Invoice, error) {
	return l.list.Load(ctx, "")
}

func (l *Ledger) ListByAppointment(ctx context.Context, appointmentID string) ([]Invoice, error) {
	return l.filter(ctx, func(inv Invoice) bool { return inv.AppointmentID == appointmentID })
}

func (l *Ledger) ListByPatient(ctx context.Context, patientID string) ([]Invoice, error) {
	return l.filter(ctx, func(inv Invoice) bool { return inv.PatientID == patientID })
}

func (l *Ledger) filter(ctx context.Context, keep func(Invoice) bool) ([]Invoice, error) {
	items, err := l.list.Load(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(items))
	for _, inv := range items {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	return out, nil
}

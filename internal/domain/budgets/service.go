package budgets

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

	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/recordstore"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("budget not found")
	ErrUnknownPatient = errors.New("patient not found")
	ErrCompleted      = errors.New("budget is completed")
)

const Source = "budgets"

// PatientChecker validates the patient scope before writing.
type PatientChecker interface {
	Exists(ctx context.Context, id string) bool
}

type Service struct {
	list     *recordstore.List[Budget]
	patients PatientChecker
	bus      *eventbus.Bus
	log      logger.Logger
	now      func() time.Time

	mu sync.Mutex
}

type Options struct {
	Store       recordstore.Store
	OnMalformed recordstore.MalformedHook
	Patients    PatientChecker
	Bus         *eventbus.Bus
	Logger      logger.Logger
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		list:     newList(opts.Store, opts.OnMalformed),
		patients: opts.Patients,
		bus:      opts.Bus,
		log:      log.With(map[string]any{"module": "budgets"}),
		now:      time.Now,
	}
}

// Start drops a patient's budgets when the patient is deleted.
func (s *Service) Start(ctx context.Context) error {
	_, err := eventbus.On(s.bus, "budgets.cleanup", func(ctx context.Context, e eventbus.PatientDeleted) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.list.Drop(recordstore.WithSource(ctx, Source), e.PatientID); err != nil {
			return fmt.Errorf("drop budgets: %w", err)
		}
		s.log.Debug("budgets dropped", map[string]any{"patient_id": e.PatientID})
		return nil
	})
	return err
}

// DropOrphans removes budget lists whose patient no longer exists, left
// behind when a deletion's cleanup never ran.
func (s *Service) DropOrphans(ctx context.Context) (int, error) {
	if s.patients == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	scopes, err := s.list.Scopes(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range scopes {
		if s.patients.Exists(ctx, id) {
			continue
		}
		if err := s.list.Drop(recordstore.WithSource(ctx, Source), id); err != nil {
			return n, fmt.Errorf("drop orphan budgets: %w", err)
		}
		n++
	}
	if n > 0 {
		s.log.Info("orphan budgets dropped", map[string]any{"count": n})
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, patientID string) ([]Budget, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidInput
	}
	return s.list.Load(ctx, patientID)
}

func (s *Service) Get(ctx context.Context, patientID, id string) (Budget, error) {
	items, err := s.List(ctx, patientID)
	if err != nil {
		return Budget{}, err
	}
	for _, b := range items {
		if b.ID == id {
			return b, nil
		}
	}
	return Budget{}, ErrNotFound
}

type CreateInput struct {
	Items []LineItem
	Notes string
}

func validItems(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, ErrInvalidInput
	}
	out := make([]LineItem, 0, len(items))
	for _, li := range items {
		li.Description = strings.TrimSpace(li.Description)
		if li.Description == "" || li.Quantity < 1 || li.UnitPrice.IsNegative() {
			return nil, ErrInvalidInput
		}
		out = append(out, li)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, patientID string, in CreateInput) (Budget, error) {
	items, err := validItems(in.Items)
	if err != nil {
		return Budget{}, err
	}
	if s.patients != nil && !s.patients.Exists(ctx, patientID) {
		return Budget{}, ErrUnknownPatient
	}

	var b Budget
	err = s.update(ctx, patientID, func(list []Budget) ([]Budget, error) {
		b = Budget{
			ID:         uuid.NewString(),
			PatientID:  patientID,
			Number:     nextNumber(list),
			Items:      items,
			AmountPaid: decimal.Zero,
			Status:     StatusPending,
			CreatedAt:  s.now().UTC(),
			Notes:      strings.TrimSpace(in.Notes),
		}
		return append(list, b), nil
	})
	if err != nil {
		return Budget{}, err
	}
	return b, nil
}

// nextNumber is one past the highest P-<n> in the list, so deleting a
// budget never makes a number reappear.
func nextNumber(list []Budget) string {
	max := 0
	for _, b := range list {
		if n, err := strconv.Atoi(strings.TrimPrefix(b.Number, "P-")); err == nil && n > max {
			max = n
		}
	}
	return "P-" + strconv.Itoa(max+1)
}

func (s *Service) UpdateItems(ctx context.Context, patientID, id string, items []LineItem) (Budget, error) {
	items, err := validItems(items)
	if err != nil {
		return Budget{}, err
	}
	return s.modify(ctx, patientID, id, func(b *Budget) error {
		if b.Status == StatusCompleted {
			return ErrCompleted
		}
		b.Items = items
		return nil
	})
}

// SetStatus is the manual status change. Completado is only reachable when
// the budget is fully paid, and a fully paid budget stays Completado.
func (s *Service) SetStatus(ctx context.Context, patientID, id string, status Status) (Budget, error) {
	if !status.Valid() {
		return Budget{}, ErrInvalidInput
	}
	return s.modify(ctx, patientID, id, func(b *Budget) error {
		if status == StatusCompleted && !b.FullyPaid() {
			return ErrInvalidInput
		}
		if b.Status == StatusCompleted && status != StatusCompleted && b.FullyPaid() {
			return ErrCompleted
		}
		b.Status = status
		return nil
	})
}

// ProcessPayment adds amount to AmountPaid. The budget becomes Completado
// once AmountPaid covers Total; otherwise it is promoted to En proceso if it
// was behind. Status never moves backwards here.
func (s *Service) ProcessPayment(ctx context.Context, patientID, id string, amount decimal.Decimal) (Budget, error) {
	if !amount.IsPositive() {
		return Budget{}, ErrInvalidInput
	}
	b, err := s.modify(ctx, patientID, id, func(b *Budget) error {
		b.AmountPaid = b.AmountPaid.Add(amount)
		switch {
		case b.FullyPaid():
			b.Status = StatusCompleted
		case statusRank[b.Status] < statusRank[StatusInProgress]:
			b.Status = StatusInProgress
		}
		return nil
	})
	if err != nil {
		return Budget{}, err
	}

	s.log.Info("budget payment", map[string]any{"budget_id": b.ID, "amount": amount.String(), "status": string(b.Status)})
	s.bus.Publish(ctx, eventbus.Notification{
		Title:       "Pago de presupuesto",
		Description: b.Number + " · " + amount.StringFixed(2) + " €",
		Category:    eventbus.CategorySuccess,
	})
	return b, nil
}

// Delete removes exactly the budget with id.
func (s *Service) Delete(ctx context.Context, patientID, id string) error {
	return s.update(ctx, patientID, func(list []Budget) ([]Budget, error) {
		for i := range list {
			if list[i].ID == id {
				return append(list[:i:i], list[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

func (s *Service) update(ctx context.Context, patientID string, fn func([]Budget) ([]Budget, error)) error {
	if strings.TrimSpace(patientID) == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.list.Load(ctx, patientID)
	if err != nil {
		return err
	}
	list, err = fn(list)
	if err != nil {
		return err
	}
	return s.list.Save(recordstore.WithSource(ctx, Source), patientID, list)
}

func (s *Service) modify(ctx context.Context, patientID, id string, fn func(*Budget) error) (Budget, error) {
	var out Budget
	err := s.update(ctx, patientID, func(list []Budget) ([]Budget, error) {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			if err := fn(&list[i]); err != nil {
				return nil, err
			}
			out = list[i]
			return list, nil
		}
		return nil, ErrNotFound
	})
	return out, err
}

package appointments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dental-clinic/internal/domain/invoices"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/recordstore"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("appointment not found")
)

const (
	Source          = "appointments"
	schemaVersion   = 1
	defaultDuration = 30 * time.Minute
)

// PatientRecorder is the only way the scheduler touches patients.
type PatientRecorder interface {
	RecordVisit(ctx context.Context, in patients.VisitInput) (patients.Patient, bool, error)
	UndoVisit(ctx context.Context, patientID, appointmentID string, created bool) error
}

type InvoiceAppender interface {
	Append(ctx context.Context, in invoices.AppendInput) (invoices.Invoice, error)
}

type Scheduler struct {
	list     *recordstore.List[Appointment]
	patients PatientRecorder
	invoices InvoiceAppender
	bus      *eventbus.Bus
	log      logger.Logger
	now      func() time.Time

	mu sync.Mutex

	draftMu sync.RWMutex
	draft   *CreateInput
}

type Options struct {
	Store       recordstore.Store
	OnMalformed recordstore.MalformedHook
	Patients    PatientRecorder
	Invoices    InvoiceAppender
	Bus         *eventbus.Bus
	Logger      logger.Logger
	// Now defaults to time.Now; it decides what "today" is.
	Now func() time.Time
}

func NewScheduler(opts Options) *Scheduler {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		list: recordstore.NewList[Appointment](opts.Store, recordstore.KeyAppointments, recordstore.NewCodec(schemaVersion, nil)).
			OnMalformed(opts.OnMalformed),
		patients: opts.Patients,
		invoices: opts.Invoices,
		bus:      opts.Bus,
		log:      log.With(map[string]any{"module": "appointments"}),
		now:      now,
	}
}

// Start subscribes the booking draft to calendar slot picks.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := eventbus.On(s.bus, "appointments.draft", func(_ context.Context, e eventbus.SlotChosen) error {
		end := ""
		if t, err := parseClock(e.Start); err == nil {
			end = t.Add(defaultDuration).Format(clockLayout)
		}
		s.draftMu.Lock()
		s.draft = &CreateInput{Date: e.Date, Start: e.Start, End: end, Treatment: defaultTreatment}
		s.draftMu.Unlock()
		return nil
	})
	return err
}

type CreateInput struct {
	PatientName string          `json:"patientName"`
	Phone       string          `json:"phone,omitempty"`
	Treatment   string          `json:"treatment"`
	Date        string          `json:"date"`
	Start       string          `json:"start"`
	End         string          `json:"end,omitempty"`
	Cost        decimal.Decimal `json:"cost"`
	Notes       string          `json:"notes,omitempty"`
}

// Create books an appointment and records the visit on the patient
// directory, which creates the patient when the name is new.
func (s *Scheduler) Create(ctx context.Context, in CreateInput) (Appointment, error) {
	name := strings.TrimSpace(in.PatientName)
	date := strings.TrimSpace(in.Date)
	if name == "" || in.Cost.IsNegative() {
		return Appointment{}, ErrInvalidInput
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return Appointment{}, ErrInvalidInput
	}
	start, end, err := normalizeSpan(in.Start, in.End)
	if err != nil {
		return Appointment{}, err
	}
	treatment := strings.TrimSpace(in.Treatment)
	if treatment == "" {
		treatment = defaultTreatment
	}

	id := uuid.NewString()
	p, created, err := s.patients.RecordVisit(ctx, patients.VisitInput{
		PatientName: name,
		Phone:       in.Phone,
		VisitDate:   date,
		Treatment: patients.TreatmentInput{
			Date:          date,
			Description:   treatment,
			Cost:          in.Cost,
			Status:        patients.TreatmentScheduled,
			AppointmentID: id,
		},
	})
	if err != nil {
		if errors.Is(err, patients.ErrInvalidInput) {
			return Appointment{}, ErrInvalidInput
		}
		return Appointment{}, err
	}

	a := Appointment{
		ID:          id,
		PatientID:   p.ID,
		PatientName: p.Name,
		Treatment:   treatment,
		Date:        date,
		Start:       start,
		End:         end,
		Status:      StatusPending,
		Cost:        in.Cost,
		Paid:        decimal.Zero,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   s.now().UTC(),
	}

	s.mu.Lock()
	err = s.update(ctx, func(items []Appointment) ([]Appointment, error) {
		return append(items, a), nil
	})
	s.mu.Unlock()
	if err != nil {
		// El paciente ya se escribió; se deshace la visita.
		if uerr := s.patients.UndoVisit(ctx, p.ID, id, created); uerr != nil {
			s.log.Error("undo visit failed", map[string]any{"appointment_id": id, "patient_id": p.ID, "error": uerr})
		}
		return Appointment{}, err
	}

	s.log.Info("appointment created", map[string]any{
		"appointment_id": a.ID,
		"patient_id":     a.PatientID,
		"new_patient":    created,
	})
	s.notify(ctx, "Cita creada", a.PatientName+" · "+a.Date+" "+a.Start, eventbus.CategorySuccess)
	return a, nil
}

func normalizeSpan(start, end string) (string, string, error) {
	st, err := parseClock(strings.TrimSpace(start))
	if err != nil {
		return "", "", err
	}
	var et time.Time
	if strings.TrimSpace(end) == "" {
		et = st.Add(defaultDuration)
	} else if et, err = parseClock(strings.TrimSpace(end)); err != nil {
		return "", "", err
	}
	if !et.After(st) {
		return "", "", ErrInvalidInput
	}
	return st.Format(clockLayout), et.Format(clockLayout), nil
}

// update is read-modify-write over the whole list. Callers hold s.mu.
func (s *Scheduler) update(ctx context.Context, fn func([]Appointment) ([]Appointment, error)) error {
	items, err := s.list.Load(ctx, "")
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	return s.list.Save(recordstore.WithSource(ctx, Source), "", items)
}

func (s *Scheduler) modify(ctx context.Context, id string, fn func(a *Appointment) error) (Appointment, error) {
	var out Appointment

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.update(ctx, func(items []Appointment) ([]Appointment, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if err := fn(&items[i]); err != nil {
				return nil, err
			}
			out = items[i]
			return items, nil
		}
		return nil, ErrNotFound
	})
	return out, err
}

func (s *Scheduler) Get(ctx context.Context, id string) (Appointment, error) {
	items, err := s.list.Load(ctx, "")
	if err != nil {
		return Appointment{}, err
	}
	for _, a := range items {
		if a.ID == id {
			return a, nil
		}
	}
	return Appointment{}, ErrNotFound
}

func (s *Scheduler) List(ctx context.Context) ([]Appointment, error) {
	return s.list.Load(ctx, "")
}

// ListByDate returns the day's appointments ordered by start.
func (s *Scheduler) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	return s.filterSorted(ctx, func(a Appointment) bool { return a.Date == date })
}

func (s *Scheduler) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	items, err := s.list.Load(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0)
	for _, a := range items {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

// WaitingRoom lists the day's pending and in-progress appointments, earliest
// start first.
func (s *Scheduler) WaitingRoom(ctx context.Context, date string) ([]Appointment, error) {
	return s.filterSorted(ctx, func(a Appointment) bool { return a.Date == date && a.Status.Waiting() })
}

func (s *Scheduler) WaitingRoomToday(ctx context.Context) ([]Appointment, error) {
	return s.WaitingRoom(ctx, s.Today())
}

func (s *Scheduler) Today() string {
	return s.now().Format(time.DateOnly)
}

func (s *Scheduler) filterSorted(ctx context.Context, keep func(Appointment) bool) ([]Appointment, error) {
	items, err := s.list.Load(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0)
	for _, a := range items {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// Calendar places the day's appointments on the grid. Appointments starting
// outside the display window are left out; one running past the window's
// end is cut there.
func (s *Scheduler) Calendar(ctx context.Context, date string) ([]CalendarEntry, error) {
	day, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]CalendarEntry, 0, len(day))
	for _, a := range day {
		top, err := SlotOffset(a.Start)
		if err != nil {
			continue
		}
		height, err := SlotHeight(a.Start, a.End)
		if err != nil {
			continue
		}
		out = append(out, CalendarEntry{Appointment: a, Top: top, Height: height})
	}
	return out, nil
}

func (s *Scheduler) UpdateStatus(ctx context.Context, id string, status Status) (Appointment, error) {
	if !status.Valid() {
		return Appointment{}, ErrInvalidInput
	}
	return s.modify(ctx, id, func(a *Appointment) error {
		a.Status = status
		return nil
	})
}

func (s *Scheduler) Reschedule(ctx context.Context, id, date, start, end string) (Appointment, error) {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return Appointment{}, ErrInvalidInput
	}
	start, end, err := normalizeSpan(start, end)
	if err != nil {
		return Appointment{}, err
	}
	return s.modify(ctx, id, func(a *Appointment) error {
		a.Date, a.Start, a.End = date, start, end
		return nil
	})
}

// Delete removes exactly the appointment with id.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(ctx, func(items []Appointment) ([]Appointment, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i:i], items[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

// RegisterPayment adds amount to the appointment's paid total and issues
// one invoice for it. The appointment is saved first; if the invoice cannot
// be appended the payment is taken back, so paid and the ledger move
// together.
func (s *Scheduler) RegisterPayment(ctx context.Context, id string, amount decimal.Decimal, method string) (Appointment, invoices.Invoice, error) {
	if !amount.IsPositive() {
		return Appointment{}, invoices.Invoice{}, ErrInvalidInput
	}

	a, inv, err := s.pay(ctx, id, amount, method)
	if err != nil {
		return Appointment{}, invoices.Invoice{}, err
	}

	s.log.Info("payment registered", map[string]any{
		"appointment_id": a.ID,
		"amount":         amount.String(),
		"invoice":        inv.Number,
	})
	s.notify(ctx, "Pago registrado", inv.Number+" · "+amount.StringFixed(2)+" €", eventbus.CategorySuccess)
	return a, inv, nil
}

func (s *Scheduler) pay(ctx context.Context, id string, amount decimal.Decimal, method string) (Appointment, invoices.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.adjustPaid(ctx, id, amount)
	if err != nil {
		return Appointment{}, invoices.Invoice{}, err
	}

	inv, err := s.invoices.Append(ctx, invoices.AppendInput{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		PatientName:   a.PatientName,
		Concept:       a.Treatment,
		Amount:        amount,
		Method:        method,
	})
	if err != nil {
		if _, rerr := s.adjustPaid(ctx, id, amount.Neg()); rerr != nil {
			s.log.Error("payment rollback failed", map[string]any{"appointment_id": id, "amount": amount.String(), "error": rerr})
		}
		return Appointment{}, invoices.Invoice{}, err
	}
	return a, inv, nil
}

// adjustPaid adds delta to the appointment's paid total. Callers hold s.mu.
func (s *Scheduler) adjustPaid(ctx context.Context, id string, delta decimal.Decimal) (Appointment, error) {
	var out Appointment
	err := s.update(ctx, func(items []Appointment) ([]Appointment, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].Paid = items[i].Paid.Add(delta)
				out = items[i]
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
	return out, err
}

// ChooseSlot announces a calendar slot pick; the draft subscription picks it up.
func (s *Scheduler) ChooseSlot(ctx context.Context, date, start string) error {
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(date)); err != nil {
		return ErrInvalidInput
	}
	if _, err := SlotOffset(strings.TrimSpace(start)); err != nil {
		return err
	}
	s.bus.Publish(ctx, eventbus.SlotChosen{Date: strings.TrimSpace(date), Start: strings.TrimSpace(start)})
	return nil
}

// Draft returns the pre-filled booking form from the last chosen slot.
func (s *Scheduler) Draft() (CreateInput, bool) {
	s.draftMu.RLock()
	defer s.draftMu.RUnlock()
	if s.draft == nil {
		return CreateInput{}, false
	}
	return *s.draft, true
}

func (s *Scheduler) notify(ctx context.Context, title, desc string, cat eventbus.Category) {
	s.bus.Publish(ctx, eventbus.Notification{Title: title, Description: desc, Category: cat})
}

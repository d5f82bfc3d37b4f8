package patients

import (
	"context"
	"encoding/json"
	"errors"
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
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("patient not found")
	ErrDuplicateName = errors.New("a patient with that name already exists")
)

// Source tags the directory's own writes and events.
const Source = "patients"

const (
	defaultAllergy   = "Ninguna"
	defaultBloodType = "Desconocido"
	defaultLastVisit = "Sin visitas"
)

// Directory owns the canonical patient list. Reads are served from memory;
// every mutation re-reads the store, applies the change and writes the whole
// collection back while holding writeMu, so two callers never append to
// stale copies.
type Directory struct {
	repo Repository
	bus  *eventbus.Bus
	log  logger.Logger
	seed []Patient
	now  func() time.Time

	writeMu sync.Mutex

	mu       sync.RWMutex
	patients []Patient
}

func NewDirectory(repo Repository, bus *eventbus.Bus, log logger.Logger, seed []Patient) *Directory {
	if log == nil {
		log = logger.Discard()
	}
	return &Directory{
		repo: repo,
		bus:  bus,
		log:  log.With(map[string]any{"module": "patients"}),
		seed: seed,
		now:  time.Now,
	}
}

// Start loads the store and subscribes to external change signals.
func (d *Directory) Start(ctx context.Context) error {
	if _, err := eventbus.On(d.bus, "patients.directory", func(ctx context.Context, e eventbus.PatientsChanged) error {
		if e.Source == Source {
			return nil
		}
		return d.Sync(ctx)
	}); err != nil {
		return err
	}
	if _, err := eventbus.On(d.bus, "patients.directory", func(ctx context.Context, e eventbus.StoreChanged) error {
		if e.Key != recordstore.KeyPatients || e.Source == Source {
			return nil
		}
		return d.Sync(ctx)
	}); err != nil {
		return err
	}
	return d.Sync(ctx)
}

// Sync re-reads the store, merges with the seed set and replaces the
// in-memory list.
func (d *Directory) Sync(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	doc, err := d.load(ctx)
	if err != nil {
		return err
	}
	d.setCache(doc.Patients)
	return nil
}

// Load returns the merged view of the store and the seed set without
// touching the in-memory list.
func (d *Directory) Load(ctx context.Context) ([]Patient, error) {
	doc, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Patients, nil
}

func (d *Directory) load(ctx context.Context) (Document, error) {
	stored, err := d.repo.Load(ctx)
	if err != nil {
		return Document{}, err
	}
	stored.Patients = merge(d.seed, stored.RetiredSeeds, stored.Patients)
	return stored, nil
}

// merge unions the seed set with stored patients. A stored patient with a
// known id replaces that entry. Otherwise a case-insensitive name match
// keeps the existing entry unless the incoming one has strictly more
// treatments, in which case it replaces it wholesale.
func merge(seed []Patient, retired []string, stored []Patient) []Patient {
	skip := make(map[string]struct{}, len(retired))
	for _, id := range retired {
		skip[id] = struct{}{}
	}

	out := make([]Patient, 0, len(seed)+len(stored))
	for _, p := range seed {
		if _, ok := skip[p.ID]; ok {
			continue
		}
		out = append(out, clonePatient(normalize(p)))
	}

	for _, in := range stored {
		in = normalize(in)

		if i := indexByID(out, in.ID); i >= 0 {
			out[i] = in
			continue
		}
		if i := indexByName(out, in.Name); i >= 0 {
			if len(in.Treatments) > len(out[i].Treatments) {
				out[i] = in
			}
			continue
		}
		out = append(out, in)
	}
	return out
}

// normalize fills fields absent in older or hand-edited records.
func normalize(p Patient) Patient {
	p.Name = strings.TrimSpace(p.Name)
	if strings.TrimSpace(p.ID) == "" {
		p.ID = stableID("patient", nameKey(p.Name))
	}
	if strings.TrimSpace(p.Allergy) == "" {
		p.Allergy = defaultAllergy
	}
	if strings.TrimSpace(p.BloodType) == "" {
		p.BloodType = defaultBloodType
	}
	if strings.TrimSpace(p.LastVisit) == "" {
		p.LastVisit = defaultLastVisit
	}
	if p.Treatments == nil {
		p.Treatments = []Treatment{}
	}
	for i := range p.Treatments {
		if p.Treatments[i].ID == "" {
			p.Treatments[i].ID = stableID("treatment", p.ID, strconv.Itoa(i))
		}
		if p.Treatments[i].Status == "" {
			p.Treatments[i].Status = TreatmentCompleted
		}
	}
	if p.Findings == nil {
		p.Findings = map[int][]Finding{}
	}
	return p
}

func indexByID(list []Patient, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func indexByName(list []Patient, name string) int {
	key := nameKey(name)
	if key == "" {
		return -1
	}
	for i := range list {
		if nameKey(list[i].Name) == key {
			return i
		}
	}
	return -1
}

func (d *Directory) setCache(list []Patient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patients = list
}

// mutate is the single write path for the patients key.
func (d *Directory) mutate(ctx context.Context, patientID string, fn func(doc *Document) error) error {
	d.writeMu.Lock()
	doc, err := d.load(ctx)
	if err == nil {
		err = fn(&doc)
	}
	if err == nil {
		err = d.repo.Save(recordstore.WithSource(ctx, Source), doc)
	}
	if err == nil {
		d.setCache(doc.Patients)
	}
	d.writeMu.Unlock()

	if err != nil {
		return err
	}
	d.bus.Publish(ctx, eventbus.PatientsChanged{Source: Source, PatientID: patientID})
	return nil
}

func (d *Directory) List(ctx context.Context) []Patient {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Patient, 0, len(d.patients))
	for _, p := range d.patients {
		out = append(out, clonePatient(p))
	}
	return out
}

func (d *Directory) Get(ctx context.Context, id string) (Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if i := indexByID(d.patients, strings.TrimSpace(id)); i >= 0 {
		return clonePatient(d.patients[i]), nil
	}
	return Patient{}, ErrNotFound
}

// FindByName matches case-insensitively on the trimmed name.
func (d *Directory) FindByName(ctx context.Context, name string) (Patient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if i := indexByName(d.patients, name); i >= 0 {
		return clonePatient(d.patients[i]), true
	}
	return Patient{}, false
}

// Exists is used by per-patient modules to validate their scope.
func (d *Directory) Exists(ctx context.Context, id string) bool {
	_, err := d.Get(ctx, id)
	return err == nil
}

type CreateInput struct {
	Name      string
	Age       int
	BloodType string
	Allergy   string
	Address   string
	Phone     string
	Email     string
}

func (d *Directory) Create(ctx context.Context, in CreateInput) (Patient, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Age < 0 {
		return Patient{}, ErrInvalidInput
	}

	p := normalize(Patient{
		ID:        uuid.NewString(),
		Name:      name,
		Age:       in.Age,
		BloodType: strings.TrimSpace(in.BloodType),
		Allergy:   strings.TrimSpace(in.Allergy),
		Address:   strings.TrimSpace(in.Address),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     strings.TrimSpace(in.Email),
	})

	err := d.mutate(ctx, p.ID, func(doc *Document) error {
		if indexByName(doc.Patients, name) >= 0 {
			return ErrDuplicateName
		}
		doc.Patients = append(doc.Patients, p)
		return nil
	})
	if err != nil {
		return Patient{}, err
	}
	return p, nil
}

type UpdateProfileInput struct {
	// Punteros para PATCH real: nil = no tocar.
	Name      *string
	Age       *int
	BloodType *string
	Allergy   *string
	Address   *string
	Phone     *string
	Email     *string
}

func (d *Directory) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (Patient, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Patient{}, ErrInvalidInput
	}
	if in.Age != nil && *in.Age < 0 {
		return Patient{}, ErrInvalidInput
	}

	var updated Patient
	err := d.mutate(ctx, id, func(doc *Document) error {
		i := indexByID(doc.Patients, id)
		if i < 0 {
			return ErrNotFound
		}
		p := doc.Patients[i]

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if j := indexByName(doc.Patients, name); j >= 0 && j != i {
				return ErrDuplicateName
			}
			p.Name = name
		}
		setTrimmed(&p.BloodType, in.BloodType)
		setTrimmed(&p.Allergy, in.Allergy)
		setTrimmed(&p.Address, in.Address)
		setTrimmed(&p.Phone, in.Phone)
		setTrimmed(&p.Email, in.Email)
		if in.Age != nil {
			p.Age = *in.Age
		}

		updated = normalize(p)
		doc.Patients[i] = updated
		return nil
	})
	if err != nil {
		return Patient{}, err
	}
	return clonePatient(updated), nil
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

type TreatmentInput struct {
	Date          string
	Description   string
	Tooth         int
	Cost          decimal.Decimal
	Status        TreatmentStatus
	AppointmentID string
}

func (d *Directory) newTreatment(in TreatmentInput) (Treatment, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" || in.Cost.IsNegative() {
		return Treatment{}, ErrInvalidInput
	}
	if in.Tooth != 0 && !ValidTooth(in.Tooth) {
		return Treatment{}, ErrInvalidInput
	}
	status := in.Status
	if status == "" {
		status = TreatmentCompleted
	}
	if status != TreatmentCompleted && status != TreatmentScheduled {
		return Treatment{}, ErrInvalidInput
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = d.now().Format(time.DateOnly)
	}
	return Treatment{
		ID:            uuid.NewString(),
		Date:          date,
		Description:   desc,
		Tooth:         in.Tooth,
		Cost:          in.Cost,
		Status:        status,
		AppointmentID: strings.TrimSpace(in.AppointmentID),
	}, nil
}

func (d *Directory) AddTreatment(ctx context.Context, id string, in TreatmentInput) (Patient, error) {
	t, err := d.newTreatment(in)
	if err != nil {
		return Patient{}, err
	}

	var updated Patient
	err = d.mutate(ctx, id, func(doc *Document) error {
		i := indexByID(doc.Patients, id)
		if i < 0 {
			return ErrNotFound
		}
		doc.Patients[i].Treatments = append(doc.Patients[i].Treatments, t)
		updated = doc.Patients[i]
		return nil
	})
	if err != nil {
		return Patient{}, err
	}
	return clonePatient(updated), nil
}

type VisitInput struct {
	PatientName string
	Phone       string
	Treatment   TreatmentInput
	// Display string stored in LastVisit.
	VisitDate string
}

// RecordVisit is how the scheduler touches patients: an unknown name
// creates a patient holding just this treatment; a known name (matched
// case-insensitively) gets the treatment appended and LastVisit updated.
func (d *Directory) RecordVisit(ctx context.Context, in VisitInput) (Patient, bool, error) {
	name := strings.TrimSpace(in.PatientName)
	if name == "" {
		return Patient{}, false, ErrInvalidInput
	}
	t, err := d.newTreatment(in.Treatment)
	if err != nil {
		return Patient{}, false, err
	}
	visit := strings.TrimSpace(in.VisitDate)
	if visit == "" {
		visit = t.Date
	}

	var (
		result  Patient
		created bool
	)
	fresh := uuid.NewString()
	err = d.mutate(ctx, "", func(doc *Document) error {
		if i := indexByName(doc.Patients, name); i >= 0 {
			doc.Patients[i].Treatments = append(doc.Patients[i].Treatments, t)
			doc.Patients[i].LastVisit = visit
			if doc.Patients[i].Phone == "" {
				doc.Patients[i].Phone = strings.TrimSpace(in.Phone)
			}
			result = doc.Patients[i]
			return nil
		}

		created = true
		result = normalize(Patient{
			ID:         fresh,
			Name:       name,
			Phone:      strings.TrimSpace(in.Phone),
			LastVisit:  visit,
			Treatments: []Treatment{t},
		})
		doc.Patients = append(doc.Patients, result)
		return nil
	})
	if err != nil {
		return Patient{}, false, err
	}

	d.log.Debug("visit recorded", map[string]any{"patient_id": result.ID, "created": created})
	return clonePatient(result), created, nil
}

// UndoVisit takes back a RecordVisit whose booking could not be saved: the
// treatment tagged with appointmentID is removed and LastVisit falls back to
// the latest remaining treatment. A patient the visit created is removed.
func (d *Directory) UndoVisit(ctx context.Context, patientID, appointmentID string, created bool) error {
	if strings.TrimSpace(appointmentID) == "" {
		return ErrInvalidInput
	}
	err := d.mutate(ctx, patientID, func(doc *Document) error {
		i := indexByID(doc.Patients, patientID)
		if i < 0 {
			return ErrNotFound
		}
		p := &doc.Patients[i]
		kept := p.Treatments[:0:0]
		for _, t := range p.Treatments {
			if t.AppointmentID != appointmentID {
				kept = append(kept, t)
			}
		}
		if created && len(kept) == 0 {
			doc.Patients = append(doc.Patients[:i:i], doc.Patients[i+1:]...)
			return nil
		}
		p.Treatments = kept
		p.LastVisit = latestVisit(kept)
		return nil
	})
	if err != nil {
		return err
	}
	d.log.Warn("visit undone", map[string]any{"patient_id": patientID, "appointment_id": appointmentID, "created": created})
	return nil
}

func latestVisit(ts []Treatment) string {
	last := ""
	for _, t := range ts {
		if t.Date > last {
			last = t.Date
		}
	}
	if last == "" {
		return defaultLastVisit
	}
	return last
}

type FindingInput struct {
	Tooth       int
	Type        FindingType
	Description string
	Date        string
}

func (d *Directory) AddFinding(ctx context.Context, id string, in FindingInput) (Finding, error) {
	if !ValidTooth(in.Tooth) || !ValidFindingType(in.Type) {
		return Finding{}, ErrInvalidInput
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = d.now().Format(time.DateOnly)
	}
	f := Finding{
		ID:          uuid.NewString(),
		Tooth:       in.Tooth,
		Type:        in.Type,
		Description: strings.TrimSpace(in.Description),
		Date:        date,
	}

	err := d.mutate(ctx, id, func(doc *Document) error {
		i := indexByID(doc.Patients, id)
		if i < 0 {
			return ErrNotFound
		}
		doc.Patients[i].Findings[f.Tooth] = append(doc.Patients[i].Findings[f.Tooth], f)
		return nil
	})
	if err != nil {
		return Finding{}, err
	}
	return f, nil
}

func (d *Directory) RemoveFinding(ctx context.Context, id, findingID string) error {
	return d.mutate(ctx, id, func(doc *Document) error {
		i := indexByID(doc.Patients, id)
		if i < 0 {
			return ErrNotFound
		}
		for tooth, list := range doc.Patients[i].Findings {
			for j, f := range list {
				if f.ID != findingID {
					continue
				}
				list = append(list[:j:j], list[j+1:]...)
				if len(list) == 0 {
					delete(doc.Patients[i].Findings, tooth)
				} else {
					doc.Patients[i].Findings[tooth] = list
				}
				return nil
			}
		}
		return ErrNotFound
	})
}

func (d *Directory) SetPeriodontalData(ctx context.Context, id string, data json.RawMessage) error {
	if len(data) > 0 && !json.Valid(data) {
		return ErrInvalidInput
	}
	return d.mutate(ctx, id, func(doc *Document) error {
		i := indexByID(doc.Patients, id)
		if i < 0 {
			return ErrNotFound
		}
		doc.Patients[i].PeriodontalData = append(json.RawMessage(nil), data...)
		return nil
	})
}

// Delete removes exactly one patient. Per-patient modules clean up their
// scoped records when they receive PatientDeleted.
func (d *Directory) Delete(ctx context.Context, id string) error {
	err := d.mutate(ctx, id, func(doc *Document) error {
		i := indexByID(doc.Patients, id)
		if i < 0 {
			return ErrNotFound
		}
		doc.Patients = append(doc.Patients[:i:i], doc.Patients[i+1:]...)
		if indexByID(d.seed, id) >= 0 {
			doc.RetiredSeeds = append(doc.RetiredSeeds, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.log.Info("patient deleted", map[string]any{"patient_id": id})
	d.bus.Publish(ctx, eventbus.PatientDeleted{PatientID: id})
	return nil
}

func clonePatient(p Patient) Patient {
	out := p
	out.Treatments = append([]Treatment(nil), p.Treatments...)
	if out.Treatments == nil {
		out.Treatments = []Treatment{}
	}
	out.Findings = make(map[int][]Finding, len(p.Findings))
	for k, v := range p.Findings {
		out.Findings[k] = append([]Finding(nil), v...)
	}
	if p.PeriodontalData != nil {
		out.PeriodontalData = append(json.RawMessage(nil), p.PeriodontalData...)
	}
	return out
}

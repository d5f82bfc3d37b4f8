package eventbus

// Kind identifies an event type. The set is closed: only the events in this
// file travel on the bus.
type Kind string

const (
	KindPatientsChanged Kind = "patients_changed"
	KindPatientDeleted  Kind = "patient_deleted"
	KindSlotChosen      Kind = "slot_chosen"
	KindNotification    Kind = "notification"
	KindProfileUpdated  Kind = "profile_updated"
	KindStoreChanged    Kind = "store_changed"
)

type Event interface {
	Kind() Kind
}

// PatientsChanged asks holders of a patient list to re-read the store.
// PatientID is empty when the whole collection was rewritten.
type PatientsChanged struct {
	Source    string
	PatientID string
}

func (PatientsChanged) Kind() Kind { return KindPatientsChanged }

// PatientDeleted lets per-patient modules drop their scoped records.
type PatientDeleted struct {
	PatientID string
}

func (PatientDeleted) Kind() Kind { return KindPatientDeleted }

// SlotChosen carries a calendar slot picked by the user, used to pre-fill
// the appointment creation form.
type SlotChosen struct {
	Date  string
	Start string
}

func (SlotChosen) Kind() Kind { return KindSlotChosen }

type Category string

const (
	CategorySuccess Category = "success"
	CategoryInfo    Category = "info"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

// Notification is a user-facing toast.
type Notification struct {
	Title       string
	Description string
	Category    Category
}

func (Notification) Kind() Kind { return KindNotification }

// ProfileUpdated signals that letterhead/signature fields changed.
type ProfileUpdated struct{}

func (ProfileUpdated) Kind() Kind { return KindProfileUpdated }

// StoreChanged is emitted after a record store key was written or deleted.
type StoreChanged struct {
	Key    string
	Source string
}

func (StoreChanged) Kind() Kind { return KindStoreChanged }

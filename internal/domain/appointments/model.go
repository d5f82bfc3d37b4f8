package appointments

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Waiting reports whether the patient is still expected in the waiting room.
func (s Status) Waiting() bool {
	return s == StatusPending || s == StatusInProgress
}

// Appointment keeps Date as YYYY-MM-DD and Start/End as HH:MM so that string
// order is time order.
type Appointment struct {
	ID          string          `json:"id"`
	PatientID   string          `json:"patientId"`
	PatientName string          `json:"patientName"`
	Treatment   string          `json:"treatment"`
	Date        string          `json:"date"`
	Start       string          `json:"start"`
	End         string          `json:"end"`
	Status      Status          `json:"status"`
	Cost        decimal.Decimal `json:"cost"`
	Paid        decimal.Decimal `json:"paid"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Balance is what remains to be paid. Never negative.
func (a Appointment) Balance() decimal.Decimal {
	b := a.Cost.Sub(a.Paid)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

var treatments = []string{
	"Revisión",
	"Limpieza Dental",
	"Empaste",
	"Endodoncia",
	"Extracción",
	"Corona",
	"Implante",
	"Ortodoncia",
	"Blanqueamiento",
	"Periodoncia",
	"Urgencia",
}

// Treatments is the label vocabulary offered by the booking form. Other
// labels are accepted.
func Treatments() []string {
	return append([]string(nil), treatments...)
}

const defaultTreatment = "Revisión"

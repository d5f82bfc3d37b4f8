package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a receipt snapshot taken when a payment is registered.
// Invoices are never edited.
type Invoice struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	AppointmentID string          `json:"appointmentId,omitempty"`
	PatientID     string          `json:"patientId"`
	PatientName   string          `json:"patientName"`
	Concept       string          `json:"concept"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	IssuedAt      time.Time       `json:"issuedAt"`
}

// Payment methods offered at the front desk. Others are accepted as-is.
const (
	MethodCash     = "Efectivo"
	MethodCard     = "Tarjeta"
	MethodTransfer = "Transferencia"
)

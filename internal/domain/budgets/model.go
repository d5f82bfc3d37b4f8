package budgets

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "Pendiente"
	StatusApproved   Status = "Aprobado"
	StatusInProgress Status = "En proceso"
	StatusCompleted  Status = "Completado"
)

var statusRank = map[Status]int{
	StatusPending:    1,
	StatusApproved:   2,
	StatusInProgress: 3,
	StatusCompleted:  4,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

type LineItem struct {
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Budget has no stored total: Total is always derived from Items.
type Budget struct {
	ID         string          `json:"id"`
	PatientID  string          `json:"patientId"`
	Number     string          `json:"number"`
	Items      []LineItem      `json:"items"`
	AmountPaid decimal.Decimal `json:"amountPaid"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	Notes      string          `json:"notes,omitempty"`
}

func (b Budget) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range b.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

func (b Budget) Balance() decimal.Decimal {
	r := b.Total().Sub(b.AmountPaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (b Budget) FullyPaid() bool {
	return b.AmountPaid.GreaterThanOrEqual(b.Total())
}

package patients

import (
	"encoding/json"
	"net/url"

	"github.com/shopspring/decimal"
)

// Patient is the canonical patient record owned by the Directory.
// LastVisit is a display string, not a date.
type Patient struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Age       int    `json:"age"`
	BloodType string `json:"bloodType"`
	Allergy   string `json:"allergy"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`

	LastVisit string `json:"lastVisit"`

	Treatments []Treatment `json:"treatments"`

	// Odontogram: tooth number (FDI) -> findings on that tooth.
	Findings map[int][]Finding `json:"findings"`

	// Opaque to the directory; owned by the periodontal module.
	PeriodontalData json.RawMessage `json:"periodontalData,omitempty"`
}

// TotalCost is derived from treatments on every call and never stored.
func (p Patient) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, t := range p.Treatments {
		total = total.Add(t.Cost)
	}
	return total
}

// AvatarURL builds the URL of the external avatar generator for name.
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

type TreatmentStatus string

const (
	TreatmentScheduled TreatmentStatus = "scheduled"
	TreatmentCompleted TreatmentStatus = "completed"
)

type Treatment struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	Tooth         int             `json:"tooth,omitempty"`
	Cost          decimal.Decimal `json:"cost"`
	Status        TreatmentStatus `json:"status"`
	AppointmentID string          `json:"appointmentId,omitempty"`
}

type FindingType string

const (
	FindingTreatment FindingType = "treatment"
	FindingProblem   FindingType = "problem"
	FindingHealthy   FindingType = "healthy"
	FindingAbsent    FindingType = "absent"
)

// Finding is a dated clinical annotation on one tooth.
type Finding struct {
	ID          string      `json:"id"`
	Tooth       int         `json:"tooth"`
	Type        FindingType `json:"type"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

var findingPriority = map[FindingType]int{
	FindingProblem:   4,
	FindingAbsent:    3,
	FindingTreatment: 2,
	FindingHealthy:   1,
}

func ValidFindingType(t FindingType) bool {
	_, ok := findingPriority[t]
	return ok
}

// SummaryType picks the finding type shown as the tooth's summary dot:
// problem > absent > treatment > healthy.
func SummaryType(findings []Finding) (FindingType, bool) {
	var best FindingType
	bestRank := 0
	for _, f := range findings {
		if r := findingPriority[f.Type]; r > bestRank {
			best, bestRank = f.Type, r
		}
	}
	return best, bestRank > 0
}

// PendingCost sums treatments that are still scheduled.
func (p Patient) PendingCost() decimal.Decimal {
	total := decimal.Zero
	for _, t := range p.Treatments {
		if t.Status == TreatmentScheduled {
			total = total.Add(t.Cost)
		}
	}
	return total
}

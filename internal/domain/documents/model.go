package documents

import "time"

type Category string

const (
	CategoryXRay     Category = "Radiografía"
	CategoryConsent  Category = "Consentimiento"
	CategoryReport   Category = "Informe"
	CategoryPrescrip Category = "Receta"
	CategoryOther    Category = "Otro"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryXRay, CategoryConsent, CategoryReport, CategoryPrescrip, CategoryOther:
		return true
	}
	return false
}

// Document is the persisted metadata of an upload. URL points at the
// transient content and stops resolving after a restart or expiry.
type Document struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
	URL         string    `json:"url"`
}

package profile

import "time"

// Profile is the professional's letterhead. Signature and Logo are image
// data URLs.
type Profile struct {
	Name          string    `json:"name"`
	Specialty     string    `json:"specialty"`
	LicenseNumber string    `json:"licenseNumber"`
	Clinic        string    `json:"clinic"`
	Address       string    `json:"address"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	Signature     string    `json:"signature,omitempty"`
	Logo          string    `json:"logo,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

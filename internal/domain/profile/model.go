package profile

import "time"

// Profile is one patient's demographic and contact record. All profiles live
// together in a single collection document keyed by identifier.
type Profile struct {
	ID              string    `json:"profile_id"`
	ChildName       string    `json:"child_name"`
	FosterHome      string    `json:"foster_home,omitempty"`
	Allergies       string    `json:"allergies,omitempty"`
	PrescriberName  string    `json:"prescriber_name,omitempty"`
	PrescriberPhone string    `json:"prescriber_phone,omitempty"`
	Pharmacy        string    `json:"pharmacy,omitempty"`
	PharmacyPhone   string    `json:"pharmacy_phone,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Fields carries the caller-editable attributes of a profile. The identifier
// and timestamps are managed by the repository.
type Fields struct {
	ChildName       string
	FosterHome      string
	Allergies       string
	PrescriberName  string
	PrescriberPhone string
	Pharmacy        string
	PharmacyPhone   string
}

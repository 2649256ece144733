package medcard

import "time"

// Card is a reusable medication template for one patient and one medicine.
// Logs snapshot a card's medication info at creation time; they are never
// live-linked, so editing or deleting a card leaves existing logs alone.
type Card struct {
	MedicineName     string     `json:"medicine_name"`
	Strength         string     `json:"strength,omitempty"`
	Dosage           string     `json:"dosage,omitempty"`
	ReasonPrescribed string     `json:"reason_prescribed,omitempty"`
	ReasonPRN        string     `json:"reason_prn,omitempty"`
	Images           []ImageRef `json:"images"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ImageRef describes one validated image attached to a card. A reference is
// only ever written after the file has passed every validation check.
type ImageRef struct {
	ID           string `json:"id"`
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Bytes        int64  `json:"bytes"`
	Format       string `json:"format"`
}

// Fields carries the caller-editable attributes of a card. Images are
// managed through AddImage and RemoveImage, never replaced wholesale.
type Fields struct {
	MedicineName     string
	Strength         string
	Dosage           string
	ReasonPrescribed string
	ReasonPRN        string
}

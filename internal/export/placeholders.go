package export

import (
	"fmt"

	docx "github.com/lukasjarosch/go-docx"

	"github.com/medlog/medlog/internal/domain/logbook"
	"github.com/medlog/medlog/internal/domain/profile"
)

// The editable-document template exposes a fixed set of named placeholders:
// the patient and medication fields below, plus a repeating entry grid of
// three administration slots for each of up to 31 days. Every render
// validates the template against this set before filling it.

// gridDays is the column count of the entry grid; gridSlots matches
// logbook.MaxEntriesPerDay.
const (
	gridDays  = 31
	gridSlots = logbook.MaxEntriesPerDay
)

var basicPlaceholders = []string{
	"ChildName",
	"FosterHome",
	"DateMY",
	"AllergyContras",
	"Prescriber",
	"PrescriberPhone",
	"Pharmacy",
	"PharmacyPhone",
	"MedicineName",
	"Strength",
	"Dosage",
	"ReasonPrescribed",
	"ReasonPRN",
}

func timeKey(day, slot int) string     { return fmt.Sprintf("Time_%d_%d", day, slot) }
func initialsKey(day, slot int) string { return fmt.Sprintf("Initials_%d_%d", day, slot) }
func amountKey(day, slot int) string   { return fmt.Sprintf("Amount_%d_%d", day, slot) }

// RequiredPlaceholders returns every placeholder name the template must
// expose, in stable order.
func RequiredPlaceholders() []string {
	names := make([]string, 0, len(basicPlaceholders)+gridDays*gridSlots*3)
	names = append(names, basicPlaceholders...)
	for day := 1; day <= gridDays; day++ {
		for slot := 1; slot <= gridSlots; slot++ {
			names = append(names, timeKey(day, slot), initialsKey(day, slot), amountKey(day, slot))
		}
	}
	return names
}

// placeholderMap maps every required placeholder to its value for one
// profile and log. The mapping is 1:1 and deterministic; grid cells without
// an entry are blanked so stale template text never leaks into a render.
func placeholderMap(p *profile.Profile, l *logbook.Log) docx.PlaceholderMap {
	m := docx.PlaceholderMap{
		"ChildName":        p.ChildName,
		"FosterHome":       p.FosterHome,
		"DateMY":           l.MonthYear,
		"AllergyContras":   p.Allergies,
		"Prescriber":       p.PrescriberName,
		"PrescriberPhone":  p.PrescriberPhone,
		"Pharmacy":         p.Pharmacy,
		"PharmacyPhone":    p.PharmacyPhone,
		"MedicineName":     l.MedicineName,
		"Strength":         l.Strength,
		"Dosage":           l.Dosage,
		"ReasonPrescribed": l.ReasonPrescribed,
		"ReasonPRN":        l.ReasonPRN,
	}

	// Entries arrive day-sorted; same-day entries fill slots in stored order.
	slotOf := make(map[int]int, gridDays)
	for _, e := range l.Entries {
		if e.Day < 1 || e.Day > gridDays {
			continue
		}
		slot := slotOf[e.Day] + 1
		if slot > gridSlots {
			continue
		}
		slotOf[e.Day] = slot
		m[timeKey(e.Day, slot)] = e.Time
		m[initialsKey(e.Day, slot)] = e.Initials
		m[amountKey(e.Day, slot)] = e.AmountRemaining
	}

	for day := 1; day <= gridDays; day++ {
		for slot := slotOf[day] + 1; slot <= gridSlots; slot++ {
			m[timeKey(day, slot)] = ""
			m[initialsKey(day, slot)] = ""
			m[amountKey(day, slot)] = ""
		}
	}
	return m
}

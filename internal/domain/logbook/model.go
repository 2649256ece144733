package logbook

import (
	"sort"
	"time"
)

// MaxEntriesPerDay caps administrations recorded for one calendar day,
// matching the three scheduled dose slots on the printed log form.
const MaxEntriesPerDay = 3

// Log is one month of administration records for one patient and one
// medicine. Medication info is snapshotted from the card at creation time;
// later card edits never reach back into a log.
type Log struct {
	ProfileID        string    `json:"profile_id"`
	MonthYear        string    `json:"month_year"`
	MedicineName     string    `json:"medicine_name"`
	Strength         string    `json:"strength,omitempty"`
	Dosage           string    `json:"dosage,omitempty"`
	ReasonPrescribed string    `json:"reason_prescribed,omitempty"`
	ReasonPRN        string    `json:"reason_prn,omitempty"`
	Entries          []Entry   `json:"administration_log"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Entry is one recorded administration. Time and AmountRemaining are
// free-form caregiver notation ("8:00 AM", "29 tablets") and are stored as
// opaque display strings, never parsed into structured values.
type Entry struct {
	Day             int    `json:"day"`
	Time            string `json:"time,omitempty"`
	Initials        string `json:"initials,omitempty"`
	AmountRemaining string `json:"amount_remaining,omitempty"`
}

// MedicationInfo is the snapshot a log captures at creation.
type MedicationInfo struct {
	MedicineName     string
	Strength         string
	Dosage           string
	ReasonPrescribed string
	ReasonPRN        string
}

// Ref identifies one existing log document for a patient.
type Ref struct {
	MedicineName string `json:"medicine_name"`
	MonthYear    string `json:"month_year"`
}

// EntriesForDay returns the entries recorded for a day, in stored order.
func (l *Log) EntriesForDay(day int) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.Day == day {
			out = append(out, e)
		}
	}
	return out
}

// DaySummary counts entries per day.
func (l *Log) DaySummary() map[int]int {
	summary := make(map[int]int)
	for _, e := range l.Entries {
		summary[e.Day]++
	}
	return summary
}

// sortEntries orders entries by day ascending. The sort is stable, so
// same-day entries keep their insertion order.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Day < entries[j].Day
	})
}

// SortDayByTime reorders one day's entries by clock time. It only applies
// when every entry for the day carries a parseable time; free-form notation
// keeps insertion order, since time strings are display values by contract.
func SortDayByTime(entries []Entry, day int) {
	start, end := -1, -1
	for i, e := range entries {
		if e.Day == day {
			if start < 0 {
				start = i
			}
			end = i + 1
		}
	}
	if start < 0 {
		return
	}

	for i := start; i < end; i++ {
		if _, ok := parseClock(entries[i].Time); !ok {
			return
		}
	}

	span := entries[start:end]
	sort.SliceStable(span, func(i, j int) bool {
		ti, _ := parseClock(span[i].Time)
		tj, _ := parseClock(span[j].Time)
		return ti.Before(tj)
	})
}

var clockLayouts = []string{"3:04 PM", "3:04PM", "15:04", "3 PM"}

func parseClock(s string) (time.Time, bool) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysIn returns the number of days in a month-year label such as
// "January 2025". Labels are free-form display strings; one that does not
// parse falls back to the 31-day maximum rather than being rejected.
func DaysIn(monthYear string) int {
	t, err := time.Parse("January 2006", monthYear)
	if err != nil {
		return 31
	}
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Package logbook stores monthly administration logs, one document per
// (patient, medicine, month-year) at
// patients/<id>/logs/<medicine>_<month_year>.json. Entries are kept sorted
// by day; a day holds at most MaxEntriesPerDay entries.
package logbook

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medlog/medlog/internal/platform/docstore"
	"github.com/medlog/medlog/internal/platform/identifier"
)

var (
	// ErrNotFound is returned when no log exists for the key.
	ErrNotFound = errors.New("log not found")
	// ErrExists is returned by Create when a log for the key already exists.
	// Logs are never implicitly overwritten.
	ErrExists = errors.New("log already exists")
	// ErrDayFull is returned when a day already holds MaxEntriesPerDay entries.
	ErrDayFull = errors.New("day already has the maximum number of entries")
	// ErrDayOutOfRange is returned for a day outside the month's real length.
	ErrDayOutOfRange = errors.New("day is outside the month")
	// ErrEntryNotFound is returned for a bad (day, index) entry address.
	ErrEntryNotFound = errors.New("entry not found")
)

// Repo is the administration log repository.
type Repo struct {
	store *docstore.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewRepo returns a Repo backed by the given document store.
func NewRepo(store *docstore.Store, log zerolog.Logger) *Repo {
	return &Repo{
		store: store,
		log:   log.With().Str("component", "logbook-repo").Logger(),
		now:   time.Now,
	}
}

func logsDir(profileID string) string {
	return path.Join("patients", profileID, "logs")
}

func logDoc(profileID, medicine, monthYear string) string {
	name := identifier.Normalize(medicine) + "_" + identifier.NormalizeMonth(monthYear) + ".json"
	return path.Join(logsDir(profileID), name)
}

// Get returns the log for (patient, medicine, month-year).
func (r *Repo) Get(profileID, medicine, monthYear string) (*Log, error) {
	var l Log
	err := r.store.Read(logDoc(profileID, medicine, monthYear), &l)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create starts a new empty log, snapshotting the medication info. An
// existing log for the key fails with ErrExists.
func (r *Repo) Create(profileID, monthYear string, info MedicationInfo) (*Log, error) {
	if strings.TrimSpace(info.MedicineName) == "" {
		return nil, fmt.Errorf("medicine name is required")
	}

	doc := logDoc(profileID, info.MedicineName, monthYear)
	if r.store.Exists(doc) {
		return nil, fmt.Errorf("%w: %s / %s / %s", ErrExists, profileID, info.MedicineName, monthYear)
	}

	now := r.now()
	l := Log{
		ProfileID:        profileID,
		MonthYear:        monthYear,
		MedicineName:     info.MedicineName,
		Strength:         info.Strength,
		Dosage:           info.Dosage,
		ReasonPrescribed: info.ReasonPrescribed,
		ReasonPRN:        info.ReasonPRN,
		Entries:          []Entry{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := r.store.Write(doc, l); err != nil {
		return nil, err
	}
	r.log.Info().
		Str("profile_id", profileID).
		Str("medicine", info.MedicineName).
		Str("month_year", monthYear).
		Msg("log created")
	return &l, nil
}

// AddEntry validates the entry's day against the month's real length and the
// per-day limit, inserts it, restores day ordering, and persists the whole
// document. A rejected entry leaves the document on disk untouched.
func (r *Repo) AddEntry(profileID, medicine, monthYear string, e Entry) error {
	l, err := r.Get(profileID, medicine, monthYear)
	if err != nil {
		return err
	}

	if e.Day < 1 || e.Day > DaysIn(monthYear) {
		return fmt.Errorf("%w: day %d of %q", ErrDayOutOfRange, e.Day, monthYear)
	}
	if len(l.EntriesForDay(e.Day)) >= MaxEntriesPerDay {
		return fmt.Errorf("%w: day %d", ErrDayFull, e.Day)
	}

	l.Entries = append(l.Entries, e)
	sortEntries(l.Entries)

	return r.save(profileID, medicine, monthYear, l)
}

// UpdateEntry replaces the index-th entry (0-based) of the given day.
func (r *Repo) UpdateEntry(profileID, medicine, monthYear string, day, index int, e Entry) error {
	l, err := r.Get(profileID, medicine, monthYear)
	if err != nil {
		return err
	}

	pos, err := entryPosition(l.Entries, day, index)
	if err != nil {
		return err
	}

	e.Day = day // an update cannot move the entry to another day
	l.Entries[pos] = e

	return r.save(profileID, medicine, monthYear, l)
}

// DeleteEntry removes the index-th entry (0-based) of the given day.
func (r *Repo) DeleteEntry(profileID, medicine, monthYear string, day, index int) error {
	l, err := r.Get(profileID, medicine, monthYear)
	if err != nil {
		return err
	}

	pos, err := entryPosition(l.Entries, day, index)
	if err != nil {
		return err
	}
	l.Entries = append(l.Entries[:pos], l.Entries[pos+1:]...)

	return r.save(profileID, medicine, monthYear, l)
}

// ClearDay removes every entry for a day in one persisted write.
func (r *Repo) ClearDay(profileID, medicine, monthYear string, day int) error {
	l, err := r.Get(profileID, medicine, monthYear)
	if err != nil {
		return err
	}

	kept := l.Entries[:0]
	for _, e := range l.Entries {
		if e.Day != day {
			kept = append(kept, e)
		}
	}
	l.Entries = kept

	return r.save(profileID, medicine, monthYear, l)
}

// DeleteLog removes the whole log document. The medication card and profile
// are unaffected.
func (r *Repo) DeleteLog(profileID, medicine, monthYear string) error {
	err := r.store.Remove(logDoc(profileID, medicine, monthYear))
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	r.log.Info().
		Str("profile_id", profileID).
		Str("medicine", medicine).
		Str("month_year", monthYear).
		Msg("log deleted")
	return nil
}

// ListForProfile enumerates the patient's log documents as (medicine,
// month-year) pairs, sorted by month-year then medicine. The pairs come from
// document content, not filenames, so display casing survives.
func (r *Repo) ListForProfile(profileID string) ([]Ref, error) {
	dir := r.store.Abs(logsDir(profileID))

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var refs []Ref
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		var l Log
		if err := r.store.Read(path.Join(logsDir(profileID), de.Name()), &l); err != nil {
			return nil, err
		}
		refs = append(refs, Ref{MedicineName: l.MedicineName, MonthYear: l.MonthYear})
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].MonthYear != refs[j].MonthYear {
			return refs[i].MonthYear < refs[j].MonthYear
		}
		return refs[i].MedicineName < refs[j].MedicineName
	})
	return refs, nil
}

// Exists reports whether a log is present for the key.
func (r *Repo) Exists(profileID, medicine, monthYear string) bool {
	return r.store.Exists(logDoc(profileID, medicine, monthYear))
}

func (r *Repo) save(profileID, medicine, monthYear string, l *Log) error {
	l.UpdatedAt = r.now()
	return r.store.Write(logDoc(profileID, medicine, monthYear), l)
}

// entryPosition resolves a (day, index) address to a position in the entry
// slice, where index counts that day's entries from zero.
func entryPosition(entries []Entry, day, index int) (int, error) {
	if index < 0 {
		return 0, fmt.Errorf("%w: day %d index %d", ErrEntryNotFound, day, index)
	}
	seen := 0
	for i, e := range entries {
		if e.Day != day {
			continue
		}
		if seen == index {
			return i, nil
		}
		seen++
	}
	return 0, fmt.Errorf("%w: day %d index %d", ErrEntryNotFound, day, index)
}

// Package profile stores patient profiles in one collection document,
// profiles.json, under the data root. Every mutation reads the whole
// collection, applies the change in memory, and writes the whole collection
// back through the atomic document store. That is acceptable under the
// single-writer desktop model; concurrent external edits are last-write-wins.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medlog/medlog/internal/platform/docstore"
	"github.com/medlog/medlog/internal/platform/identifier"
)

// CollectionDoc is the store-relative path of the profiles collection.
const CollectionDoc = "profiles.json"

var (
	// ErrNotFound is returned when no profile exists for an identifier.
	ErrNotFound = errors.New("profile not found")
	// ErrDuplicateID is returned by Create when the name normalizes to an
	// identifier that is already taken. Two distinct names can collide after
	// normalization; the caller must disambiguate rather than overwrite.
	ErrDuplicateID = errors.New("profile identifier already exists")
	// ErrEmptyName is returned by Create and Update for a blank child name.
	ErrEmptyName = errors.New("child name is required")
)

// Repo is the profile repository.
type Repo struct {
	store *docstore.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewRepo returns a Repo backed by the given document store.
func NewRepo(store *docstore.Store, log zerolog.Logger) *Repo {
	return &Repo{
		store: store,
		log:   log.With().Str("component", "profile-repo").Logger(),
		now:   time.Now,
	}
}

// List returns every profile keyed by identifier. A missing collection
// document is an empty collection, not an error.
func (r *Repo) List() (map[string]Profile, error) {
	return r.load()
}

// Get returns one profile by identifier.
func (r *Repo) Get(id string) (*Profile, error) {
	profiles, err := r.load()
	if err != nil {
		return nil, err
	}
	p, ok := profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Create derives the identifier from the child name, rejects collisions with
// ErrDuplicateID, and persists the new profile. It returns the identifier.
func (r *Repo) Create(f Fields) (string, error) {
	if strings.TrimSpace(f.ChildName) == "" {
		return "", ErrEmptyName
	}

	id := identifier.Normalize(f.ChildName)
	if id == "" {
		return "", ErrEmptyName
	}

	profiles, err := r.load()
	if err != nil {
		return "", err
	}
	if _, exists := profiles[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	now := r.now()
	profiles[id] = Profile{
		ID:              id,
		ChildName:       f.ChildName,
		FosterHome:      f.FosterHome,
		Allergies:       f.Allergies,
		PrescriberName:  f.PrescriberName,
		PrescriberPhone: f.PrescriberPhone,
		Pharmacy:        f.Pharmacy,
		PharmacyPhone:   f.PharmacyPhone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := r.store.Write(CollectionDoc, profiles); err != nil {
		return "", err
	}
	r.log.Info().Str("profile_id", id).Msg("profile created")
	return id, nil
}

// Update replaces the editable fields of an existing profile. The identifier
// and creation timestamp are preserved; the update timestamp is bumped.
func (r *Repo) Update(id string, f Fields) error {
	if strings.TrimSpace(f.ChildName) == "" {
		return ErrEmptyName
	}

	profiles, err := r.load()
	if err != nil {
		return err
	}
	existing, ok := profiles[id]
	if !ok {
		return ErrNotFound
	}

	profiles[id] = Profile{
		ID:              id,
		ChildName:       f.ChildName,
		FosterHome:      f.FosterHome,
		Allergies:       f.Allergies,
		PrescriberName:  f.PrescriberName,
		PrescriberPhone: f.PrescriberPhone,
		Pharmacy:        f.Pharmacy,
		PharmacyPhone:   f.PharmacyPhone,
		CreatedAt:       existing.CreatedAt,
		UpdatedAt:       r.now(),
	}

	if err := r.store.Write(CollectionDoc, profiles); err != nil {
		return err
	}
	r.log.Info().Str("profile_id", id).Msg("profile updated")
	return nil
}

// Delete removes a profile entry. Cards and logs for the identifier are left
// on disk untouched; re-creating a profile with the same name reattaches them.
func (r *Repo) Delete(id string) error {
	profiles, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := profiles[id]; !ok {
		return ErrNotFound
	}
	delete(profiles, id)

	if err := r.store.Write(CollectionDoc, profiles); err != nil {
		return err
	}
	r.log.Info().Str("profile_id", id).Msg("profile deleted")
	return nil
}

// Search returns profiles whose child name contains term, case-insensitive.
func (r *Repo) Search(term string) (map[string]Profile, error) {
	profiles, err := r.load()
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	matched := make(map[string]Profile)
	for id, p := range profiles {
		if strings.Contains(strings.ToLower(p.ChildName), term) {
			matched[id] = p
		}
	}
	return matched, nil
}

// IDs returns all profile identifiers in sorted order.
func (r *Repo) IDs() ([]string, error) {
	profiles, err := r.load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Repo) load() (map[string]Profile, error) {
	profiles := make(map[string]Profile)
	err := r.store.Read(CollectionDoc, &profiles)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}
	return profiles, nil
}

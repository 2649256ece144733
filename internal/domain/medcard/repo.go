// Package medcard stores medication cards, one document per patient holding
// all of that patient's cards keyed by medicine name, at
// patients/<id>/medication_cards.json. Attached images live next to the
// document under images/medications/<medicine>/ and are validated before any
// reference to them is persisted.
package medcard

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medlog/medlog/internal/platform/docstore"
	"github.com/medlog/medlog/internal/platform/identifier"
	"github.com/medlog/medlog/internal/platform/imaging"
)

var (
	// ErrNotFound is returned when no card exists for a medicine name.
	ErrNotFound = errors.New("medication card not found")
	// ErrExists is returned by Create when a card for the medicine already exists.
	ErrExists = errors.New("medication card already exists")
	// ErrEmptyMedicine is returned for a blank medicine name.
	ErrEmptyMedicine = errors.New("medicine name is required")
	// ErrImageNotFound is returned by RemoveImage for an unknown reference.
	ErrImageNotFound = errors.New("image reference not found")
)

// Repo is the medication card repository.
type Repo struct {
	store     *docstore.Store
	validator imaging.Validator
	log       zerolog.Logger
	now       func() time.Time
}

// NewRepo returns a Repo backed by the given document store, validating
// images with the supplied validator.
func NewRepo(store *docstore.Store, v imaging.Validator, log zerolog.Logger) *Repo {
	return &Repo{
		store:     store,
		validator: v,
		log:       log.With().Str("component", "medcard-repo").Logger(),
		now:       time.Now,
	}
}

func cardsDoc(profileID string) string {
	return path.Join("patients", profileID, "medication_cards.json")
}

func imagesDir(profileID, medicine string) string {
	return path.Join("patients", profileID, "images", "medications", identifier.Normalize(medicine))
}

// List returns every card for a patient keyed by medicine name. A patient
// with no cards document yields an empty map.
func (r *Repo) List(profileID string) (map[string]Card, error) {
	return r.load(profileID)
}

// ListNames returns the patient's medicine names in sorted order.
func (r *Repo) ListNames(profileID string) ([]string, error) {
	cards, err := r.load(profileID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cards))
	for name := range cards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Get returns one card by medicine name.
func (r *Repo) Get(profileID, medicine string) (*Card, error) {
	cards, err := r.load(profileID)
	if err != nil {
		return nil, err
	}
	c, ok := cards[medicine]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Create adds a new card for the medicine. The medicine name is the key;
// creating over an existing card fails with ErrExists.
func (r *Repo) Create(profileID string, f Fields) (*Card, error) {
	if strings.TrimSpace(f.MedicineName) == "" {
		return nil, ErrEmptyMedicine
	}

	cards, err := r.load(profileID)
	if err != nil {
		return nil, err
	}
	if _, exists := cards[f.MedicineName]; exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, f.MedicineName)
	}

	now := r.now()
	card := Card{
		MedicineName:     f.MedicineName,
		Strength:         f.Strength,
		Dosage:           f.Dosage,
		ReasonPrescribed: f.ReasonPrescribed,
		ReasonPRN:        f.ReasonPRN,
		Images:           []ImageRef{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	cards[f.MedicineName] = card

	if err := r.store.Write(cardsDoc(profileID), cards); err != nil {
		return nil, err
	}
	r.log.Info().Str("profile_id", profileID).Str("medicine", f.MedicineName).Msg("card created")
	return &card, nil
}

// Update replaces the editable fields of an existing card, preserving its
// image references and creation timestamp.
func (r *Repo) Update(profileID, medicine string, f Fields) error {
	cards, err := r.load(profileID)
	if err != nil {
		return err
	}
	existing, ok := cards[medicine]
	if !ok {
		return ErrNotFound
	}

	existing.Strength = f.Strength
	existing.Dosage = f.Dosage
	existing.ReasonPrescribed = f.ReasonPrescribed
	existing.ReasonPRN = f.ReasonPRN
	existing.UpdatedAt = r.now()
	cards[medicine] = existing

	return r.store.Write(cardsDoc(profileID), cards)
}

// Delete removes a card and, when removeImages is set, its image directory.
// Logs that snapshotted the card's medication info are unaffected.
func (r *Repo) Delete(profileID, medicine string, removeImages bool) error {
	cards, err := r.load(profileID)
	if err != nil {
		return err
	}
	if _, ok := cards[medicine]; !ok {
		return ErrNotFound
	}
	delete(cards, medicine)

	if err := r.store.Write(cardsDoc(profileID), cards); err != nil {
		return err
	}

	if removeImages {
		dir := r.store.Abs(imagesDir(profileID, medicine))
		if err := os.RemoveAll(dir); err != nil {
			r.log.Warn().Err(err).Str("dir", dir).Msg("failed to remove image directory")
		}
	}
	r.log.Info().Str("profile_id", profileID).Str("medicine", medicine).Msg("card deleted")
	return nil
}

// AddImage validates the image at srcPath, copies it into the card's image
// directory under a collision-free stored name, and appends a reference to
// the card document. Validation failure writes nothing: neither a file nor a
// reference.
func (r *Repo) AddImage(profileID, medicine, srcPath string) (*ImageRef, error) {
	cards, err := r.load(profileID)
	if err != nil {
		return nil, err
	}
	card, ok := cards[medicine]
	if !ok {
		return nil, ErrNotFound
	}

	info, err := r.validator.ValidateFile(srcPath)
	if err != nil {
		return nil, err
	}

	ref := ImageRef{
		ID:           uuid.New().String(),
		OriginalName: filepath.Base(srcPath),
		Width:        info.Width,
		Height:       info.Height,
		Bytes:        info.Bytes,
		Format:       info.Format,
	}
	ref.StoredName = ref.ID + strings.ToLower(filepath.Ext(srcPath))

	destRel := path.Join(imagesDir(profileID, medicine), ref.StoredName)
	destAbs := r.store.Abs(destRel)
	if err := docstore.CopyFile(srcPath, destAbs); err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}

	card.Images = append(card.Images, ref)
	card.UpdatedAt = r.now()
	cards[medicine] = card

	if err := r.store.Write(cardsDoc(profileID), cards); err != nil {
		// Keep the document consistent: drop the orphaned copy.
		os.Remove(destAbs)
		return nil, err
	}

	r.log.Info().
		Str("profile_id", profileID).
		Str("medicine", medicine).
		Str("image_id", ref.ID).
		Str("format", ref.Format).
		Msg("image attached")
	return &ref, nil
}

// RemoveImage deletes an image reference and its stored file.
func (r *Repo) RemoveImage(profileID, medicine, imageID string) error {
	cards, err := r.load(profileID)
	if err != nil {
		return err
	}
	card, ok := cards[medicine]
	if !ok {
		return ErrNotFound
	}

	idx := -1
	for i, ref := range card.Images {
		if ref.ID == imageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrImageNotFound
	}

	stored := card.Images[idx].StoredName
	card.Images = append(card.Images[:idx], card.Images[idx+1:]...)
	card.UpdatedAt = r.now()
	cards[medicine] = card

	if err := r.store.Write(cardsDoc(profileID), cards); err != nil {
		return err
	}

	if err := os.Remove(r.store.Abs(path.Join(imagesDir(profileID, medicine), stored))); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Warn().Err(err).Str("stored_name", stored).Msg("failed to remove image file")
	}
	return nil
}

// ImagePath returns the absolute filesystem path of a stored image.
func (r *Repo) ImagePath(profileID, medicine, storedName string) string {
	return r.store.Abs(path.Join(imagesDir(profileID, medicine), storedName))
}

func (r *Repo) load(profileID string) (map[string]Card, error) {
	cards := make(map[string]Card)
	err := r.store.Read(cardsDoc(profileID), &cards)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}
	return cards, nil
}

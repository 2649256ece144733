// Package migrate relocates data from the legacy storage layout into the
// current one. It runs once per installation, before any repository is used.
// Documents are copied, never moved, so the legacy tree doubles as a backup;
// existing data under the current root always wins and is never overwritten.
package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medlog/medlog/internal/platform/docstore"
)

// MarkerFile is written under the current root once migration has completed,
// making later runs a no-op.
const MarkerFile = ".migrated"

// Report summarizes one migration run. Individual copy failures are recorded
// here rather than aborting the batch.
type Report struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Copied     []string  `json:"copied,omitempty"`
	Skipped    string    `json:"skipped,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
}

// Runner performs the legacy-to-current layout migration.
type Runner struct {
	Legacy  string
	Current string

	log zerolog.Logger
}

// NewRunner returns a Runner for the two roots.
func NewRunner(legacy, current string, log zerolog.Logger) *Runner {
	return &Runner{
		Legacy:  legacy,
		Current: current,
		log:     log.With().Str("component", "migrate").Logger(),
	}
}

// Needed reports whether a migration would copy anything: legacy data exists
// and the current root has no profiles collection yet.
func (r *Runner) Needed() bool {
	if r.Legacy == "" {
		return false
	}
	if _, err := os.Stat(r.Legacy); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(r.Current, "profiles.json"))
	return err != nil
}

// Migrated reports whether the completion marker exists.
func (r *Runner) Migrated() bool {
	_, err := os.Stat(filepath.Join(r.Current, MarkerFile))
	return err == nil
}

// Run executes the migration if needed and writes the completion marker.
// Running it again is a no-op. Per-document failures land in the report's
// Errors; only a failure to access the roots themselves is returned as error.
func (r *Runner) Run() (*Report, error) {
	report := &Report{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	if r.Migrated() {
		report.Skipped = "already migrated"
		return report, nil
	}
	if !r.Needed() {
		report.Skipped = "no migration needed"
		return report, r.writeMarker()
	}

	r.log.Info().Str("legacy", r.Legacy).Str("current", r.Current).Msg("migrating data")

	if err := os.MkdirAll(r.Current, 0o755); err != nil {
		return report, fmt.Errorf("creating current root: %w", err)
	}

	// profiles.json
	oldProfiles := filepath.Join(r.Legacy, "profiles.json")
	if _, err := os.Stat(oldProfiles); err == nil {
		r.copyInto(report, oldProfiles, filepath.Join(r.Current, "profiles.json"))
	}

	// patients tree (current layout under the legacy root)
	oldPatients := filepath.Join(r.Legacy, "patients")
	if _, err := os.Stat(oldPatients); err == nil {
		r.mergeTree(report, oldPatients, filepath.Join(r.Current, "patients"))
	}

	// flat logs tree from the oldest layout:
	//   legacy/logs/<profile>_<month>_<year>.json
	// relocates to
	//   current/patients/<profile>/logs/<file>
	oldLogs := filepath.Join(r.Legacy, "logs")
	if _, err := os.Stat(oldLogs); err == nil {
		r.relocateFlatLogs(report, oldLogs)
	}

	if len(report.Errors) == 0 {
		if err := r.writeMarker(); err != nil {
			return report, err
		}
	}

	r.log.Info().
		Int("copied", len(report.Copied)).
		Int("errors", len(report.Errors)).
		Msg("migration finished")
	return report, nil
}

func (r *Runner) writeMarker() error {
	if err := os.MkdirAll(r.Current, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.Current, MarkerFile), nil, 0o644)
}

// copyInto copies one file unless the destination already exists. Current
// data wins; failures are recorded, not fatal.
func (r *Runner) copyInto(report *Report, src, dst string) {
	if _, err := os.Stat(dst); err == nil {
		return
	}
	if err := docstore.CopyFile(src, dst); err != nil {
		r.log.Warn().Err(err).Str("src", src).Msg("copy failed")
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", src, err))
		return
	}
	report.Copied = append(report.Copied, dst)
}

// mergeTree recursively copies src into dst, never replacing existing files.
func (r *Runner) mergeTree(report *Report, src, dst string) {
	entries, err := os.ReadDir(src)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", src, err))
		return
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", dst, err))
		return
	}
	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		if e.IsDir() {
			r.mergeTree(report, s, d)
			continue
		}
		r.copyInto(report, s, d)
	}
}

// relocateFlatLogs moves the oldest layout's flat log files into the
// per-patient namespace. The profile identifier is the filename's first
// underscore-separated segment.
func (r *Runner) relocateFlatLogs(report *Report, oldLogs string) {
	entries, err := os.ReadDir(oldLogs)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", oldLogs, err))
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		parts := strings.Split(strings.TrimSuffix(name, ".json"), "_")
		if len(parts) < 3 {
			continue
		}
		profileID := parts[0]
		dst := filepath.Join(r.Current, "patients", profileID, "logs", name)
		r.copyInto(report, filepath.Join(oldLogs, name), dst)
	}
}

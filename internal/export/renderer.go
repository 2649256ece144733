// Package export renders profiles and administration logs into portable
// report documents: an editable word-processor document filled from a
// placeholder template, a derived print-ready PDF, and a tabular
// spreadsheet. Rendering is a pure function of the in-memory records; the
// repositories are never consulted.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	docx "github.com/lukasjarosch/go-docx"
	"github.com/rs/zerolog"

	"github.com/medlog/medlog/internal/domain/logbook"
	"github.com/medlog/medlog/internal/domain/profile"
)

// TemplateError reports a template missing required placeholders. The
// render aborts before any output bytes are produced.
type TemplateError struct {
	Path    string
	Missing []string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s is missing %d placeholder(s): %s",
		e.Path, len(e.Missing), strings.Join(e.Missing, ", "))
}

// Renderer fills the editable-document template and produces the tabular
// export. The template path is fixed at construction.
type Renderer struct {
	templatePath string
	log          zerolog.Logger
}

// NewRenderer returns a Renderer for the given template.
func NewRenderer(templatePath string, log zerolog.Logger) *Renderer {
	return &Renderer{
		templatePath: templatePath,
		log:          log.With().Str("component", "export").Logger(),
	}
}

// TemplatePath returns the configured template location.
func (r *Renderer) TemplatePath() string { return r.templatePath }

// ValidateTemplate opens the template and checks that every required
// placeholder is present, returning a *TemplateError naming what is missing.
func (r *Renderer) ValidateTemplate() error {
	doc, err := docx.Open(r.templatePath)
	if err != nil {
		return fmt.Errorf("opening template %s: %w", r.templatePath, err)
	}
	return r.checkPlaceholders(doc)
}

func (r *Renderer) checkPlaceholders(doc *docx.Document) error {
	found := make(map[string]bool)
	placeholders, err := doc.GetPlaceHoldersList()
	if err != nil {
		return fmt.Errorf("listing placeholders in %s: %w", r.templatePath, err)
	}
	for _, ph := range placeholders {
		found[strings.Trim(ph, "{}")] = true
	}

	var missing []string
	for _, name := range RequiredPlaceholders() {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &TemplateError{Path: r.templatePath, Missing: missing}
	}
	return nil
}

// RenderEditable fills the template with the profile and log and writes the
// resulting document to outPath. The template is validated first; a missing
// placeholder fails before anything is written.
func (r *Renderer) RenderEditable(p *profile.Profile, l *logbook.Log, outPath string) error {
	doc, err := docx.Open(r.templatePath)
	if err != nil {
		return fmt.Errorf("opening template %s: %w", r.templatePath, err)
	}

	if err := r.checkPlaceholders(doc); err != nil {
		return err
	}

	if err := doc.ReplaceAll(placeholderMap(p, l)); err != nil {
		return fmt.Errorf("filling template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := doc.WriteToFile(outPath); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	r.log.Info().
		Str("profile_id", p.ID).
		Str("medicine", l.MedicineName).
		Str("path", outPath).
		Msg("editable document rendered")
	return nil
}

package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/medlog/medlog/internal/domain/logbook"
	"github.com/medlog/medlog/internal/domain/profile"
	"github.com/medlog/medlog/internal/platform/identifier"
)

// Options selects the outputs of one export run. The editable document is
// always produced; the flat PDF and tabular spreadsheet are opt-in. Images
// are paths to the medication card's stored images; the word-processor
// template carries text placeholders only, so they are emitted on the
// tabular output's image sheet.
type Options struct {
	OutputDir string
	PDF       bool
	Tabular   bool
	Images    []string
}

// Result lists the files one export run produced. PDFErr carries a
// conversion failure when the PDF was requested but could not be derived;
// the other outputs are unaffected by it.
type Result struct {
	EditablePath string
	PDFPath      string
	TabularPath  string
	PDFErr       error
}

// Exporter orchestrates the renderer and the optional converter into a
// single export operation.
type Exporter struct {
	renderer  *Renderer
	converter Converter
	log       zerolog.Logger
}

// NewExporter returns an Exporter. converter may be nil; PDF requests then
// degrade to ErrConversionUnavailable in the result.
func NewExporter(renderer *Renderer, converter Converter, log zerolog.Logger) *Exporter {
	return &Exporter{
		renderer:  renderer,
		converter: converter,
		log:       log.With().Str("component", "export").Logger(),
	}
}

// BaseName derives the output file stem for a log, shared by every format.
func BaseName(l *logbook.Log) string {
	return identifier.Normalize(l.MedicineName) + "_" + identifier.NormalizeMonth(l.MonthYear)
}

// ExportLog renders the requested documents for one profile and log into
// opts.OutputDir. A template failure aborts the whole run before any file
// is written; a PDF conversion failure is recorded in the result and never
// blocks the editable or tabular outputs.
func (x *Exporter) ExportLog(ctx context.Context, p *profile.Profile, l *logbook.Log, opts Options) (*Result, error) {
	if opts.OutputDir == "" {
		return nil, errors.New("export: output directory is required")
	}

	base := BaseName(l)
	res := &Result{
		EditablePath: filepath.Join(opts.OutputDir, base+".docx"),
	}

	if err := x.renderer.RenderEditable(p, l, res.EditablePath); err != nil {
		return nil, fmt.Errorf("rendering editable document: %w", err)
	}

	if opts.Tabular {
		res.TabularPath = filepath.Join(opts.OutputDir, base+".xlsx")
		if err := x.renderer.RenderTabular(p, l, opts.Images, res.TabularPath); err != nil {
			return nil, fmt.Errorf("rendering tabular document: %w", err)
		}
	}

	if opts.PDF {
		pdfPath := filepath.Join(opts.OutputDir, base+".pdf")
		if err := RenderFlat(ctx, x.converter, res.EditablePath, pdfPath); err != nil {
			res.PDFErr = err
			x.log.Warn().
				Err(err).
				Str("profile_id", p.ID).
				Str("medicine", l.MedicineName).
				Msg("flat document skipped")
		} else {
			res.PDFPath = pdfPath
		}
	}

	return res, nil
}

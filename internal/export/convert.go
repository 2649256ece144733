package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrConversionUnavailable is returned when the external document converter
// is not installed. The editable and tabular outputs are unaffected; only
// the derived PDF degrades.
var ErrConversionUnavailable = errors.New("document converter is not available")

// Converter derives a print-ready PDF from an editable document. It is an
// injected capability: implementations may be missing at runtime, and
// callers must treat that as a degraded mode, not a failure of the export.
type Converter interface {
	// Available reports whether the converter can run on this machine.
	Available() bool
	// Convert writes a PDF rendition of the document at docxPath to pdfPath.
	Convert(ctx context.Context, docxPath, pdfPath string) error
}

// ---------------------------------------------------------------------------
// LibreOffice adapter
// ---------------------------------------------------------------------------

// LibreOffice converts documents by shelling out to soffice in headless
// mode. The binary may be an absolute path or a name resolved via PATH.
type LibreOffice struct {
	Binary string
}

// NewLibreOffice returns a LibreOffice converter. An empty binary defaults
// to "soffice".
func NewLibreOffice(binary string) *LibreOffice {
	if binary == "" {
		binary = "soffice"
	}
	return &LibreOffice{Binary: binary}
}

// Available reports whether the soffice binary resolves.
func (c *LibreOffice) Available() bool {
	_, err := exec.LookPath(c.Binary)
	return err == nil
}

// Convert runs soffice --headless --convert-to pdf. LibreOffice names its
// output after the input; the result is moved to pdfPath afterwards.
func (c *LibreOffice) Convert(ctx context.Context, docxPath, pdfPath string) error {
	if !c.Available() {
		return ErrConversionUnavailable
	}

	outDir := filepath.Dir(pdfPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Binary, "--headless", "--convert-to", "pdf", "--outdir", outDir, docxPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("soffice conversion failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(docxPath), filepath.Ext(docxPath)) + ".pdf"
	produced := filepath.Join(outDir, base)
	if produced != pdfPath {
		if err := os.Rename(produced, pdfPath); err != nil {
			return fmt.Errorf("moving converted PDF: %w", err)
		}
	}
	return nil
}

// RenderFlat derives a PDF from an already-rendered editable document using
// the supplied converter. A nil or unavailable converter yields
// ErrConversionUnavailable.
func RenderFlat(ctx context.Context, conv Converter, docxPath, pdfPath string) error {
	if conv == nil || !conv.Available() {
		return ErrConversionUnavailable
	}
	return conv.Convert(ctx, docxPath, pdfPath)
}

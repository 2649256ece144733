package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/medlog/medlog/internal/domain/logbook"
	"github.com/medlog/medlog/internal/domain/profile"
)

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// writeTemplate builds a minimal word-processor document exposing one
// paragraph per placeholder name.
func writeTemplate(t *testing.T, path string, names []string) {
	t.Helper()

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, name := range names {
		fmt.Fprintf(&body, `<w:p><w:r><w:t>{%s}</w:t></w:r></w:p>`, name)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range []struct{ name, data string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", body.String()},
	} {
		w, err := zw.Create(part.name)
		if err != nil {
			t.Fatalf("creating %s: %v", part.name, err)
		}
		if _, err := w.Write([]byte(part.data)); err != nil {
			t.Fatalf("writing %s: %v", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing template archive: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing template: %v", err)
	}
}

func seedProfile(t *testing.T) *profile.Profile {
	t.Helper()
	return &profile.Profile{
		ID:              "sarah_miller",
		ChildName:       "Sarah Miller",
		FosterHome:      "Oakwood House",
		Allergies:       "Penicillin",
		PrescriberName:  "Dr. Chen",
		PrescriberPhone: "555-0101",
		Pharmacy:        "Main St Pharmacy",
		PharmacyPhone:   "555-0202",
	}
}

func seedLog(t *testing.T) *logbook.Log {
	t.Helper()
	return &logbook.Log{
		ProfileID:    "sarah_miller",
		MonthYear:    "March 2025",
		MedicineName: "Amoxicillin",
		Strength:     "250 mg",
		Dosage:       "1 tablet",
		ReasonPRN:    "as needed for pain",
		Entries: []logbook.Entry{
			{Day: 3, Time: "8:00 AM", Initials: "JD", AmountRemaining: "29"},
			{Day: 3, Time: "8:00 PM", Initials: "JD", AmountRemaining: "28"},
			{Day: 5, Time: "9:15 AM", Initials: "KL", AmountRemaining: "27"},
		},
	}
}

func newTestRenderer(t *testing.T, names []string) (*Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	tpl := filepath.Join(dir, "template.docx")
	writeTemplate(t, tpl, names)
	return NewRenderer(tpl, zerolog.Nop()), dir
}

// ---------------------------------------------------------------------------
// template validation
// ---------------------------------------------------------------------------

func TestValidateTemplate(t *testing.T) {
	r, _ := newTestRenderer(t, RequiredPlaceholders())
	if err := r.ValidateTemplate(); err != nil {
		t.Fatalf("ValidateTemplate: %v", err)
	}
}

func TestValidateTemplateMissingPlaceholders(t *testing.T) {
	all := RequiredPlaceholders()
	var trimmed []string
	for _, name := range all {
		if name == "MedicineName" || name == "Time_31_3" {
			continue
		}
		trimmed = append(trimmed, name)
	}

	r, _ := newTestRenderer(t, trimmed)
	err := r.ValidateTemplate()
	var tplErr *TemplateError
	if !errors.As(err, &tplErr) {
		t.Fatalf("want *TemplateError, got %v", err)
	}
	if len(tplErr.Missing) != 2 {
		t.Fatalf("missing = %v, want exactly the two removed names", tplErr.Missing)
	}
	for _, name := range tplErr.Missing {
		if name != "MedicineName" && name != "Time_31_3" {
			t.Errorf("unexpected missing placeholder %q", name)
		}
	}
}

func TestValidateTemplateMissingFile(t *testing.T) {
	r := NewRenderer(filepath.Join(t.TempDir(), "nope.docx"), zerolog.Nop())
	var tplErr *TemplateError
	if err := r.ValidateTemplate(); err == nil || errors.As(err, &tplErr) {
		t.Fatalf("want plain open error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// editable render
// ---------------------------------------------------------------------------

func TestRenderEditable(t *testing.T) {
	r, dir := newTestRenderer(t, RequiredPlaceholders())
	out := filepath.Join(dir, "out", "log.docx")

	if err := r.RenderEditable(seedProfile(t), seedLog(t), out); err != nil {
		t.Fatalf("RenderEditable: %v", err)
	}

	doc := readDocumentXML(t, out)
	for _, want := range []string{"Sarah Miller", "Amoxicillin", "March 2025", "8:00 PM", "KL"} {
		if !strings.Contains(doc, want) {
			t.Errorf("rendered document missing %q", want)
		}
	}
	if strings.Contains(doc, "{ChildName}") {
		t.Error("placeholder left unreplaced")
	}
}

func TestRenderEditableFailsBeforeOutput(t *testing.T) {
	r, dir := newTestRenderer(t, basicPlaceholders) // grid absent
	out := filepath.Join(dir, "out", "log.docx")

	err := r.RenderEditable(seedProfile(t), seedLog(t), out)
	var tplErr *TemplateError
	if !errors.As(err, &tplErr) {
		t.Fatalf("want *TemplateError, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output written despite template error: %v", statErr)
	}
}

func readDocumentXML(t *testing.T, path string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening rendered document: %v", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening document part: %v", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("reading document part: %v", err)
		}
		return string(data)
	}
	t.Fatal("rendered archive has no word/document.xml")
	return ""
}

// ---------------------------------------------------------------------------
// placeholder mapping
// ---------------------------------------------------------------------------

func TestPlaceholderMapGrid(t *testing.T) {
	m := placeholderMap(seedProfile(t), seedLog(t))

	if got := m["Time_3_1"]; got != "8:00 AM" {
		t.Errorf("Time_3_1 = %v", got)
	}
	if got := m["Time_3_2"]; got != "8:00 PM" {
		t.Errorf("Time_3_2 = %v", got)
	}
	if got := m["Initials_5_1"]; got != "KL" {
		t.Errorf("Initials_5_1 = %v", got)
	}
	// Unused cells are blanked, never left out.
	for _, key := range []string{"Time_3_3", "Time_5_2", "Amount_31_3"} {
		if got, ok := m[key]; !ok || got != "" {
			t.Errorf("%s = %v, %v; want blank and present", key, got, ok)
		}
	}
	if len(m) != len(RequiredPlaceholders()) {
		t.Errorf("map has %d keys, want %d", len(m), len(RequiredPlaceholders()))
	}
}

func TestPlaceholderMapOverflowDayDropped(t *testing.T) {
	l := seedLog(t)
	l.Entries = append(l.Entries,
		logbook.Entry{Day: 3, Time: "11:00 PM"},
		logbook.Entry{Day: 3, Time: "11:30 PM"},
	)
	m := placeholderMap(seedProfile(t), l)
	if got := m["Time_3_3"]; got != "11:00 PM" {
		t.Errorf("Time_3_3 = %v", got)
	}
	if len(m) != len(RequiredPlaceholders()) {
		t.Errorf("overflow entry leaked into the map")
	}
}

// ---------------------------------------------------------------------------
// tabular render
// ---------------------------------------------------------------------------

func TestRenderTabular(t *testing.T) {
	r, dir := newTestRenderer(t, RequiredPlaceholders())
	out := filepath.Join(dir, "out", "log.xlsx")

	if err := r.RenderTabular(seedProfile(t), seedLog(t), nil, out); err != nil {
		t.Fatalf("RenderTabular: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("opening spreadsheet: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}

	cell := func(row, col int) string {
		if row >= len(rows) || col >= len(rows[row]) {
			return ""
		}
		return rows[row][col]
	}
	if cell(0, 1) != "Sarah Miller" {
		t.Errorf("patient cell = %q", cell(0, 1))
	}
	if cell(3, 1) != "Amoxicillin" {
		t.Errorf("medicine cell = %q", cell(3, 1))
	}

	// Header block, blank row, column headings, then one row per entry.
	headingRow := -1
	for i, row := range rows {
		if len(row) > 0 && row[0] == "Day" {
			headingRow = i
			break
		}
	}
	if headingRow < 0 {
		t.Fatal("column heading row not found")
	}
	first := rows[headingRow+1]
	if first[0] != "3" || first[1] != "8:00 AM" || first[2] != "JD" || first[3] != "29" {
		t.Errorf("first entry row = %v", first)
	}
	if got := len(rows) - headingRow - 1; got != 3 {
		t.Errorf("entry rows = %d, want 3", got)
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing png: %v", err)
	}
}

func TestRenderTabularWithImages(t *testing.T) {
	r, dir := newTestRenderer(t, RequiredPlaceholders())
	img1 := filepath.Join(dir, "pill_front.png")
	img2 := filepath.Join(dir, "pill_back.png")
	writePNG(t, img1)
	writePNG(t, img2)

	out := filepath.Join(dir, "out", "log.xlsx")
	if err := r.RenderTabular(seedProfile(t), seedLog(t), []string{img1, img2}, out); err != nil {
		t.Fatalf("RenderTabular: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("opening spreadsheet: %v", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(ImageSheetName); idx < 0 {
		t.Fatal("image sheet missing")
	}
	name, err := f.GetCellValue(ImageSheetName, "A1")
	if err != nil || name != "pill_front.png" {
		t.Errorf("A1 = %q, %v", name, err)
	}
	pics, err := f.GetPictures(ImageSheetName, "B1")
	if err != nil {
		t.Fatalf("GetPictures: %v", err)
	}
	if len(pics) != 1 {
		t.Errorf("pictures at B1 = %d, want 1", len(pics))
	}
	pics, err = f.GetPictures(ImageSheetName, "B21")
	if err != nil {
		t.Fatalf("GetPictures second block: %v", err)
	}
	if len(pics) != 1 {
		t.Errorf("pictures at B21 = %d, want 1", len(pics))
	}
}

func TestRenderTabularWithoutImagesHasNoImageSheet(t *testing.T) {
	r, dir := newTestRenderer(t, RequiredPlaceholders())
	out := filepath.Join(dir, "out", "log.xlsx")
	if err := r.RenderTabular(seedProfile(t), seedLog(t), nil, out); err != nil {
		t.Fatalf("RenderTabular: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("opening spreadsheet: %v", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex(ImageSheetName); idx >= 0 {
		t.Error("image sheet present without images")
	}
}

// ---------------------------------------------------------------------------
// conversion and orchestration
// ---------------------------------------------------------------------------

type stubConverter struct {
	available bool
	err       error
	calls     int
}

func (c *stubConverter) Available() bool { return c.available }

func (c *stubConverter) Convert(ctx context.Context, docxPath, pdfPath string) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(pdfPath, []byte("%PDF-1.4 stub"), 0o644)
}

func TestRenderFlatUnavailable(t *testing.T) {
	if err := RenderFlat(context.Background(), nil, "in.docx", "out.pdf"); !errors.Is(err, ErrConversionUnavailable) {
		t.Fatalf("nil converter: %v", err)
	}
	conv := &stubConverter{available: false}
	if err := RenderFlat(context.Background(), conv, "in.docx", "out.pdf"); !errors.Is(err, ErrConversionUnavailable) {
		t.Fatalf("unavailable converter: %v", err)
	}
	if conv.calls != 0 {
		t.Errorf("unavailable converter was invoked")
	}
}

func TestExportLog(t *testing.T) {
	r, dir := newTestRenderer(t, RequiredPlaceholders())
	conv := &stubConverter{available: true}
	x := NewExporter(r, conv, zerolog.Nop())

	img := filepath.Join(dir, "inhaler.png")
	writePNG(t, img)

	res, err := x.ExportLog(context.Background(), seedProfile(t), seedLog(t), Options{
		OutputDir: filepath.Join(dir, "exports"),
		PDF:       true,
		Tabular:   true,
		Images:    []string{img},
	})
	if err != nil {
		t.Fatalf("ExportLog: %v", err)
	}
	if res.PDFErr != nil {
		t.Fatalf("PDFErr = %v", res.PDFErr)
	}

	wantBase := "amoxicillin_march_2025"
	for _, path := range []string{res.EditablePath, res.PDFPath, res.TabularPath} {
		if !strings.Contains(filepath.Base(path), wantBase) {
			t.Errorf("output %s does not use base %s", path, wantBase)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("output missing: %v", err)
		}
	}

	f, err := excelize.OpenFile(res.TabularPath)
	if err != nil {
		t.Fatalf("opening spreadsheet: %v", err)
	}
	defer f.Close()
	pics, err := f.GetPictures(ImageSheetName, "B1")
	if err != nil {
		t.Fatalf("GetPictures: %v", err)
	}
	if len(pics) != 1 {
		t.Errorf("card image missing from tabular output")
	}
}

func TestExportLogPDFDegrades(t *testing.T) {
	r, dir := newTestRenderer(t, RequiredPlaceholders())
	x := NewExporter(r, nil, zerolog.Nop())

	res, err := x.ExportLog(context.Background(), seedProfile(t), seedLog(t), Options{
		OutputDir: filepath.Join(dir, "exports"),
		PDF:       true,
	})
	if err != nil {
		t.Fatalf("ExportLog: %v", err)
	}
	if !errors.Is(res.PDFErr, ErrConversionUnavailable) {
		t.Fatalf("PDFErr = %v", res.PDFErr)
	}
	if res.PDFPath != "" {
		t.Errorf("PDFPath set despite degraded conversion")
	}
	if _, err := os.Stat(res.EditablePath); err != nil {
		t.Errorf("editable output missing: %v", err)
	}
}

func TestExportLogTemplateFailureWritesNothing(t *testing.T) {
	r, dir := newTestRenderer(t, basicPlaceholders)
	x := NewExporter(r, nil, zerolog.Nop())

	outDir := filepath.Join(dir, "exports")
	_, err := x.ExportLog(context.Background(), seedProfile(t), seedLog(t), Options{
		OutputDir: outDir,
		Tabular:   true,
	})
	var tplErr *TemplateError
	if !errors.As(err, &tplErr) {
		t.Fatalf("want *TemplateError, got %v", err)
	}
	if entries, _ := os.ReadDir(outDir); len(entries) != 0 {
		t.Errorf("outputs written despite template error: %v", entries)
	}
}

func TestBaseName(t *testing.T) {
	l := &logbook.Log{MedicineName: "Tylenol PM", MonthYear: "July 2025"}
	if got := BaseName(l); got != "tylenol_pm_july_2025" {
		t.Errorf("BaseName = %q", got)
	}
}

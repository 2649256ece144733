package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/medlog/medlog/internal/domain/logbook"
	"github.com/medlog/medlog/internal/domain/profile"
)

// SheetName is the worksheet holding the tabular export. ImageSheetName
// holds the medication card's attached images when any are exported.
const (
	SheetName      = "Medication Log"
	ImageSheetName = "Images"
)

// RenderTabular writes the profile and log as a spreadsheet: a header block
// of patient and medication fields followed by one row per administration
// entry, in the log's day-sorted order. images are paths to the medication
// card's stored images; when non-empty they land on a second worksheet.
func (r *Renderer) RenderTabular(p *profile.Profile, l *logbook.Log, images []string, outPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	header := [][2]string{
		{"Patient", p.ChildName},
		{"Foster Home", p.FosterHome},
		{"Month", l.MonthYear},
		{"Medicine", l.MedicineName},
		{"Strength", l.Strength},
		{"Dosage", l.Dosage},
		{"Allergies / Contraindications", p.Allergies},
		{"Prescriber", joinNamePhone(p.PrescriberName, p.PrescriberPhone)},
		{"Pharmacy", joinNamePhone(p.Pharmacy, p.PharmacyPhone)},
	}
	row := 1
	for _, kv := range header {
		setCell(f, 1, row, kv[0])
		setCell(f, 2, row, kv[1])
		row++
	}

	row++ // blank separator row
	columns := []string{"Day", "Time", "Initials", "Amount Remaining"}
	for col, name := range columns {
		setCell(f, col+1, row, name)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(columns), row)
		f.SetCellStyle(SheetName, start, end, style)
	}

	for _, e := range l.Entries {
		row++
		setCell(f, 1, row, e.Day)
		setCell(f, 2, row, e.Time)
		setCell(f, 3, row, e.Initials)
		setCell(f, 4, row, e.AmountRemaining)
	}

	if err := f.SetColWidth(SheetName, "A", "A", 26); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "D", 18); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if len(images) > 0 {
		if err := r.addImageSheet(f, images); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := f.SaveAs(outPath); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	r.log.Info().
		Str("profile_id", p.ID).
		Str("medicine", l.MedicineName).
		Str("path", outPath).
		Msg("tabular document rendered")
	return nil
}

// addImageSheet lays out the card's stored images, one per block: the file
// name in column A and the picture anchored in column B. Formats the
// spreadsheet library cannot embed keep their file-name row.
func (r *Renderer) addImageSheet(f *excelize.File, images []string) error {
	if _, err := f.NewSheet(ImageSheetName); err != nil {
		return fmt.Errorf("creating image sheet: %w", err)
	}
	if err := f.SetColWidth(ImageSheetName, "A", "A", 40); err != nil {
		return fmt.Errorf("sizing image sheet: %w", err)
	}

	const rowsPerImage = 20
	for i, img := range images {
		row := i*rowsPerImage + 1
		nameCell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("placing image %s: %w", img, err)
		}
		f.SetCellValue(ImageSheetName, nameCell, filepath.Base(img))

		anchor, err := excelize.CoordinatesToCellName(2, row)
		if err != nil {
			return fmt.Errorf("placing image %s: %w", img, err)
		}
		if err := f.AddPicture(ImageSheetName, anchor, img, nil); err != nil {
			r.log.Warn().Err(err).Str("image", img).Msg("image not embeddable, name only")
		}
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return
	}
	f.SetCellValue(SheetName, cell, v)
}

func joinNamePhone(name, phone string) string {
	switch {
	case name == "":
		return phone
	case phone == "":
		return name
	default:
		return name + " / " + phone
	}
}

package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x), A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func checkOf(t *testing.T, err error) string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	return ve.Check
}

func TestValidateFileOK(t *testing.T) {
	path := writePNG(t, t.TempDir(), "pill.png", 120, 80)

	info, err := Default().ValidateFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Format != "png" {
		t.Errorf("expected format png, got %s", info.Format)
	}
	if info.Width != 120 || info.Height != 80 {
		t.Errorf("expected 120x80, got %dx%d", info.Width, info.Height)
	}
	if info.Bytes <= 0 {
		t.Error("expected positive byte size")
	}
}

func TestValidateFileTooLarge(t *testing.T) {
	path := writePNG(t, t.TempDir(), "big.png", 64, 64)

	v := Validator{MaxBytes: 16, MaxDim: DefaultMaxDim}
	_, err := v.ValidateFile(path)
	if got := checkOf(t, err); got != CheckSize {
		t.Errorf("expected size check failure, got %s", got)
	}
	if !strings.Contains(err.Error(), "size") {
		t.Errorf("error should cite size: %v", err)
	}
}

func TestValidateFileDimensionsTooLarge(t *testing.T) {
	path := writePNG(t, t.TempDir(), "wide.png", 50, 10)

	v := Validator{MaxBytes: DefaultMaxBytes, MaxDim: 32}
	_, err := v.ValidateFile(path)
	if got := checkOf(t, err); got != CheckDimensions {
		t.Errorf("expected dimensions check failure, got %s", got)
	}
}

func TestValidateFileUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("not an image at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Default().ValidateFile(path)
	if got := checkOf(t, err); got != CheckFormat {
		t.Errorf("expected format check failure, got %s", got)
	}
}

func TestValidateFileTruncated(t *testing.T) {
	dir := t.TempDir()
	full := writePNG(t, dir, "ok.png", 64, 64)
	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatal(err)
	}

	// Keep the header (so DecodeConfig succeeds) but drop the pixel data.
	cut := filepath.Join(dir, "cut.png")
	if err := os.WriteFile(cut, data[:40], 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Default().ValidateFile(cut)
	if got := checkOf(t, err); got != CheckIntegrity {
		t.Errorf("expected integrity check failure, got %s", got)
	}
}

func TestValidateFileMissing(t *testing.T) {
	_, err := Default().ValidateFile(filepath.Join(t.TempDir(), "absent.jpg"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Errorf("missing file is an I/O failure, not a validation failure: %v", err)
	}
}

// buildHEIC assembles a minimal ISO-BMFF container with a heic brand and an
// ispe property recording the given dimensions.
func buildHEIC(w, h uint32) []byte {
	var buf bytes.Buffer

	ftyp := make([]byte, 16)
	binary.BigEndian.PutUint32(ftyp[0:4], 16)
	copy(ftyp[4:8], "ftyp")
	copy(ftyp[8:12], "heic")
	copy(ftyp[12:16], "mif1")
	buf.Write(ftyp)

	ispe := make([]byte, 20)
	binary.BigEndian.PutUint32(ispe[0:4], 20)
	copy(ispe[4:8], "ispe")
	binary.BigEndian.PutUint32(ispe[12:16], w)
	binary.BigEndian.PutUint32(ispe[16:20], h)
	buf.Write(ispe)

	return buf.Bytes()
}

func TestValidateFileHEIC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.heic")
	if err := os.WriteFile(path, buildHEIC(1024, 768), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := Default().ValidateFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Format != "heic" {
		t.Errorf("expected format heic, got %s", info.Format)
	}
	if info.Width != 1024 || info.Height != 768 {
		t.Errorf("expected 1024x768, got %dx%d", info.Width, info.Height)
	}
}

func TestValidateFileHEICDimensionCeiling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.heic")
	if err := os.WriteFile(path, buildHEIC(4001, 4001), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Default().ValidateFile(path)
	if got := checkOf(t, err); got != CheckDimensions {
		t.Errorf("expected dimensions check failure, got %s", got)
	}
}

func TestProbeHEICRejectsOtherBrands(t *testing.T) {
	data := buildHEIC(10, 10)
	copy(data[8:12], "isom")
	copy(data[12:16], "avc1")

	if _, _, ok := probeHEIC(data); ok {
		t.Error("non-HEIF brand should not probe as heic")
	}
}

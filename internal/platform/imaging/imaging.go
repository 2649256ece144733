// Package imaging validates image files before a medication card is allowed
// to reference them. A file must pass, in order: a byte-size ceiling, a
// format whitelist, a pixel-dimension ceiling, and a full-decode integrity
// check. Nothing is persisted for a file that fails any check.
package imaging

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ---------------------------------------------------------------------------
// Limits and whitelist
// ---------------------------------------------------------------------------

// DefaultMaxBytes is the byte-size ceiling for card images (10 MB).
const DefaultMaxBytes = 10 * 1024 * 1024

// DefaultMaxDim is the per-axis pixel ceiling for card images.
const DefaultMaxDim = 4000

// SupportedFormats is the accepted image format whitelist. It covers common
// photographic and graphic formats plus the phone-camera formats of the two
// major mobile platforms (HEIC on iOS, JPEG on Android).
var SupportedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"tiff": true,
	"webp": true,
	"heic": true,
}

// Check names used in ValidationError.
const (
	CheckFormat     = "format"
	CheckSize       = "size"
	CheckDimensions = "dimensions"
	CheckIntegrity  = "integrity"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ValidationError reports a rejected image and names which check failed.
type ValidationError struct {
	Check  string // format, size, dimensions, or integrity
	Path   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("image %s rejected (%s): %s", filepath.Base(e.Path), e.Check, e.Detail)
}

// ---------------------------------------------------------------------------
// Validator
// ---------------------------------------------------------------------------

// Info describes a validated image.
type Info struct {
	Width  int
	Height int
	Bytes  int64
	Format string
}

// Validator holds the ceilings applied by ValidateFile. The zero value is
// not useful; construct with Default and override fields in tests.
type Validator struct {
	MaxBytes int64
	MaxDim   int
}

// Default returns a Validator with the production ceilings.
func Default() Validator {
	return Validator{MaxBytes: DefaultMaxBytes, MaxDim: DefaultMaxDim}
}

// ValidateFile checks the image at path against the whitelist and ceilings
// and returns its decoded properties. Any failure is a *ValidationError;
// other errors indicate the file could not be read at all.
func (v Validator) ValidateFile(path string) (*Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("image file: %w", err)
	}

	if fi.Size() > v.MaxBytes {
		return nil, &ValidationError{
			Check: CheckSize,
			Path:  path,
			Detail: fmt.Sprintf("%.2f MB exceeds the %d MB limit",
				float64(fi.Size())/(1024*1024), v.MaxBytes/(1024*1024)),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image file: %w", err)
	}

	info := Info{Bytes: fi.Size()}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	switch {
	case err == nil:
		info.Width, info.Height, info.Format = cfg.Width, cfg.Height, format
	default:
		// Not one of the registered raster formats. HEIC has no cgo-free
		// decoder, so it is probed structurally instead.
		w, h, ok := probeHEIC(data)
		if !ok {
			return nil, &ValidationError{
				Check:  CheckFormat,
				Path:   path,
				Detail: fmt.Sprintf("unrecognized format. Supported: %s", supportedList()),
			}
		}
		info.Width, info.Height, info.Format = w, h, "heic"
	}

	if !SupportedFormats[info.Format] {
		return nil, &ValidationError{
			Check:  CheckFormat,
			Path:   path,
			Detail: fmt.Sprintf("unsupported format %q. Supported: %s", info.Format, supportedList()),
		}
	}

	if info.Width > v.MaxDim || info.Height > v.MaxDim {
		return nil, &ValidationError{
			Check:  CheckDimensions,
			Path:   path,
			Detail: fmt.Sprintf("%dx%d exceeds the %dx%d limit", info.Width, info.Height, v.MaxDim, v.MaxDim),
		}
	}

	// Full decode catches images with valid headers but truncated or
	// mangled pixel data. HEIC gets only the structural probe above.
	if info.Format != "heic" {
		if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
			return nil, &ValidationError{
				Check:  CheckIntegrity,
				Path:   path,
				Detail: fmt.Sprintf("corrupted image data: %v", err),
			}
		}
	}

	return &info, nil
}

func supportedList() string {
	names := make([]string, 0, len(SupportedFormats))
	for name := range SupportedFormats {
		names = append(names, strings.ToUpper(name))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// ---------------------------------------------------------------------------
// HEIC probe
// ---------------------------------------------------------------------------

var heicBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "hevx": true, "mif1": true,
}

// probeHEIC reports whether data is an ISO-BMFF HEIF/HEIC container and, if
// so, the pixel dimensions recorded in its first ispe property box.
func probeHEIC(data []byte) (width, height int, ok bool) {
	if len(data) < 16 || string(data[4:8]) != "ftyp" {
		return 0, 0, false
	}
	ftypSize := binary.BigEndian.Uint32(data[0:4])
	if ftypSize < 16 || int(ftypSize) > len(data) {
		return 0, 0, false
	}

	branded := heicBrands[string(data[8:12])]
	for off := 16; off+4 <= int(ftypSize) && !branded; off += 4 {
		branded = heicBrands[string(data[off:off+4])]
	}
	if !branded {
		return 0, 0, false
	}

	// The ispe (image spatial extents) box lives inside meta/iprp/ipco. A
	// flat scan is sufficient for a probe: locate the box header and read
	// its version/flags word plus the two 32-bit dimensions.
	for i := 4; i+16 <= len(data); i++ {
		if string(data[i:i+4]) != "ispe" {
			continue
		}
		boxSize := binary.BigEndian.Uint32(data[i-4 : i])
		if boxSize < 20 {
			continue
		}
		width = int(binary.BigEndian.Uint32(data[i+8 : i+12]))
		height = int(binary.BigEndian.Uint32(data[i+12 : i+16]))
		if width > 0 && height > 0 {
			return width, height, true
		}
	}
	return 0, 0, false
}

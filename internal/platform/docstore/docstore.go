// Package docstore is the atomic JSON document store backing every
// repository. A document is one JSON file on local disk; writes go through a
// temp-file-and-rename sequence so a reader only ever observes the old
// document or the new one, never a partial write.
package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrNotFound is returned by Read when no document exists at the path.
var ErrNotFound = errors.New("document not found")

// CorruptError reports a document whose content failed to parse as JSON.
// It is surfaced to callers rather than being treated as an empty document.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt document %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

// Store reads and writes JSON documents under a base directory. Paths passed
// to its methods are relative to that root. The zero value is unusable; use
// New.
type Store struct {
	root string
}

// New returns a Store rooted at dir. The directory is created on first write,
// not here.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's base directory.
func (s *Store) Root() string { return s.root }

// Abs resolves a store-relative document path to an absolute filesystem path.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Read loads the document at rel into v. It returns ErrNotFound when the file
// does not exist and *CorruptError when the content is not valid JSON.
func (s *Store) Read(rel string, v any) error {
	path := s.Abs(rel)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return &CorruptError{Path: path, Err: err}
	}
	return nil
}

// Write serializes v and atomically replaces the document at rel. The
// document is encoded as indented UTF-8 JSON with HTML escaping disabled so
// free-text fields survive round-trips unchanged. Parent directories are
// created as needed. On any failure the previous document, if one existed,
// is left intact.
func (s *Store) Write(rel string, v any) error {
	path := s.Abs(rel)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	// Temp file in the same directory so the final rename cannot cross a
	// filesystem boundary.
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a document is present at rel.
func (s *Store) Exists(rel string) bool {
	_, err := os.Stat(s.Abs(rel))
	return err == nil
}

// Remove deletes the document at rel. It returns ErrNotFound when no
// document exists there.
func (s *Store) Remove(rel string) error {
	err := os.Remove(s.Abs(rel))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// CopyFile copies src to dst, creating dst's parent directories. It is the
// shared plain-file counterpart to Write for content the store does not
// encode itself, such as attached images and migrated documents.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

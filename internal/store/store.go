// Package store defines the narrow artifact persistence capability the core
// depends on, and a filesystem-backed implementation of it. Locators are
// opaque strings the core never parses.
package store

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ArtifactStore persists watermarked images, extracted marks, and
// side-info JSON, and reads them back by locator.
type ArtifactStore interface {
	PutBytes(key string, data []byte) (locator string, err error)
	GetBytes(locator string) ([]byte, error)
	Delete(locator string) error
	Exists(locator string) bool
	// List enumerates locators under directory along with each entry's
	// filename stem (basename without extension); used by the pHash
	// catalog walk.
	List(directory string) ([]Entry, error)
}

// Entry is one result of a directory listing.
type Entry struct {
	Locator string
	Stem    string
}

// FileStore implements ArtifactStore rooted at a base directory on the
// local filesystem.
type FileStore struct {
	root string
}

// NewFileStore creates (if needed) and returns a store rooted at root.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating root %q: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// PutBytes writes data under a fresh UUID-prefixed filename derived from
// key's extension, and returns the file's path under the store root as the
// locator (relative if the root is relative).
func (s *FileStore) PutBytes(key string, data []byte) (string, error) {
	ext := filepath.Ext(key)
	name := uuid.New().String() + ext
	locator := filepath.Join(s.root, name)
	if err := os.WriteFile(locator, data, 0o644); err != nil {
		return "", fmt.Errorf("store: writing %q: %w", locator, err)
	}
	return locator, nil
}

// PutBytesAt writes data to the exact locator given (no UUID generation),
// used when the caller already owns the stem (e.g. the embedder writing
// an image and its side-info record under the same name).
func (s *FileStore) PutBytesAt(locator string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(locator), 0o755); err != nil {
		return fmt.Errorf("store: creating parent of %q: %w", locator, err)
	}
	if err := os.WriteFile(locator, data, 0o644); err != nil {
		return fmt.Errorf("store: writing %q: %w", locator, err)
	}
	return nil
}

// PutBytesAtomic writes data to a temp file in the same directory as
// locator then renames it into place, so readers never observe a partial
// file at locator.
func (s *FileStore) PutBytesAtomic(locator string, data []byte) error {
	dir := filepath.Dir(locator)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: creating parent of %q: %w", locator, err)
	}
	tmp := locator + ".tmp-" + uuid.New().String()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: writing temp for %q: %w", locator, err)
	}
	if err := os.Rename(tmp, locator); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: renaming into place %q: %w", locator, err)
	}
	return nil
}

func (s *FileStore) GetBytes(locator string) ([]byte, error) {
	data, err := os.ReadFile(locator)
	if err != nil {
		return nil, fmt.Errorf("store: reading %q: %w", locator, err)
	}
	return data, nil
}

func (s *FileStore) Delete(locator string) error {
	if err := os.Remove(locator); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: deleting %q: %w", locator, err)
	}
	return nil
}

func (s *FileStore) Exists(locator string) bool {
	_, err := os.Stat(locator)
	return err == nil
}

// List walks directory (non-recursively) and returns every regular file
// as an Entry.
func (s *FileStore) List(directory string) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == directory {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != directory {
				return filepath.SkipDir
			}
			return nil
		}
		base := filepath.Base(path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		out = append(out, Entry{Locator: path, Stem: stem})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing %q: %w", directory, err)
	}
	return out, nil
}

// ReadAll is a convenience helper mirroring io.ReadAll for callers holding
// an io.Reader instead of a locator (e.g. a decoded HTTP body).
func ReadAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("store: reading stream: %w", err)
	}
	return buf.Bytes(), nil
}

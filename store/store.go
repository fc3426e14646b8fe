// Package store persists record sequences as JSON files under one directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/use-agent/namecrawl/models"
)

// Store reads and writes JSON artifacts in Dir. Writes go to a temporary
// file in the same directory which is then renamed over the target, so a
// reader never observes a half-written artifact.
type Store struct {
	Dir string
}

// New creates the directory if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, persistenceErr("create output directory", err)
	}
	return &Store{Dir: dir}, nil
}

// Path returns the absolute-or-relative path of a named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// WriteJSON encodes v with two-space indentation and atomically replaces name.
func (s *Store) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return persistenceErr("encode "+name, err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".*.tmp")
	if err != nil {
		return persistenceErr("create temp file for "+name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return persistenceErr("write "+name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return persistenceErr("sync "+name, err)
	}
	if err := tmp.Close(); err != nil {
		return persistenceErr("close "+name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		return persistenceErr("rename "+name, err)
	}
	return nil
}

// ReadJSON decodes the artifact name into v.
func (s *Store) ReadJSON(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return persistenceErr("read "+name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return persistenceErr("decode "+name, err)
	}
	return nil
}

// ReadRecords is ReadJSON specialised to a record sequence.
func (s *Store) ReadRecords(name string) ([]models.Record, error) {
	var records []models.Record
	if err := s.ReadJSON(name, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Exists reports whether the artifact is present.
func (s *Store) Exists(name string) (bool, error) {
	_, err := os.Stat(s.Path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, persistenceErr("stat "+name, err)
	}
}

// Delete removes the artifact. Deleting a missing artifact is not an error.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistenceErr("delete "+name, err)
	}
	return nil
}

func persistenceErr(op string, err error) error {
	return models.NewCrawlError(models.ErrCodePersistence, fmt.Sprintf("store: %s", op), err)
}

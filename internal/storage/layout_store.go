// Package storage persists the layout document and uploaded media assets on
// the local filesystem.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/line-kiosk/backend/internal/models"
)

// LayoutStore persists the single authoritative LayoutDocument as one JSON
// file. Writes are atomic (temp file + rename) so a crash mid-save never
// leaves a torn document.
type LayoutStore struct {
	mu   sync.Mutex
	path string
}

// NewLayoutStore creates a store writing to the given file path.
func NewLayoutStore(path string) (*LayoutStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating layout directory: %w", err)
	}
	return &LayoutStore{path: path}, nil
}

// Load reads the persisted document. The boolean is false when no document
// has ever been saved; callers then serve an empty object.
func (s *LayoutStore) Load() (models.LayoutDocument, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.LayoutDocument{}, false, nil
		}
		return models.LayoutDocument{}, false, fmt.Errorf("reading layout document: %w", err)
	}

	var doc models.LayoutDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.LayoutDocument{}, false, fmt.Errorf("parsing layout document: %w", err)
	}
	return doc, true, nil
}

// LoadRaw returns the persisted document bytes, or "{}" when absent.
func (s *LayoutStore) LoadRaw() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("reading layout document: %w", err)
	}
	return data, nil
}

// Save atomically replaces the persisted document.
func (s *LayoutStore) Save(doc models.LayoutDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding layout document: %w", err)
	}
	return s.SaveRaw(data)
}

// SaveRaw atomically replaces the persisted document with pre-encoded JSON.
// The payload is validated as a JSON object before writing.
func (s *LayoutStore) SaveRaw(data []byte) error {
	var probe models.LayoutDocument
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("invalid layout document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing layout document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing layout document: %w", err)
	}
	return nil
}

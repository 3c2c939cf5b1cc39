package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/line-kiosk/backend/internal/models"
)

// MediaStore saves uploaded media assets (logos, announcement images,
// videos) on the local filesystem and hands out the public URL the rendering
// layer embeds in the layout.
type MediaStore struct {
	mu       sync.RWMutex
	mediaDir string
	baseURL  string // URL prefix assets are served under, e.g. "/media"
	files    map[string]*models.MediaInfo
}

// NewMediaStore creates a media store rooted at mediaDir.
func NewMediaStore(mediaDir, baseURL string) (*MediaStore, error) {
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &MediaStore{
		mediaDir: mediaDir,
		baseURL:  baseURL,
		files:    make(map[string]*models.MediaInfo),
	}, nil
}

// Save stores an asset and returns its metadata including the public URL.
func (s *MediaStore) Save(name string, r io.Reader) (*models.MediaInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.mediaDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating media file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing media file: %w", err)
	}

	info := &models.MediaInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		URL:        s.baseURL + "/" + id,
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Get retrieves asset metadata by id.
func (s *MediaStore) Get(id string) (*models.MediaInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("media not found: %s", id)
	}
	return info, nil
}

// List returns the most recently uploaded assets.
func (s *MediaStore) List(limit int) []*models.MediaInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.MediaInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

// Delete removes an asset.
func (s *MediaStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("media not found: %s", id)
	}

	path := filepath.Join(s.mediaDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting media file: %w", err)
	}
	delete(s.files, id)
	return nil
}

// FilePath returns the on-disk path for an asset.
func (s *MediaStore) FilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("media not found: %s", id)
	}
	return filepath.Join(s.mediaDir, id), nil
}

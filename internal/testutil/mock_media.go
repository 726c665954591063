// mock_media.go - In-memory media store for testing
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/storage"
)

// MockMediaStore implements storage.MediaStore in memory
type MockMediaStore struct {
	mu    sync.RWMutex
	files map[string]*models.MediaInfo
	data  map[string][]byte

	// SaveErr, when set, is returned by every Save
	SaveErr error
}

// NewMockMediaStore creates an empty mock media store
func NewMockMediaStore() *MockMediaStore {
	return &MockMediaStore{
		files: make(map[string]*models.MediaInfo),
		data:  make(map[string][]byte),
	}
}

func (m *MockMediaStore) Save(name string, r io.Reader) (*models.MediaInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mimeType, ok := storage.DetectMediaType(head, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrUnsupportedType, mimeType)
	}
	return m.AddMedia(generateTestID(), name, mimeType, data), nil
}

func (m *MockMediaStore) Get(id string) (*models.MediaInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", id, storage.ErrNotFound)
	}
	cp := *info
	return &cp, nil
}

func (m *MockMediaStore) Open(id string) (io.ReadSeekCloser, *models.MediaInfo, error) {
	info, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}
	m.mu.RLock()
	data := m.data[id]
	m.mu.RUnlock()
	return nopCloser{bytes.NewReader(data)}, info, nil
}

func (m *MockMediaStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("media %s: %w", id, storage.ErrNotFound)
	}
	delete(m.files, id)
	delete(m.data, id)
	return nil
}

func (m *MockMediaStore) Path(id string) (string, error) {
	if _, err := m.Get(id); err != nil {
		return "", err
	}
	return "/mock/media/" + id, nil
}

// Ensure MockMediaStore implements storage.MediaStore
var _ storage.MediaStore = (*MockMediaStore)(nil)

// AddMedia stores a blob directly under id
func (m *MockMediaStore) AddMedia(id, name, mimeType string, data []byte) *models.MediaInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := &models.MediaInfo{
		ID:         id,
		Name:       name,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
	}
	m.files[id] = info
	m.data[id] = data
	cp := *info
	return &cp
}

// Count returns the number of stored blobs
func (m *MockMediaStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

var (
	testIDCounter int
	testIDMutex   sync.Mutex
)

// generateTestID generates a simple test ID
func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}

package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moodboard/backend/internal/models"
)

var (
	// ErrNotFound is returned for unknown media, weeks and items.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedType is returned when a blob is neither image nor video.
	ErrUnsupportedType = errors.New("unsupported media type")
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// MediaStore defines the interface for media blob storage.
type MediaStore interface {
	Save(name string, r io.Reader) (*models.MediaInfo, error)
	Get(id string) (*models.MediaInfo, error)
	Open(id string) (io.ReadSeekCloser, *models.MediaInfo, error)
	Delete(id string) error
	Path(id string) (string, error)
}

// LocalStore implements MediaStore on the local filesystem. Blobs are named
// by id; metadata lives in memory and is rebuilt from disk on start.
type LocalStore struct {
	mu       sync.RWMutex
	mediaDir string
	files    map[string]*models.MediaInfo
}

// NewLocalStore creates a LocalStore and indexes any blobs already on disk.
func NewLocalStore(mediaDir string) (*LocalStore, error) {
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}

	s := &LocalStore{
		mediaDir: mediaDir,
		files:    make(map[string]*models.MediaInfo),
	}
	if err := s.reindex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) reindex() error {
	entries, err := os.ReadDir(s.mediaDir)
	if err != nil {
		return fmt.Errorf("reading media directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		info, err := s.inspect(e.Name())
		if err != nil {
			continue
		}
		s.files[info.ID] = info
	}
	return nil
}

func (s *LocalStore) inspect(id string) (*models.MediaInfo, error) {
	path := filepath.Join(s.mediaDir, id)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(f, head)
	mimeType, ok := DetectMediaType(head[:n], "")
	if !ok {
		return nil, ErrUnsupportedType
	}
	return &models.MediaInfo{
		ID:         id,
		Name:       id,
		MimeType:   mimeType,
		Size:       st.Size(),
		UploadedAt: st.ModTime(),
	}, nil
}

// DetectMediaType sniffs the content type of head, falling back to the file
// name's extension when sniffing is inconclusive. ok is false unless the
// result is an image or video type.
func DetectMediaType(head []byte, name string) (string, bool) {
	mimeType := http.DetectContentType(head)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if _, ok := models.KindForMime(mimeType); !ok && name != "" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
			mimeType = byExt
			if i := strings.IndexByte(mimeType, ';'); i >= 0 {
				mimeType = mimeType[:i]
			}
		}
	}
	_, ok := models.KindForMime(mimeType)
	return mimeType, ok
}

// Save stores an image or video blob under a fresh id.
func (s *LocalStore) Save(name string, r io.Reader) (*models.MediaInfo, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	mimeType, ok := DetectMediaType(head, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	id := uuid.New().String()
	path := filepath.Join(s.mediaDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	size, err := io.Copy(f, br)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.MediaInfo{
		ID:         id,
		Name:       name,
		MimeType:   mimeType,
		Size:       size,
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	s.files[id] = info
	s.mu.Unlock()

	return info, nil
}

// Get retrieves media metadata by ID.
func (s *LocalStore) Get(id string) (*models.MediaInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", id, ErrNotFound)
	}
	cp := *info
	return &cp, nil
}

// Open returns a reader over the blob and its metadata.
func (s *LocalStore) Open(id string) (io.ReadSeekCloser, *models.MediaInfo, error) {
	info, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.mediaDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("media %s: %w", id, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("opening media: %w", err)
	}
	return f, info, nil
}

// Delete removes a blob from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("media %s: %w", id, ErrNotFound)
	}

	if err := os.Remove(filepath.Join(s.mediaDir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	delete(s.files, id)
	return nil
}

// Path returns the absolute path to a blob.
func (s *LocalStore) Path(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("media %s: %w", id, ErrNotFound)
	}
	return filepath.Join(s.mediaDir, id), nil
}

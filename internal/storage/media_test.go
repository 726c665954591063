package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewLocalStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	_, err := NewLocalStore(dir)
	require.NoError(t, err)

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestLocalStore_SaveSniffsType(t *testing.T) {
	store := createTestStore(t)
	data := pngBytes(t)

	info, err := store.Save("pasted.bin", bytes.NewReader(data))
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "pasted.bin", info.Name)
	assert.Equal(t, "image/png", info.MimeType)
	assert.Equal(t, int64(len(data)), info.Size)

	rc, got, err := store.Open(info.ID)
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, content)
	assert.Equal(t, info.ID, got.ID)
}

func TestLocalStore_SaveRejectsNonMedia(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Save("notes.txt", strings.NewReader("just some words"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	entries, err := os.ReadDir(store.mediaDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave nothing on disk")
}

func TestLocalStore_ExtensionFallback(t *testing.T) {
	store := createTestStore(t)

	// Not sniffable, but the extension names an image type.
	info, err := store.Save("photo.webp", bytes.NewReader([]byte{0, 1, 2, 3, 4, 5}))
	require.NoError(t, err)
	assert.Equal(t, "image/webp", info.MimeType)
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)
	info, err := store.Save("a.png", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)

	path, err := store.Path(info.ID)
	require.NoError(t, err)

	require.NoError(t, store.Delete(info.ID))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = store.Get(info.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(info.ID), ErrNotFound)
}

func TestLocalStore_ReindexOnStart(t *testing.T) {
	dir := t.TempDir()
	first, err := NewLocalStore(dir)
	require.NoError(t, err)
	info, err := first.Save("a.png", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644))

	second, err := NewLocalStore(dir)
	require.NoError(t, err)
	got, err := second.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.MimeType)
	assert.Len(t, second.files, 1)
}

func TestDetectMediaType(t *testing.T) {
	mimeType, ok := DetectMediaType([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "")
	assert.True(t, ok)
	assert.Equal(t, "image/webp", mimeType)

	_, ok = DetectMediaType([]byte("%PDF-1.7"), "doc.pdf")
	assert.False(t, ok)
}

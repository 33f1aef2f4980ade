package utils

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenUpload yields some bytes and then fails, like a dropped client.
type brokenUpload struct {
	sent bool
}

func (f *brokenUpload) Read(p []byte) (int, error) {
	if f.sent {
		return 0, errors.New("connection reset")
	}
	f.sent = true
	return copy(p, "partial"), nil
}

func (f *brokenUpload) ReadAt(p []byte, off int64) (int, error) { return 0, io.EOF }
func (f *brokenUpload) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (f *brokenUpload) Close() error                                 { return nil }

type memUpload struct {
	*strings.Reader
}

func (memUpload) Close() error { return nil }

var _ multipart.File = (*brokenUpload)(nil)

func TestSaveImageRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	u := NewUploader(dir)

	path, err := u.SaveImage(&brokenUpload{}, &multipart.FileHeader{Filename: "cert.png", Size: 7}, "images")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInternal))
	assert.Empty(t, path)

	entries, err := os.ReadDir(filepath.Join(dir, "images"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveAndDeleteImage(t *testing.T) {
	dir := t.TempDir()
	u := NewUploader(dir)

	_, err := u.SaveImage(memUpload{strings.NewReader("x")}, &multipart.FileHeader{Filename: "cert.exe", Size: 1}, "images")
	assert.True(t, IsKind(err, KindValidation))

	path, err := u.SaveImage(memUpload{strings.NewReader("png")}, &multipart.FileHeader{Filename: "cert.PNG", Size: 3}, "images")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, "/uploads/images/"))

	onDisk := filepath.Join(dir, strings.TrimPrefix(path, "/uploads/"))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	u.Cleanup(path)
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))
}

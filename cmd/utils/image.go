package utils

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxImageSize = 10 << 20 // 10 MB

var validImageTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Uploader stores images under dir and serves them from /uploads/.
type Uploader struct {
	dir string
}

func NewUploader(dir string) *Uploader {
	return &Uploader{dir: dir}
}

func (u *Uploader) Dir() string { return u.dir }

// SaveImage writes an uploaded image into a sub folder and returns its URL path.
func (u *Uploader) SaveImage(file multipart.File, header *multipart.FileHeader, folder string) (string, error) {
	if header.Size > MaxImageSize {
		return "", Validation("file size exceeds maximum limit of %d MB", MaxImageSize/(1<<20))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !validImageTypes[ext] {
		return "", Validation("invalid file type: %s", ext)
	}

	target := filepath.Join(u.dir, folder)
	if err := os.MkdirAll(target, 0755); err != nil {
		return "", Internal(err, "failed to create upload directory")
	}

	filename := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), ext)
	path := filepath.Join(target, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", Internal(err, "failed to create file")
	}

	_, err = io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// a partial file is never returned, so nobody else can clean it up
		if rerr := os.Remove(path); rerr != nil {
			log.Printf("error removing partial upload %s: %v", path, rerr)
		}
		return "", Internal(err, "failed to save file")
	}

	return "/uploads/" + folder + "/" + filename, nil
}

// SaveFormImage saves the multipart field name. A missing field returns ""
// with no error.
func (u *Uploader) SaveFormImage(r *http.Request, field, folder string) (string, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return "", nil
	}
	if err != nil {
		return "", Validation("invalid %s upload", field)
	}
	defer file.Close()
	return u.SaveImage(file, header, folder)
}

func (u *Uploader) DeleteImage(imageURL string) error {
	if imageURL == "" {
		return nil
	}
	rel := strings.TrimPrefix(imageURL, "/uploads/")
	filePath := filepath.Join(u.dir, filepath.Clean("/"+rel))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(filePath)
}

// Cleanup removes files written by a request that failed.
func (u *Uploader) Cleanup(paths ...string) {
	for _, p := range paths {
		if err := u.DeleteImage(p); err != nil {
			log.Printf("error removing upload %s: %v", p, err)
		}
	}
}

// Handler serves stored files; mount it under /uploads/.
func (u *Uploader) Handler() http.Handler {
	return http.StripPrefix("/uploads/", http.FileServer(http.Dir(u.dir)))
}

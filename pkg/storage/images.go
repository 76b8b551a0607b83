package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("image exceeds the upload size limit")
	ErrUnsupportedType = errors.New("only jpeg, png, webp and gif images are accepted")
	ErrEmptyUpload     = errors.New("image file is empty")
)

var allowedImages = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ImageStore keeps product images on local disk under dir and hands out
// URLs below urlPrefix, which the HTTP server serves statically.
type ImageStore struct {
	dir       string
	urlPrefix string
	maxBytes  int
}

func NewImageStore(dir, urlPrefix string, maxBytes int) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
	}, nil
}

func (s *ImageStore) Dir() string {
	return s.dir
}

// Save sniffs the content type from the bytes, never from the client's
// filename, and writes the file under a random name.
func (s *ImageStore) Save(src io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(src, int64(s.maxBytes)+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if len(data) > s.maxBytes {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !allowedImages[mtype.String()] {
		return "", ErrUnsupportedType
	}

	name := uuid.NewString() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return s.urlPrefix + "/" + name, nil
}

// Remove deletes a file previously returned by Save. URLs that do not
// belong to this store are ignored.
func (s *ImageStore) Remove(url string) error {
	if url == "" || !strings.HasPrefix(url, s.urlPrefix+"/") {
		return nil
	}
	name := path.Base(url)
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidKey   = errors.New("invalid blob key")
	ErrBlobNotFound = errors.New("blob not found")
)

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
}

// FSStore keeps blobs as files under a base directory.
type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data/blobs"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.base, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}

// CleanKey normalizes a slash separated key and rejects anything that would
// escape the store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

func sanitizeFilename(name string) string {
	return unsafeFilename.ReplaceAllString(name, "_")
}

// UniqueKey builds folder/yyyymmdd-uuid-name for an upload.
func UniqueKey(folder, originalName, ext string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	base = sanitizeFilename(base)
	if base == "" || base == "_" || base == "." {
		base = "image"
	}
	return fmt.Sprintf("%s/%s-%s-%s%s", strings.Trim(folder, "/"), now.Format("20060102"), uuid.NewString(), base, ext)
}

package assets

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"psikoadmin/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

const (
	maxUploadBytes = 8 << 20
	imageFolder    = "images"
)

type Handler struct {
	store      BlobStore
	compressor Compressor
	publicBase string
	now        func() time.Time
}

type UploadResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int    `json:"bytes"`
	Source string `json:"source_format"`
}

// NewHandler serves blobs under publicBase, e.g. /api/v1/assets.
func NewHandler(store BlobStore, compressor Compressor, publicBase string) *Handler {
	return &Handler{
		store:      store,
		compressor: compressor,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1024)
	f, header, err := r.FormFile("image")
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "image file required")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(data) > maxUploadBytes {
		apiresp.WriteError(w, r, http.StatusRequestEntityTooLarge, "image too large")
		return
	}

	img, err := h.compressor.Compress(data, header.Filename)
	if err != nil {
		if errors.Is(err, ErrUnsupportedImage) {
			apiresp.WriteError(w, r, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		log.Printf("assets: compress failed name=%s err=%v", header.Filename, err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	key, err := h.store.Put(UniqueKey(imageFolder, header.Filename, ".webp", h.now()), bytes.NewReader(img.Data))
	if err != nil {
		log.Printf("assets: store failed name=%s err=%v", header.Filename, err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, UploadResult{
		Key:    key,
		URL:    h.publicBase + "/" + key,
		Width:  img.Width,
		Height: img.Height,
		Bytes:  len(img.Data),
		Source: img.Source,
	})
}

// Get returns the blob at whatever follows the mount point.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := CleanKey(chi.URLParam(r, "*"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rc, err := h.store.Get(key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, "not found")
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentTypeFor(key))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = io.Copy(w, rc)
}

func contentTypeFor(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".webp":
		return "image/webp"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

const (
	DefaultMaxWidth  = 1600
	DefaultMaxHeight = 1600
	DefaultQuality   = 80
)

// Compressor shrinks uploads into bounded WebP images.
type Compressor struct {
	MaxWidth  int
	MaxHeight int
	Quality   float32
}

type CompressedImage struct {
	Data   []byte
	Width  int
	Height int
	Source string
}

func NewCompressor(maxW, maxH int, quality float32) Compressor {
	if maxW <= 0 {
		maxW = DefaultMaxWidth
	}
	if maxH <= 0 {
		maxH = DefaultMaxHeight
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return Compressor{MaxWidth: maxW, MaxHeight: maxH, Quality: quality}
}

func (c Compressor) Compress(data []byte, filename string) (*CompressedImage, error) {
	img, source, err := decodeImage(data, filename)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() > c.MaxWidth || b.Dy() > c.MaxHeight {
		img = imaging.Fit(img, c.MaxWidth, c.MaxHeight, imaging.CatmullRom)
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, &webp.Options{Lossless: false, Quality: c.Quality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	out := img.Bounds()
	return &CompressedImage{Data: buf.Bytes(), Width: out.Dx(), Height: out.Dy(), Source: source}, nil
}

// decodeImage sniffs the content type and falls back to the file extension.
func decodeImage(data []byte, filename string) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	kind := ""
	ct := http.DetectContentType(head)
	switch {
	case strings.Contains(ct, "jpeg"):
		kind = "jpeg"
	case strings.Contains(ct, "png"):
		kind = "png"
	case strings.Contains(ct, "webp"):
		kind = "webp"
	default:
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".jpg", ".jpeg":
			kind = "jpeg"
		case ".png":
			kind = "png"
		case ".webp":
			kind = "webp"
		default:
			return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedImage, ct)
		}
	}

	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(data)
	switch kind {
	case "jpeg":
		img, err = jpeg.Decode(r)
	case "png":
		img, err = png.Decode(r)
	default:
		img, err = webp.Decode(r)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, kind, nil
}

// Package imageprep shrinks oversized images before they are uploaded.
package imageprep

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
)

const DefaultQuality = 85

// Image is an upload-ready image.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
	Resized     bool
}

// Preparer resizes images whose width or height exceeds a limit.
type Preparer struct {
	maxDimension int
	quality      int
}

// New creates a Preparer. maxDimension <= 0 disables resizing.
func New(maxDimension, quality int) *Preparer {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Preparer{maxDimension: maxDimension, quality: quality}
}

// Prepare returns data unchanged unless it decodes to an image larger than
// the limit, in which case it is scaled down (aspect preserved) and
// re-encoded as JPEG under a .jpg name.
func (p *Preparer) Prepare(name string, data []byte) (Image, error) {
	out := Image{Name: name, ContentType: http.DetectContentType(data), Data: data}
	if p == nil || p.maxDimension <= 0 {
		return out, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		// webp and friends are uploaded as they are
		slog.Debug("image_decode_skipped", "name", name, "error", err)
		return out, nil
	}
	b := img.Bounds()
	if b.Dx() <= p.maxDimension && b.Dy() <= p.maxDimension {
		return out, nil
	}

	resized := imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	// JPEG has no alpha channel; transparent pixels would come out black.
	flat := imaging.Overlay(imaging.New(resized.Bounds().Dx(), resized.Bounds().Dy(), color.White), resized, image.Pt(0, 0), 1.0)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return Image{}, err
	}

	slog.Info("image_resized",
		"name", name,
		"from", []int{b.Dx(), b.Dy()},
		"to", []int{resized.Bounds().Dx(), resized.Bounds().Dy()},
		"bytes", buf.Len())

	return Image{
		Name:        strings.TrimSuffix(name, path.Ext(name)) + ".jpg",
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
		Resized:     true,
	}, nil
}

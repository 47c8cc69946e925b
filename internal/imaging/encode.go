package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrUnknownFormat is returned for an unsupported output format name.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// DefaultPreviewSize bounds the long edge of preview images.
const DefaultPreviewSize = 512

// ParseFormat converts a format name. "jpg" is accepted as an alias of
// "jpeg"; the empty string selects FormatJPEG.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "", "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// MimeType returns the media type of the format.
func (f Format) MimeType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Encode encodes img in the given format. Quality applies to JPEG only and
// is clamped to 1..100.
func Encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case FormatJPEG, "":
		quality = min(max(quality, 1), 100)
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Preview scales img down to fit within maxSize x maxSize using a Lanczos
// filter, keeping the aspect ratio. Images that already fit are copied
// unchanged; previews are never upscaled.
func Preview(img image.Image, maxSize int) *image.NRGBA {
	if maxSize <= 0 {
		maxSize = DefaultPreviewSize
	}
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
}

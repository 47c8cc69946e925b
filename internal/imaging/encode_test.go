package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatJPEG},
		{"jpeg", FormatJPEG},
		{"JPG", FormatJPEG},
		{".png", FormatPNG},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q): got %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("gif"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestFormat_ExtAndMime(t *testing.T) {
	if FormatJPEG.Ext() != ".jpg" || FormatJPEG.MimeType() != "image/jpeg" {
		t.Errorf("jpeg: got %s %s", FormatJPEG.Ext(), FormatJPEG.MimeType())
	}
	if FormatPNG.Ext() != ".png" || FormatPNG.MimeType() != "image/png" {
		t.Errorf("png: got %s %s", FormatPNG.Ext(), FormatPNG.MimeType())
	}
}

func TestEncode(t *testing.T) {
	img := createInMemoryImage(16, 8, color.RGBA{255, 0, 0, 255})

	data, err := Encode(img, FormatPNG, 0)
	if err != nil {
		t.Fatalf("Encode png failed: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	if rgbAt(decoded, 3, 3) != [3]uint8{255, 0, 0} {
		t.Errorf("png pixel: got %v, want red", rgbAt(decoded, 3, 3))
	}

	data, err = Encode(img, FormatJPEG, 90)
	if err != nil {
		t.Fatalf("Encode jpeg failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}

	if _, err := Encode(img, Format("bmp"), 90); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestEncode_JPEGQualityAffectsSize(t *testing.T) {
	img := createNoiseImage(64, 64)

	high, err := Encode(img, FormatJPEG, 90)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	low, err := Encode(img, FormatJPEG, 10)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(low) >= len(high) {
		t.Errorf("quality 10 (%d bytes) should be smaller than quality 90 (%d bytes)", len(low), len(high))
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		max   int
		wantW int
		wantH int
	}{
		{"landscape", 2048, 1024, 512, 512, 256},
		{"portrait", 300, 1200, 512, 128, 512},
		{"already small", 100, 50, 512, 100, 50},
		{"default size", 1024, 1024, 0, 512, 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Preview(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), tt.max)
			if p.Bounds().Dx() != tt.wantW || p.Bounds().Dy() != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", p.Bounds().Dx(), p.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

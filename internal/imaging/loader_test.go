package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func TestDecode_PNG(t *testing.T) {
	data := encodePNG(t, createInMemoryImage(100, 80, color.RGBA{255, 0, 0, 255}))

	img, info, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.FileSizeBytes != int64(len(data)) {
		t.Errorf("FileSizeBytes: got %d, want %d", info.FileSizeBytes, len(data))
	}
	if got := rgbAt(img, 10, 10); got != [3]uint8{255, 0, 0} {
		t.Errorf("pixel: got %v, want red", got)
	}
}

func TestDecode_JPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createInMemoryImage(32, 16, color.RGBA{0, 0, 255, 255}), nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}

	_, info, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if info.Format != "jpeg" {
		t.Errorf("Format: got %s, want jpeg", info.Format)
	}
	if info.Width != 32 || info.Height != 16 {
		t.Errorf("dimensions: got %dx%d, want 32x16", info.Width, info.Height)
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, createInMemoryImage(10, 10, color.White))[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.data)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, encodePNG(t, createInMemoryImage(5, 7, color.Black)), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, info, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if info.Width != 5 || info.Height != 7 {
		t.Errorf("dimensions: got %dx%d, want 5x7", info.Width, info.Height)
	}

	if _, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpaque(t *testing.T) {
	src := image.NewNRGBA(image.Rect(3, 4, 5, 6))
	src.SetNRGBA(3, 4, color.NRGBA{200, 100, 50, 0})
	src.SetNRGBA(4, 5, color.NRGBA{10, 20, 30, 128})

	dst := Opaque(src)

	if dst.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds: got %v, want (0,0)-(2,2)", dst.Bounds())
	}
	if got := dst.NRGBAAt(0, 0); got != (color.NRGBA{200, 100, 50, 255}) {
		t.Errorf("transparent pixel: got %v, want straight RGB made opaque", got)
	}
	if got := dst.NRGBAAt(1, 1); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("translucent pixel: got %v", got)
	}
	if src.NRGBAAt(3, 4).A != 0 {
		t.Error("source image was modified")
	}
}

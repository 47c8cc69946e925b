package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pixel-palette/internal/palette"
)

func writePNG(t *testing.T, dir, name string, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func runCLI(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersionAndHelp(t *testing.T) {
	code, out, _ := runCLI("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "pixel-palette dev")

	code, out, _ = runCLI("--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage: pixel-palette <command>")
	assert.Contains(t, out, "PIXEL_PALETTE_SERVER_ADDR")
}

func TestUsageErrors(t *testing.T) {
	code, _, errOut := runCLI()
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Commands:")

	code, _, errOut = runCLI("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)
}

func TestFilter(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "red.png", 10, 10, color.NRGBA{255, 0, 0, 255})
	lut := filepath.Join(dir, "redblack.txt")
	require.NoError(t, os.WriteFile(lut, []byte("#000000\n#FF0000\n"), 0o600))
	outDir := filepath.Join(dir, "out")

	code, out, errOut := runCLI("filter", "--image", img, "--lut-file", lut, "--out", outDir, "--format", "png", "--log-level", "error")
	require.Equal(t, 0, code, errOut)

	full := filepath.Join(outDir, "red_filtered.png")
	preview := filepath.Join(outDir, "red_filtered_preview.png")
	assert.Equal(t, full+"\n"+preview+"\n", out)

	f, err := os.Open(full)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	r, g, b, _ := decoded.At(5, 5).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})
	assert.FileExists(t, preview)
}

func TestFilterNamedPalette(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "photo.png", 8, 8, color.White)
	luts := filepath.Join(dir, "luts")
	require.NoError(t, os.Mkdir(luts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(luts, "mono.txt"), []byte("#000000\n#FFFFFF\n"), 0o600))

	code, out, errOut := runCLI("filter", "--image", img, "--lut", "mono.txt", "--palettes", luts,
		"--out", dir, "--scale", "50", "--dither", "--outlines", "--log-level", "error")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, filepath.Join(dir, "photo_filtered.jpg"))
	assert.FileExists(t, filepath.Join(dir, "photo_filtered_preview.jpg"))
}

func TestFilterErrors(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "a.png", 4, 4, color.White)
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("; nothing\n"), 0o600))

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing image", []string{"--lut-file", empty}, 2},
		{"missing palette", []string{"--image", img}, 2},
		{"both palettes", []string{"--image", img, "--lut", "x.txt", "--lut-file", empty}, 2},
		{"bad scale", []string{"--image", img, "--lut-file", empty, "--scale", "0"}, 2},
		{"unknown flag", []string{"--image", img, "--bogus"}, 2},
		{"empty palette", []string{"--image", img, "--lut-file", empty, "--out", dir}, 1},
		{"unknown palette", []string{"--image", img, "--lut", "nope.txt", "--palettes", dir}, 1},
		{"missing image file", []string{"--image", filepath.Join(dir, "nope.png"), "--lut-file", empty}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"filter", "--log-level", "error"}, tt.args...)
			code, out, _ := runCLI(args...)
			assert.Equal(t, tt.code, code)
			assert.Empty(t, out)
		})
	}

	assert.NoFileExists(t, filepath.Join(dir, "a_filtered.jpg"), "empty palette writes nothing")
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "blue.png", 16, 16, color.NRGBA{20, 40, 200, 255})

	code, out, errOut := runCLI("extract", "--image", img, "--count", "3", "--log-level", "error")
	require.Equal(t, 0, code, errOut)

	assert.True(t, strings.HasPrefix(out, "; "), "LUT should start with a comment: %q", out)
	assert.Contains(t, out, "blue.png")

	p := palette.Parse([]byte(out))
	assert.NotEmpty(t, p)
	assert.LessOrEqual(t, len(p), 3)
}

func TestExtractErrors(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "a.png", 4, 4, color.White)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing image", nil, 2},
		{"bad count", []string{"--image", img, "--count", "0"}, 2},
		{"bad method", []string{"--image", img, "--method", "octree"}, 2},
		{"unreadable image", []string{"--image", filepath.Join(dir, "nope.png")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"extract", "--log-level", "error"}, tt.args...)
			code, _, _ := runCLI(args...)
			assert.Equal(t, tt.code, code)
		})
	}
}

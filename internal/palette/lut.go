package palette

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/text/encoding/charmap"
)

// ParseReader reads a whole LUT file from r and parses it.
//
// Only I/O errors are returned. A file without a single valid color line
// yields an empty palette and a nil error.
func ParseReader(r io.Reader) (Palette, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read palette: %w", err)
	}
	return Parse(data), nil
}

// Parse turns the raw bytes of a LUT file into a palette.
//
// Lines are read in file order. Comment lines (";"), blank lines and lines
// that match neither accepted format are skipped.
func Parse(data []byte) Palette {
	text := decodeText(data)

	lines := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	})

	colors := make(Palette, 0, len(lines))
	for _, line := range lines {
		c, ok := ParseLine(line)
		if !ok {
			continue
		}
		colors = append(colors, c)
	}
	return colors
}

// ParseLine parses a single LUT line. The boolean is false for comments,
// blank lines and malformed lines.
func ParseLine(line string) (Color, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ";") {
		return Color{}, false
	}

	switch {
	case strings.HasPrefix(line, "#") || strings.HasPrefix(line, "FF"):
		if len(line) < 6 {
			return Color{}, false
		}
		return parseHex(line[len(line)-6:])
	case len(line) == 8 && isHex(line):
		return parseHex(line[2:])
	}
	return Color{}, false
}

// decodeText reads data as UTF-8, falling back to Latin-1.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// Latin-1 maps every byte; this only happens on a broken decoder.
		return string(data)
	}
	return string(decoded)
}

func parseHex(s string) (Color, bool) {
	if len(s) != 6 || !isHex(s) {
		return Color{}, false
	}
	c, err := colorful.Hex("#" + s)
	if err != nil {
		return Color{}, false
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b}, true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'f', ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}

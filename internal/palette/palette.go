package palette

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// TableSize is the number of slots in a quantization table.
const TableSize = 256

// Color is an opaque 8-bit RGB color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// RGBA implements color.Color. Palette colors are always opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

// Hex renders the color as "#rrggbb".
func (c Color) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}.Hex()
}

// Palette is an ordered list of colors. The position of a color is its
// palette index.
type Palette []Color

// Truncated reports whether the palette has more colors than fit in a table.
func (p Palette) Truncated() bool {
	return len(p) > TableSize
}

// Table builds the fixed-size color table for quantization.
//
// Entries 0..N-1 are the palette colors in order and the remaining entries
// are opaque black. Colors beyond TableSize are dropped.
func (p Palette) Table() color.Palette {
	table := make(color.Palette, TableSize)
	for i := range table {
		if i < len(p) {
			table[i] = p[i]
			continue
		}
		table[i] = Color{}
	}
	return table
}

// Hexes returns the "#rrggbb" form of every color, in palette order.
func (p Palette) Hexes() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Hex()
	}
	return out
}

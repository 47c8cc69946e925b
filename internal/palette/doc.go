// Package palette parses LUT palette files and turns them into the fixed
// 256-slot color tables used for quantization.
//
// # LUT Files
//
// A LUT file holds one color per line. Two historical line formats are
// accepted:
//   - "#RRGGBB" or "FF"-prefixed lines, whose trailing 6 characters must be hex
//   - bare 8-hex-digit lines such as "FF1A2B3C", whose trailing 6 digits are RGB
//
// Lines beginning with ";" are comments. Blank and malformed lines are
// skipped without error. Files that are not valid UTF-8 are read as Latin-1.
//
// # Index Order
//
// The order of colors in the file is the order of the palette index. It has
// no relation to color similarity and duplicates are kept.
//
// # Table Size
//
// Quantization uses a table of exactly TableSize entries. Palettes with fewer
// colors are padded with black; palettes with more are truncated to the first
// TableSize colors.
//
// # Palette Libraries
//
// A Library serves a directory of LUT files through an fs.FS. Each ".txt"
// file is one palette and its file name is the palette's display name.
package palette

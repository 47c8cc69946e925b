package palette

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrUnknownPalette is returned when a palette name does not resolve to a LUT
// file in the library.
var ErrUnknownPalette = errors.New("unknown palette")

// Entry is a named palette from a Library.
type Entry struct {
	Name   string  `json:"name"`
	Colors Palette `json:"-"`
}

// Library is a read-only collection of LUT files.
//
// The library reads through an fs.FS so production code can serve a directory
// with os.DirFS while tests use an in-memory fstest.MapFS. Only top-level
// ".txt" files are palettes.
type Library struct {
	fsys fs.FS
}

// NewLibrary creates a library backed by fsys.
func NewLibrary(fsys fs.FS) *Library {
	return &Library{fsys: fsys}
}

// List loads every palette in the library, sorted by name.
//
// Files that cannot be read or that contain no valid color lines are left out;
// an unreadable directory is an error.
func (l *Library) List() ([]Entry, error) {
	dirEntries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read palette directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !isLUTName(de.Name()) {
			continue
		}
		p, err := l.Load(de.Name())
		if err != nil {
			log.Warn().Err(err).Str("palette", de.Name()).Msg("skipping unreadable palette")
			continue
		}
		if len(p) == 0 {
			log.Debug().Str("palette", de.Name()).Msg("skipping palette without colors")
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Colors: p})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Load parses the palette stored under name.
//
// The name must be a top-level ".txt" file of the library; anything else,
// including paths with separators, is ErrUnknownPalette.
func (l *Library) Load(name string) (Palette, error) {
	if !fs.ValidPath(name) || path.Base(name) != name || !isLUTName(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
	}

	f, err := l.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
		}
		return nil, fmt.Errorf("failed to open palette %q: %w", name, err)
	}
	defer f.Close()

	return ParseReader(f)
}

func isLUTName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".txt")
}

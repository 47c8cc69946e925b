// Package storage keeps uploaded images and their rendered outputs in an
// ephemeral, expiring scratch directory.
//
// Every upload gets its own scope, a directory under the store root named by
// an opaque UUID handle. Clients refer to uploads only by that handle, never
// by their original file name, so two clients uploading "photo.jpg" at the
// same time cannot collide and no client-controlled path ever reaches the
// filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixel-palette/internal/imaging"
)

// sourceFile is the name of the original upload inside a scope.
const sourceFile = "source"

var (
	// ErrNotFound is returned for unknown or expired upload handles.
	ErrNotFound = errors.New("upload not found")

	// ErrInvalidName is returned for file names that are not a single plain
	// path element.
	ErrInvalidName = errors.New("invalid file name")

	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("upload too large")
)

// Upload describes one stored upload.
type Upload struct {
	// ID is the opaque handle clients use to refer to the upload.
	ID string `json:"id"`

	// Name is the sanitized original file name, used to name outputs.
	Name string `json:"name"`

	// Size is the upload size in bytes.
	Size int64 `json:"size"`

	// Created is when the upload was stored.
	Created time.Time `json:"created"`

	dir string

	mu    sync.Mutex
	image image.Image
	info  *imaging.ImageInfo
}

// Store is a set of upload scopes with time-based expiry.
//
// Store is safe for concurrent use. Writes within one scope are serialized;
// decoded images are cached in memory until the scope expires or is evicted.
type Store struct {
	root     string
	ttl      time.Duration
	maxBytes int64
	now      func() time.Time

	mu      sync.RWMutex
	uploads map[string]*Upload
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes limits the size of a single upload. Zero means unlimited.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		s.maxBytes = n
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store rooted at root, creating the directory if needed.
// Uploads older than ttl are treated as gone; a ttl of zero disables expiry.
//
// Scopes left in root by earlier processes are removed once they are older
// than ttl. Younger scopes may belong to another process sharing the root and
// are left alone; with a ttl of zero nothing is removed.
func New(root string, ttl time.Duration, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	s := &Store{
		root:    root,
		ttl:     ttl,
		now:     time.Now,
		uploads: make(map[string]*Upload),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.removeStale()
	return s, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// TTL returns how long uploads live; zero means forever.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Save stores the contents of r as a new upload. name is the client's file
// name; only its base name is kept, for naming outputs.
func (s *Store) Save(name string, r io.Reader) (*Upload, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload id: %w", err)
	}

	dir := filepath.Join(s.root, id.String())
	if err := os.Mkdir(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload scope: %w", err)
	}

	size, err := s.writeSource(filepath.Join(dir, sourceFile), r)
	if err != nil {
		removeDir(dir)
		return nil, err
	}

	u := &Upload{
		ID:      id.String(),
		Name:    SanitizeName(name),
		Size:    size,
		Created: s.now(),
		dir:     dir,
	}

	s.mu.Lock()
	s.uploads[u.ID] = u
	s.mu.Unlock()

	log.Debug().Str("upload", u.ID).Str("name", u.Name).Int64("bytes", size).Msg("stored upload")
	return u, nil
}

func (s *Store) writeSource(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return 0, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}
	return n, nil
}

// Lookup returns the upload for id. Unknown, malformed and expired handles
// are ErrNotFound.
func (s *Store) Lookup(id string) (*Upload, error) {
	if _, err := uuid.FromString(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	s.mu.RLock()
	u, ok := s.uploads[id]
	s.mu.RUnlock()

	if !ok || s.expired(u) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return u, nil
}

// Source returns the raw bytes of the upload.
func (s *Store) Source(id string) ([]byte, error) {
	u, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(u.dir, sourceFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// Image returns the decoded upload, decoding it on first use.
//
// Decode failures wrap imaging.ErrDecode and are not cached.
func (s *Store) Image(id string) (image.Image, *imaging.ImageInfo, error) {
	u, err := s.Lookup(id)
	if err != nil {
		return nil, nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.image != nil {
		return u.image, u.info, nil
	}

	data, err := os.ReadFile(filepath.Join(u.dir, sourceFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	img, info, err := imaging.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	u.image, u.info = img, info
	return img, info, nil
}

// WriteFile writes data as name inside the upload's scope, replacing any
// previous file of that name, and returns the file's path.
func (s *Store) WriteFile(id, name string, data []byte) (string, error) {
	u, err := s.Lookup(id)
	if err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	path := filepath.Join(u.dir, name)
	tmp, err := os.CreateTemp(u.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to publish output file: %w", err)
	}
	return path, nil
}

// Open opens the file name from the upload's scope for reading.
func (s *Store) Open(id, name string) (*os.File, error) {
	u, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(u.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, id, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

// Path returns the filesystem path of name inside the upload's scope. The
// file need not exist.
func (s *Store) Path(id, name string) (string, error) {
	u, err := s.Lookup(id)
	if err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}
	return filepath.Join(u.dir, name), nil
}

// Evict removes an upload and all of its files. Unknown ids are ignored.
func (s *Store) Evict(id string) {
	s.mu.Lock()
	u, ok := s.uploads[id]
	delete(s.uploads, id)
	s.mu.Unlock()

	if ok {
		removeDir(u.dir)
	}
}

// Sweep evicts every expired upload and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	var expired []*Upload
	for id, u := range s.uploads {
		if s.expired(u) {
			expired = append(expired, u)
			delete(s.uploads, id)
		}
	}
	s.mu.Unlock()

	for _, u := range expired {
		removeDir(u.dir)
	}
	if len(expired) > 0 {
		log.Debug().Int("count", len(expired)).Msg("swept expired uploads")
	}
	return len(expired)
}

// Run sweeps expired uploads every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of live uploads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.uploads)
}

func (s *Store) expired(u *Upload) bool {
	return s.ttl > 0 && s.now().Sub(u.Created) > s.ttl
}

func (s *Store) removeStale() {
	if s.ttl <= 0 {
		return
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		log.Warn().Err(err).Str("root", s.root).Msg("could not list storage root")
		return
	}
	for _, e := range entries {
		if _, err := uuid.FromString(e.Name()); err != nil || !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || s.now().Sub(info.ModTime()) <= s.ttl {
			continue
		}
		removeDir(filepath.Join(s.root, e.Name()))
	}
}

func removeDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("could not clean up upload scope")
	}
}

// SanitizeName reduces a client file name to a safe base name. Empty and
// unusable names become "image".
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "/" {
		return "image"
	}
	return name
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || name == sourceFile ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

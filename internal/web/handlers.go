package web

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/ironsheep/pixel-palette/internal/imaging"
	"github.com/ironsheep/pixel-palette/internal/palette"
	"github.com/ironsheep/pixel-palette/internal/pipeline"
	"github.com/ironsheep/pixel-palette/internal/storage"
)

// swatchTile is the edge length of one color in a palette swatch.
const swatchTile = 16

type paletteView struct {
	Name string
	Hex  []string
}

type pageData struct {
	Palettes []paletteView

	// Form state, echoed back so the user can tweak and re-run.
	Selected    string
	StoredImage string
	StoredName  string
	PixelScale  float64
	Dither      bool
	Outlines    bool

	// Result, set after a successful run.
	PreviewURL   string
	ResultURL    string
	DownloadURL  string
	DownloadName string
	Width        int
	Height       int
	Colors       int
	Truncated    bool

	Notice string
	Error  string
}

func (h *Handler) newPage(r *http.Request) *pageData {
	page := &pageData{PixelScale: 100}

	lib := h.processor.Library()
	if lib == nil {
		return page
	}
	entries, err := lib.List()
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("could not list palettes")
		page.Error = "The palette library is unavailable."
		return page
	}
	for _, e := range entries {
		page.Palettes = append(page.Palettes, paletteView{Name: e.Name, Hex: e.Colors.Hexes()})
	}
	return page
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.index.Execute(w, page); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to render page")
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, h.newPage(r))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (h *Handler) handleFilter(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	page := h.newPage(r)

	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			page.Error = fmt.Sprintf("The upload is larger than %s.", formatBytes(h.opts.MaxUploadBytes))
			h.render(w, r, http.StatusRequestEntityTooLarge, page)
			return
		}
		page.Error = "The form could not be read."
		h.render(w, r, http.StatusBadRequest, page)
		return
	}
	defer func() {
		if r.MultipartForm == nil {
			return
		}
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Warn().Err(err).Msg("could not remove multipart temp files")
		}
	}()

	page.PixelScale = parsePercent(r.FormValue("pixel_scale"))
	page.Dither = r.FormValue("dither") != ""
	page.Outlines = r.FormValue("outlines") != ""
	page.Selected = r.FormValue("lut_select")

	store := h.processor.Store()

	uploadID, name, err := h.saveImage(r, store)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		page.Error = fmt.Sprintf("The image is larger than %s.", formatBytes(h.opts.MaxUploadBytes))
		h.render(w, r, http.StatusRequestEntityTooLarge, page)
		return
	case errors.Is(err, storage.ErrNotFound):
		page.Error = "The previous upload has expired. Please upload the image again."
		h.render(w, r, http.StatusGone, page)
		return
	case err != nil:
		logger.Error().Err(err).Msg("could not store upload")
		page.Error = "The image could not be stored."
		h.render(w, r, http.StatusInternalServerError, page)
		return
	case uploadID == "":
		page.Notice = "Choose an image to filter."
		h.render(w, r, http.StatusOK, page)
		return
	}
	page.StoredImage, page.StoredName = uploadID, name

	lut, err := readFormFile(r, "palette")
	if err != nil {
		page.Error = "The palette file could not be read."
		h.render(w, r, http.StatusBadRequest, page)
		return
	}

	out, err := h.processor.Process(r.Context(), pipeline.Request{
		UploadID:    uploadID,
		PaletteName: page.Selected,
		PaletteData: lut,
		Options: pipeline.Options{
			Scale:    imaging.ScaleFromPercent(page.PixelScale),
			Dither:   page.Dither,
			Outlines: page.Outlines,
		},
	})
	switch {
	case errors.Is(err, imaging.ErrDecode):
		store.Evict(uploadID)
		page.StoredImage, page.StoredName = "", ""
		page.Error = "The image could not be decoded. Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP."
		h.render(w, r, http.StatusBadRequest, page)
		return
	case errors.Is(err, palette.ErrUnknownPalette):
		page.Error = fmt.Sprintf("Unknown palette %q.", page.Selected)
		h.render(w, r, http.StatusBadRequest, page)
		return
	case errors.Is(err, storage.ErrNotFound):
		page.StoredImage, page.StoredName = "", ""
		page.Error = "The upload has expired. Please upload the image again."
		h.render(w, r, http.StatusGone, page)
		return
	case err != nil:
		logger.Error().Err(err).Str("upload", uploadID).Msg("filter failed")
		page.Error = "The image could not be filtered."
		h.render(w, r, http.StatusInternalServerError, page)
		return
	case out == nil:
		page.Notice = "Select a palette, or upload a palette file with at least one color."
		h.render(w, r, http.StatusOK, page)
		return
	}

	page.ResultURL = fileURL(out.UploadID, out.FullName)
	page.PreviewURL = fileURL(out.UploadID, out.PreviewName)
	page.DownloadURL = page.ResultURL + "?download=1"
	page.DownloadName = out.FullName
	page.Width, page.Height = out.Width, out.Height
	page.Colors, page.Truncated = out.Colors, out.Truncated

	h.render(w, r, http.StatusOK, page)
}

// saveImage stores a newly uploaded image, or resolves the stored_image
// handle from an earlier request. It returns an empty id when the form has
// neither.
func (h *Handler) saveImage(r *http.Request, store *storage.Store) (id, name string, err error) {
	file, header, err := formFile(r, "image")
	switch {
	case err == nil:
		defer file.Close()
		if header.Filename != "" {
			u, err := store.Save(header.Filename, file)
			if err != nil {
				return "", "", err
			}
			hlog.FromRequest(r).Debug().Str("upload", u.ID).Str("name", u.Name).Msg("stored upload")
			return u.ID, u.Name, nil
		}
	case !errors.Is(err, http.ErrMissingFile):
		return "", "", err
	}

	stored := strings.TrimSpace(r.FormValue("stored_image"))
	if stored == "" {
		return "", "", nil
	}
	u, err := store.Lookup(stored)
	if err != nil {
		return "", "", err
	}
	return u.ID, u.Name, nil
}

// formFile is r.FormFile, except that a request without a multipart body
// has no files rather than being an error.
func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil, http.ErrMissingFile
	}
	return r.FormFile(field)
}

// readFormFile returns the contents of an uploaded form file, or nil when
// the field is absent or empty.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, header, err := formFile(r, field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if header.Filename == "" {
		return nil, nil
	}
	return io.ReadAll(file)
}

func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	f, err := h.processor.Store().Open(id, name)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidName):
		http.NotFound(w, r)
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("could not open output")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Cache-Control", "private, no-cache")
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	http.ServeContent(w, r, name, stat.ModTime(), f)
}

func (h *Handler) handleSwatch(w http.ResponseWriter, r *http.Request) {
	lib := h.processor.Library()
	if lib == nil {
		http.NotFound(w, r)
		return
	}

	p, err := lib.Load(chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, palette.ErrUnknownPalette):
		http.NotFound(w, r)
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("could not load palette")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	case len(p) == 0:
		http.NotFound(w, r)
		return
	}

	data, err := imaging.Encode(palette.Swatch(p, swatchTile), imaging.FormatPNG, 0)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", imaging.FormatPNG.MimeType())
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(data)
}

func fileURL(id, name string) string {
	return "/files/" + url.PathEscape(id) + "/" + url.PathEscape(name)
}

func extOf(name string) string {
	return strings.TrimPrefix(path.Ext(name), ".")
}

// parsePercent reads the pixel_scale field. Missing or unparsable values
// select 100; everything else is clamped to 1..100.
func parsePercent(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 100
	}
	return min(max(v, 1), 100)
}

func formatPercent(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

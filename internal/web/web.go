// Package web serves the browser front end: a single form that uploads an
// image and a palette, runs the filter and shows the preview with download
// links.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixel-palette/internal/imaging"
	"github.com/ironsheep/pixel-palette/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// Options configures the front end.
type Options struct {
	// MaxUploadBytes limits the size of a request body. Zero means unlimited.
	MaxUploadBytes int64
}

// Handler is the HTTP front end.
type Handler struct {
	processor *pipeline.Processor
	opts      Options
	index     *template.Template
	router    chi.Router
}

// New builds the front end around processor.
func New(processor *pipeline.Processor, opts Options) (*Handler, error) {
	index, err := template.New("index.html").Funcs(template.FuncMap{
		"percent": formatPercent,
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	h := &Handler{
		processor: processor,
		opts:      opts,
		index:     index,
	}
	h.router = h.routes(log.Logger)
	return h, nil
}

func (h *Handler) routes(logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleIndex)
	r.Post("/", h.handleFilter)
	r.Get("/files/{id}/{name}", h.handleFile)
	r.Get("/palettes/{name}/swatch.png", h.handleSwatch)
	r.Get("/healthz", h.handleHealth)

	return r
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// contentType returns the media type for an output file name.
func contentType(name string) string {
	format, err := imaging.ParseFormat(extOf(name))
	if err != nil {
		return "application/octet-stream"
	}
	return format.MimeType()
}

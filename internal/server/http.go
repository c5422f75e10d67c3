package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/forms"
	"github.com/joseph-ayodele/form-extractor/internal/pipeline"
)

// Processor runs the extraction pipeline synchronously.
type Processor interface {
	Process(ctx context.Context, data []byte, filename string) pipeline.Result
}

// HTTPConfig holds the transport limits of the HTTP API.
type HTTPConfig struct {
	MaxUploadBytes int
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// HTTPServer is the HTTP API: the synchronous /process endpoint and the
// forms API.
type HTTPServer struct {
	router chi.Router
	proc   Processor
	forms  *forms.Service
	health func(ctx context.Context) error
	cfg    HTTPConfig
	log    *slog.Logger
}

// NewHTTPServer wires the routes. forms and health may be nil; the forms
// routes are then not mounted and /health always reports ok.
func NewHTTPServer(proc Processor, formsSvc *forms.Service, health func(ctx context.Context) error, cfg HTTPConfig, log *slog.Logger) *HTTPServer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	s := &HTTPServer{proc: proc, forms: formsSvc, health: health, cfg: cfg, log: log}
	s.setupRoutes()
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *HTTPServer) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestContext)
	r.Use(RequestLogger(s.log))
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/process", s.handleProcess)

	if s.forms != nil {
		r.Route("/api/forms", func(api chi.Router) {
			api.Post("/upload", s.handleUpload)
			api.Get("/history", s.handleHistory)
			api.Get("/{id}/results", s.handleResults)
			api.Get("/{id}/image", s.handleImage)
			api.Get("/{id}/export", s.handleExport)
			api.Delete("/{id}", s.handleDelete)
		})
	}

	s.router = r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("http.health.failed", "error", err)
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func jsonResponse(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonResponse(w, code, map[string]string{"error": msg})
}

// statusFor maps an application error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("http.handler.failed", "req_id", common.RequestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	msg := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	jsonError(w, msg, code)
}

// Package server exposes the check pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/check-match/internal/check"
	"github.com/sells-group/check-match/internal/config"
	"github.com/sells-group/check-match/internal/extract"
	"github.com/sells-group/check-match/internal/model"
	"github.com/sells-group/check-match/pkg/bloomerang"
)

// CheckIDHeader carries the per-request check ID on every pipeline response.
const CheckIDHeader = "X-Check-ID"

const shutdownTimeout = 10 * time.Second

// Processor runs the check pipeline.
type Processor interface {
	ProcessImage(ctx context.Context, image []byte, mediaType string) (*model.Payload, error)
	ProcessExtraction(ctx context.Context, ext model.Extraction) (*model.Payload, error)
}

// Server is the HTTP API.
type Server struct {
	proc           Processor
	port           int
	maxUploadBytes int64
	allowedOrigins []string
}

// New creates a Server. Zero values in cfg fall back to the defaults.
func New(proc Processor, cfg config.ServerConfig) *Server {
	s := &Server{
		proc:           proc,
		port:           cfg.Port,
		maxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		allowedOrigins: cfg.AllowedOrigins,
	}
	if s.port <= 0 {
		s.port = 8080
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = 10 << 20
	}
	if len(s.allowedOrigins) == 0 {
		s.allowedOrigins = []string{"*"}
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{CheckIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/process-check", s.handleProcessCheck)
		r.Post("/match", s.handleMatch)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", s.port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleProcessCheck(w http.ResponseWriter, r *http.Request) {
	checkID := uuid.NewString()
	w.Header().Set(CheckIDHeader, checkID)
	log := zap.L().With(zap.String("check_id", checkID))

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("upload exceeds %d MB", s.maxUploadBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}
	if len(image) == 0 {
		writeError(w, http.StatusBadRequest, "empty file")
		return
	}

	log.Info("processing check",
		zap.String("file", header.Filename),
		zap.Int("bytes", len(image)),
	)

	payload, err := s.proc.ProcessImage(r.Context(), image, header.Header.Get("Content-Type"))
	if err != nil {
		status := statusFor(err, http.StatusBadGateway)
		log.Error("process check failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	log.Info("check processed",
		zap.Int("candidates", len(payload.Candidates)),
		zap.Int("searches", len(payload.SearchLog)),
	)
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	checkID := uuid.NewString()
	w.Header().Set(CheckIDHeader, checkID)
	log := zap.L().With(zap.String("check_id", checkID))

	var body map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUploadBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload, err := s.proc.ProcessExtraction(r.Context(), check.ExtractionFromMap(body))
	if err != nil {
		status := statusFor(err, http.StatusInternalServerError)
		log.Error("match failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// statusFor maps pipeline errors to HTTP statuses. Configuration errors are
// the server's fault; an unusable image is the caller's.
func statusFor(err error, fallback int) int {
	switch {
	case eris.Is(err, bloomerang.ErrMissingAPIKey),
		eris.Is(err, extract.ErrNotConfigured),
		eris.Is(err, check.ErrNoExtractor):
		return http.StatusInternalServerError
	case eris.Is(err, extract.ErrUnsupportedImage):
		return http.StatusBadRequest
	default:
		return fallback
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

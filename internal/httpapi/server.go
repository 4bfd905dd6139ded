// Package httpapi exposes the bundle upload endpoint.
//
// Routes:
//
//	GET  /        upload form
//	POST /upload  multipart field "file" holding a .zip; replies with an ingest.Report
//	GET  /healthz liveness
package httpapi

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"layoutsync/internal/datasource"
	"layoutsync/internal/datasource/archive"
	"layoutsync/internal/ingest"
	"layoutsync/internal/metrics"
)

// Request-level failures. The messages are what clients see.
const (
	msgNoFile       = "no file uploaded"
	msgEmptyName    = "empty file name"
	msgNotZip       = "file must have a .zip extension"
	msgTooLarge     = "upload exceeds the size limit"
	msgBadMultipart = "malformed multipart request"
)

const (
	defaultMaxUpload = 512 << 20
	memoryBuffer     = 32 << 20
	shutdownTimeout  = 30 * time.Second
)

// Config controls the server.
type Config struct {
	Addr string
	// MaxUploadBytes caps the request body; zero means 512 MiB.
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Server serves uploads through an ingest.Runner.
type Server struct {
	cfg    Config
	runner *ingest.Runner
	router chi.Router
	logger *zap.Logger
	newID  func() string
}

// NewServer builds the router. runner.Logger is replaced by cfg.Logger when
// the runner has none.
func NewServer(cfg Config, runner *ingest.Runner) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if runner.Logger == nil {
		runner.Logger = cfg.Logger
	}
	s := &Server{cfg: cfg, runner: runner, logger: cfg.Logger, newID: ingest.NewID}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/upload", s.handleUpload)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})
	s.router = r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := s.newID()
	logger := s.logger.With(zap.String("upload_id", id))

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(memoryBuffer); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig), strings.Contains(err.Error(), "request body too large"):
			s.reject(w, r, logger, id, http.StatusRequestEntityTooLarge, msgTooLarge)
		case errors.Is(err, http.ErrNotMultipart):
			s.reject(w, r, logger, id, http.StatusBadRequest, msgNoFile)
		default:
			s.reject(w, r, logger, id, http.StatusBadRequest, msgBadMultipart)
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.reject(w, r, logger, id, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	name := strings.TrimSpace(header.Filename)
	switch {
	case name == "":
		s.reject(w, r, logger, id, http.StatusBadRequest, msgEmptyName)
		return
	case !strings.HasSuffix(strings.ToLower(name), ".zip"):
		s.reject(w, r, logger, id, http.StatusBadRequest, msgNotZip)
		return
	}

	logger.Info("upload received", zap.String("file", name), zap.Int64("bytes", header.Size))
	rep, err := s.runner.Run(r.Context(), id, datasource.FromReader(file))

	status := http.StatusOK
	switch {
	case errors.Is(err, archive.ErrArchive), errors.Is(err, ingest.ErrNoPairs):
		status = http.StatusUnprocessableEntity
	case err != nil:
		status = http.StatusInternalServerError
	}
	render.Status(r, status)
	render.JSON(w, r, rep)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, logger *zap.Logger, id string, status int, msg string) {
	logger.Warn("upload rejected", zap.Int("status", status), zap.String("reason", msg))
	metrics.RecordUpload(s.runner.Job, false)
	render.Status(r, status)
	render.JSON(w, r, ingest.Failed(id, msg))
}

//go:embed index.html
var indexHTML []byte

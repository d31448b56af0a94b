// Package httpapi exposes the file service over HTTP: upload, deletion by
// secret, download and a liveness check.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/dmitrijs2005/dekinai/internal/logging"
	"github.com/dmitrijs2005/dekinai/internal/server/services"
	"github.com/dmitrijs2005/dekinai/internal/server/storage"
)

// FileService is what the handlers need from services.FileService.
type FileService interface {
	PasswordRequired() bool
	Authorize(ctx context.Context, apiKey string) error
	Upload(ctx context.Context, clientName string, body io.Reader) (*services.UploadResult, error)
	Delete(ctx context.Context, filename, secret string) error
	Open(ctx context.Context, filename string) (*storage.Object, error)
	Ping(ctx context.Context) error
}

type Options struct {
	// MaxUploadSize caps the request body of an upload; 0 disables the cap.
	MaxUploadSize int64
	// LocalPort is appended to "localhost" base URLs.
	LocalPort string
	// ShutdownTimeout bounds graceful shutdown, default 10s.
	ShutdownTimeout time.Duration
}

type Server struct {
	files   FileService
	opts    Options
	logger  logging.Logger
	handler http.Handler
}

func NewServer(files FileService, opts Options, logger logging.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		files:  files,
		opts:   opts,
		logger: logger.With("module", "http_server"),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.With(s.apiKeyAuth).Post("/", s.handleUpload)

	r.Get("/{filename}", s.handleDownload)
	r.Get("/{filename}/{secret}", s.handleDelete)
	r.Delete("/{filename}/{secret}", s.handleDelete)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
	})

	return c.Handler(r)
}

// Serve accepts connections on lis until ctx is cancelled, then shuts down
// gracefully. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...", "address", lis.Addr().String())
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

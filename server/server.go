// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tiksound/domain/pipeline"
	"tiksound/infrastructure/ratelimit"
)

// Pipeline runs extractions and serves their artifacts
type Pipeline interface {
	Extract(ctx context.Context, rawURL string) pipeline.Result
	Download(name string) (*os.File, fs.FileInfo, error)
}

// HealthCheck reports whether external dependencies are usable
type HealthCheck func(ctx context.Context) error

// Timeouts for the underlying http.Server
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Server is the HTTP front end
type Server struct {
	pipeline      Pipeline
	limiter       ratelimit.Limiter
	limitWindow   time.Duration
	publicBaseURL string
	trustProxy    bool
	healthCheck   HealthCheck
	timeouts      Timeouts
	now           func() time.Time
	logger        *zap.Logger
	handler       http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithLimiter enables admission control on the extract endpoint
func WithLimiter(l ratelimit.Limiter, window time.Duration) Option {
	return func(s *Server) {
		s.limiter = l
		s.limitWindow = window
	}
}

// WithPublicBaseURL sets the origin used to build download links
func WithPublicBaseURL(u string) Option {
	return func(s *Server) {
		s.publicBaseURL = strings.TrimRight(u, "/")
	}
}

// WithTrustProxy makes the first X-Forwarded-For hop the client identity
func WithTrustProxy(trust bool) Option {
	return func(s *Server) {
		s.trustProxy = trust
	}
}

// WithHealthCheck sets the probe run for GET /health?deep=1
func WithHealthCheck(fn HealthCheck) Option {
	return func(s *Server) {
		s.healthCheck = fn
	}
}

// WithTimeouts sets the http.Server timeouts
func WithTimeouts(t Timeouts) Option {
	return func(s *Server) {
		s.timeouts = t
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server in front of p
func New(p Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:      p,
		limitWindow:   10 * time.Second,
		publicBaseURL: "http://localhost:3001",
		timeouts: Timeouts{
			Read:  30 * time.Second,
			Write: 10 * time.Minute,
			Idle:  120 * time.Second,
		},
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()

	extract := http.Handler(http.HandlerFunc(s.handleExtract))
	if s.limiter != nil {
		extract = s.rateLimit(extract)
	}

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/extract", extract).Methods(http.MethodPost)
	router.HandleFunc("/download/{filename}", s.handleDownload).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/downloads/{filename}", s.handleDownload).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/{filename:[^/]+\\.mp3}", s.handleDownload).Methods(http.MethodGet, http.MethodHead)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})

	// preflight is answered before route method matching
	return s.cors(s.requestLogger(s.recoverer(router)))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.timeouts.Read,
		WriteTimeout: s.timeouts.Write,
		IdleTimeout:  s.timeouts.Idle,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

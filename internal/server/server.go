package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/structsync/structsync/internal/handler"
	"github.com/structsync/structsync/internal/openapi"
	"github.com/structsync/structsync/internal/server/middleware"
	"github.com/structsync/structsync/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string // "*" only applies with auth enabled
	CORSMethods     []string
	ExportDir       string // server-side export root, empty disables
	RateLimit       int   // requests per minute per client, 0 disables
	MaxBodySize     int64 // bytes
	TLSCertFile     string
	TLSKeyFile      string
	Version         string
}

// DefaultConfig returns a Config for a local, single-user API.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8642,
		ShutdownTimeout: 30 * time.Second,
		CORSMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		RateLimit:       120,
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		Version:         "dev",
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Server is the HTTP front end over the service layer.
type Server struct {
	cfg        Config
	router     chi.Router
	svc        handler.Service
	authSvc    *service.AuthService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server with all routes and middleware mounted.
func New(cfg Config, svc handler.Service, authSvc *service.AuthService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		authSvc: authSvc,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	origins := s.allowedOrigins()
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: s.cfg.CORSMethods,
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
			MaxAge:         300,
		}))
	}
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	r.Use(chimw.Compress(5))

	// --- Unauthenticated endpoints ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	baseURL := "http://" + s.cfg.Addr()
	if s.cfg.TLSCertFile != "" {
		baseURL = "https://" + s.cfg.Addr()
	}
	doc := openapi.Generate(baseURL, s.cfg.Version, s.authSvc.Enabled())
	r.Get("/openapi.json", handler.NewOpenAPIHandler(doc).Serve)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(s.cfg.RateLimit))
		}
		r.Use(middleware.Authenticate(s.authSvc))
		if !s.authSvc.Enabled() {
			// Without tokens a browser on this machine is as trusted as the
			// CLI, so only listed origins may change anything.
			r.Use(middleware.RejectCrossOrigin(origins, s.logger))
		}

		conns := handler.NewConnectionHandler(s.svc)
		sync := handler.NewSyncHandler(s.svc, s.cfg.ExportDir)

		r.Route("/connections", func(r chi.Router) {
			r.Get("/", conns.List)
			r.Post("/", conns.Create)
			r.Post("/test", conns.Test)
			r.Get("/{id}", conns.Get)
			r.Put("/{id}", conns.Update)
			r.Delete("/{id}", conns.Delete)
			r.Get("/{id}/databases", conns.Databases)
		})

		r.Post("/compare", sync.Compare)
		r.Post("/execute", sync.Execute)
		r.Post("/export", sync.Export)
		r.Get("/runs", sync.Runs)
	})

	s.router = r
}

// allowedOrigins returns the CORS origins in effect. Without auth a wildcard
// would let any page drive the API, so it is dropped.
func (s *Server) allowedOrigins() []string {
	if s.authSvc.Enabled() {
		return s.cfg.CORSOrigins
	}
	origins := make([]string, 0, len(s.cfg.CORSOrigins))
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" {
			s.logger.Warn("ignoring CORS origin \"*\" because auth is disabled; set auth.jwt_secret or list origins explicitly")
			continue
		}
		origins = append(origins, o)
	}
	return origins
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. It reports 503 when the profile store
// cannot be read.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := s.svc.ListConnections(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// a SIGINT or SIGTERM is received. It then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Addr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // compares of large schemas are slow
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "auth", s.authSvc.Enabled(), "tls", s.cfg.TLSCertFile != "")
		var err error
		if s.cfg.TLSCertFile != "" {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

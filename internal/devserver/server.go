// Package devserver serves the generated site for local development.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/livereload"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
)

// Endpoint paths besides the live reload ones.
const (
	HealthPath  = "/__sitepipe/health"
	MetricsPath = "/__sitepipe/metrics"
)

// ShutdownTimeout bounds graceful shutdown in Stop.
const ShutdownTimeout = 5 * time.Second

// Server serves the site directory with live reload injection.
type Server struct {
	root       string
	addr       string
	liveReload bool
	hub        *livereload.Hub
	registry   *prom.Registry
	logger     *slog.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// Option customizes a Server.
type Option func(*Server)

// WithRegistry exposes reg at MetricsPath.
func WithRegistry(reg *prom.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a server for cfg's site directory. hub may be nil to disable live reload.
func New(cfg *config.Config, hub *livereload.Hub, opts ...Option) *Server {
	s := &Server{
		root:       cfg.Path(cfg.Site.Dir),
		addr:       net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		liveReload: hub != nil && config.BoolOr(cfg.Server.LiveReload, true),
		hub:        hub,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the router: live reload endpoints, health, metrics and the site.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(noCache)
	r.Use(s.logRequests)

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.registry != nil {
		r.Handle(MetricsPath, metrics.HTTPHandler(s.registry))
	}

	site := http.FileServer(http.Dir(s.root))
	if s.liveReload {
		r.Handle(livereload.EventsPath, s.hub)
		r.Handle(livereload.ScriptPath, livereload.ScriptHandler())
		site = injectLiveReload(site, livereload.ScriptPath)
	}
	r.Handle("/*", site)
	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return ferrors.ServerError("dev server already started").Build()
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "dev server could not listen").
			Fatal().
			WithContext("addr", s.addr).
			Build()
	}
	// No write timeout: live reload streams stay open.
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 120 * time.Second}
	s.srv, s.ln = srv, ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Dev server error", logfields.Error(err))
		}
	}()
	s.logger.Info("Dev server started", logfields.Addr(s.URL()), logfields.Path(s.root))
	return nil
}

// URL returns the base URL of the running server, or "" before Start.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// Running reports whether Start succeeded and Stop has not been called.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Stop closes live reload streams and shuts the server down within ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if s.hub != nil {
		s.hub.Shutdown()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("dev server shutdown: %w", err)
	}
	s.logger.Info("Dev server stopped")
	return nil
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			slog.String("method", r.Method),
			logfields.Path(r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

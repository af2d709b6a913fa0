// Package http serves the dashboard: an HTML page driven by htmx partials,
// a JSON API over the same controller, receipt uploads and XLSX export.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"expensedash/internal/cache"
	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/log"
	"expensedash/internal/receipts"
	appweb "expensedash/web"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

const (
	defaultRequestTimeout = 7 * time.Second
	defaultWriteLimit     = 60
)

// Pinger reports whether the data store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr       string
	Controller *dashboard.Controller
	// Uploader is optional; receipt uploads are disabled without it.
	Uploader       *receipts.Uploader
	Store          Pinger
	Logger         *log.Logger
	RequestTimeout time.Duration
	// WriteLimit caps write requests per client per minute.
	WriteLimit int
	// Cleaners are swept alongside the server's own expiring state.
	Cleaners        []cache.Cleaner
	CleanupInterval time.Duration
}

type Server struct {
	http.Server
	templates  *template.Template
	ctrl       *dashboard.Controller
	uploader   *receipts.Uploader
	store      Pinger
	logger     *log.Logger
	structured *log.StructuredLogger
	limiter    *rateLimiter
	metrics    *securityMetrics
	cleanup    *cache.Manager
	timeout    time.Duration

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires the routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Controller == nil {
		return nil, core.Errorf(core.KindConfiguration, "http.new_server", "controller is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	limit := opts.WriteLimit
	if limit <= 0 {
		limit = defaultWriteLimit
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates:  t,
		ctrl:       opts.Controller,
		uploader:   opts.Uploader,
		store:      opts.Store,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		limiter:    newRateLimiter(limit, time.Minute),
		metrics:    &securityMetrics{},
		cleanup:    cache.NewManager(),
		timeout:    timeout,
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.cleanup.Register(s.limiter)
	for _, c := range opts.Cleaners {
		s.cleanup.Register(c)
	}
	interval := opts.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	s.cleanup.StartCleanup(interval)

	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(requestID))
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.withAccessLog)
	r.Use(s.withSecurity)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		})
	} else {
		slog.Warn("Failed to mount embedded static FS", "component", "http", "error", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.withTimeout)

		r.Get("/", s.handleIndex)
		r.Get("/ui/dashboard", s.handleDashboardPartial)
		r.Post("/expenses", s.handleAddExpenseForm)
		r.Delete("/expenses/{id}", s.handleRemoveExpenseForm)
		r.Post("/refresh", s.handleRefreshForm)
		r.Get("/export.xlsx", s.handleExport)

		r.Route("/api", func(r chi.Router) {
			r.Get("/view", s.handleAPIView)
			r.Get("/stats", s.handleAPIStats)
			r.Post("/expenses", s.handleAPIAddExpense)
			r.Delete("/expenses/{id}", s.handleAPIRemoveExpense)
			r.Post("/refresh", s.handleAPIRefresh)
			if s.uploader != nil {
				r.Post("/receipts", s.handleAPIUploadReceipt)
			}
		})
	})
	return r
}

// requestID prefers the id chi assigned and falls back to a fresh one.
func requestID(r *http.Request) string {
	if id := chiMiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return generateRequestID()
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withSecurity sets security headers, flags probing requests and limits
// write requests per client.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w.Header())
		clientIP := extractClientIP(r)

		if isSuspiciousRequest(r) {
			s.metrics.suspiciousRequests.Add(1)
			slog.WarnContext(r.Context(), "Suspicious request",
				"component", "http",
				"client_ip", clientIP,
				"method", r.Method,
				"path", r.URL.Path)
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.limiter.allow(clientIP) {
			s.metrics.rateLimitHits.Add(1)
			slog.WarnContext(r.Context(), "Rate limit exceeded", "component", "http", "client_ip", clientIP, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.structured.LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds(), extractClientIP(r))
	})
}

// Shutdown stops the cleanup loop and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cleanup.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "component", "http", "error", err)
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

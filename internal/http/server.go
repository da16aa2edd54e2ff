// Package http serves spreadsheet content as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aspire/internal/content"
	"aspire/internal/core"
	applog "aspire/internal/log"
	"aspire/internal/middleware/ratelimit"
	"aspire/internal/middleware/security"
	"aspire/internal/query"
	"aspire/internal/services"
	"aspire/internal/sheets"
)

// DefaultsStore persists per-spreadsheet preferences.
type DefaultsStore interface {
	DataMap(ctx context.Context, spreadsheetID string) (core.DataMap, error)
	SaveDataMap(ctx context.Context, spreadsheetID string, dm core.DataMap) error
	LastSpreadsheet(ctx context.Context) (string, error)
	SetLastSpreadsheet(ctx context.Context, spreadsheetID string) error
}

// Deps are the collaborators of a Server. Content and Submissions are required.
type Deps struct {
	Content     *content.Manager
	Submissions *services.SubmissionService
	Scripts     sheets.ScriptRunner
	// ScriptSpreadsheetID is the spreadsheet Scripts acts on. When set,
	// script routes for any other spreadsheet are refused.
	ScriptSpreadsheetID string
	Defaults            DefaultsStore
	// FallbackDataMap is used for spreadsheets without a stored DataMap.
	FallbackDataMap core.DataMap
	Logger          *applog.Logger
	RequestTimeout  time.Duration
	Now             func() time.Time
}

type Server struct {
	http.Server
	router   *chi.Mux
	deps     Deps
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	filters  *query.Compiler
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		router:   chi.NewRouter(),
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(logger.Logger),
		filters:  query.NewCompiler(0),
		now:      now,
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.setupMiddleware(timeout)
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware(timeout time.Duration) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(applog.Middleware(s.logger))
	s.router.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	s.router.Use(s.requestLogger)
	s.router.Use(s.detector.Middleware)
	s.router.Use(security.Headers(security.DefaultHeadersConfig()))
	s.router.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	}))
	s.router.Use(middleware.Timeout(timeout))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", handleHealth)
	s.router.Get("/readyz", handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/spreadsheets/last", s.handleLastSpreadsheet)

		r.Route("/spreadsheets/{id}", func(r chi.Router) {
			r.Use(s.rememberSpreadsheet)

			r.Get("/version", s.withDataMap(applog.OpResolveVersion, s.handleVersion))
			r.Get("/dashboard", s.withDataMap(applog.OpRead, s.handleDashboard))
			r.Get("/account-balances", s.withDataMap(applog.OpRead, s.handleAccountBalances))
			r.Get("/transactions", s.withDataMap(applog.OpRead, s.handleTransactions))
			r.Get("/categories", s.withDataMap(applog.OpRead, s.handleCategories))
			r.Get("/transaction-metadata", s.withDataMap(applog.OpReadBatch, s.handleTransactionMetadata))
			r.Get("/data-map", s.withDataMap(applog.OpRead, s.handleGetDataMap))
			r.Put("/data-map", s.handlePutDataMap)

			r.Post("/transactions", s.handleSubmitTransaction)
			r.Post("/category-transfers", s.handleSubmitCategoryTransfer)
			r.Post("/rollover", s.handleRollover)
		})
	})
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// requestLogger logs each request with its status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := s.detector.ExtractClientIP(r)
		sl := applog.NewStructuredLogger(applog.FromContext(r.Context()))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		sl.LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds(), clientIP)
	})
}

// rememberSpreadsheet records the spreadsheet as last used. Failures only log.
func (s *Server) rememberSpreadsheet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Defaults != nil {
			id := chi.URLParam(r, "id")
			if err := s.deps.Defaults.SetLastSpreadsheet(r.Context(), id); err != nil {
				applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to record last spreadsheet",
					applog.FieldSpreadsheetID, id,
					applog.FieldError, err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

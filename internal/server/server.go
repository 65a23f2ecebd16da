// Package server provides the HTTP server and routing for Pulse.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/config"
	"github.com/retailpulse/pulse/internal/database"
	"github.com/retailpulse/pulse/internal/events"
	"github.com/retailpulse/pulse/internal/modules/dashboard"
	"github.com/retailpulse/pulse/internal/modules/datasource"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Config      *config.Config
	Port        int
	DevMode     bool
	Dashboard   *dashboard.Service
	Store       datasource.DocumentWriter
	Bus         *events.Bus
	DocumentsDB *database.DB
	ConfigDB    *database.DB
	CacheDB     *database.DB
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	cfg         *config.Config
	dashboard   *dashboard.Service
	store       datasource.DocumentWriter
	bus         *events.Bus
	documentsDB *database.DB
	configDB    *database.DB
	cacheDB     *database.DB
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		cfg:         cfg.Config,
		dashboard:   cfg.Dashboard,
		store:       cfg.Store,
		bus:         cfg.Bus,
		documentsDB: cfg.DocumentsDB,
		configDB:    cfg.ConfigDB,
		cacheDB:     cfg.CacheDB,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	dashboardHandlers := NewDashboardHandlers(s.dashboard, s.log)
	ingestHandlers := NewIngestHandlers(s.store, s.bus, s.log)
	systemHandlers := NewSystemHandlers(s.log, s.cfg.DataDir, map[string]*database.DB{
		"documents": s.documentsDB,
		"config":    s.configDB,
		"cache":     s.cacheDB,
	})

	s.router.Route("/api", func(r chi.Router) {
		// The SSE stream doubles as the consumer presence signal: connecting
		// activates the dashboard lifecycle, disconnecting releases it. The
		// stream holds a connection open indefinitely, so no timeout
		// middleware on this route.
		eventsStreamHandler := NewEventsStreamHandler(s.bus, s.dashboard, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		// Inbound business events from the POS side
		r.Post("/events/sale-completed", ingestHandlers.HandleSaleCompleted)
		r.Post("/events/transaction-posted", ingestHandlers.HandleTransactionPosted)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/", dashboardHandlers.HandleOverview)
			r.Post("/refresh", dashboardHandlers.HandleRefresh)
			r.Get("/cache", dashboardHandlers.HandleCacheStatus)
			r.Post("/cache/invalidate", dashboardHandlers.HandleInvalidate)
			r.Get("/timeframe", dashboardHandlers.HandleGetTimeframe)
			r.Put("/timeframe", dashboardHandlers.HandleSetTimeframe)
			r.Put("/range", dashboardHandlers.HandleSetCustomRange)
		})

		r.Route("/system", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/stats", systemHandlers.HandleSystemStats)
			r.Get("/database/stats", systemHandlers.HandleDatabaseStats)
			r.Get("/disk", systemHandlers.HandleDiskUsage)
		})
	})
}

// handleHealth is the liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

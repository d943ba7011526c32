// Package server provides the HTTP server and routing.
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

	"github.com/aristath/stockdash/internal/cache"
	"github.com/aristath/stockdash/internal/config"
	"github.com/aristath/stockdash/internal/dashboard"
	dashboardhandlers "github.com/aristath/stockdash/internal/dashboard/handlers"
	"github.com/aristath/stockdash/internal/database"
	"github.com/aristath/stockdash/internal/quotes"
	quoteshandlers "github.com/aristath/stockdash/internal/quotes/handlers"
	"github.com/aristath/stockdash/internal/stream"
)

// Config holds server dependencies.
type Config struct {
	Log         zerolog.Logger
	Cfg         *config.Config
	DashboardDB *database.DB
	CacheDB     *database.DB
	Cache       *cache.Manager
	Store       *dashboard.Store
	Quotes      *quotes.Service
	History     quoteshandlers.HistorySource
	Streamer    *stream.Streamer
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server with all routes registered.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !s.cfg.Cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	systemHandlers := NewSystemHandlers(s.cfg.DashboardDB, s.cfg.CacheDB, s.cfg.Cache, s.log)
	s.router.Get("/health", systemHandlers.HandleHealth)

	quoteHandler := quoteshandlers.NewHandler(s.cfg.Quotes, s.cfg.History, s.cfg.Cache, s.log)
	dashboardHandler := dashboardhandlers.NewHandler(s.cfg.Store, s.log)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/quotes/{symbol}", quoteHandler.HandleGetQuote)
		r.Get("/quotes/{symbol}/history", quoteHandler.HandleGetHistory)

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/widgets", dashboardHandler.HandleListWidgets)
			r.Post("/widgets", dashboardHandler.HandleAddWidget)
			r.Delete("/widgets", dashboardHandler.HandleClearWidgets)
			r.Post("/widgets/reorder", dashboardHandler.HandleReorderWidgets)
			r.Put("/widgets/{id}", dashboardHandler.HandleUpdateWidget)
			r.Delete("/widgets/{id}", dashboardHandler.HandleRemoveWidget)

			r.Get("/export", dashboardHandler.HandleExport)
			r.Post("/import", dashboardHandler.HandleImport)

			r.Get("/templates", dashboardHandler.HandleListTemplates)
			r.Post("/templates", dashboardHandler.HandleSaveTemplate)
			r.Post("/templates/{id}/load", dashboardHandler.HandleLoadTemplate)
			r.Delete("/templates/{id}", dashboardHandler.HandleRemoveTemplate)

			r.Put("/drag", dashboardHandler.HandleSetDragEnabled)
		})

		r.Get("/system/status", systemHandlers.HandleStatus)
		r.Post("/cache/clear", systemHandlers.HandleClearCache)

		if s.cfg.Streamer != nil {
			r.Get("/stream", s.cfg.Streamer.HandleStream)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

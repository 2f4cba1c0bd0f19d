package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/leaselens/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/leaselens/internal/api/middlewares"
	"github.com/markdave123-py/leaselens/internal/config"
	"github.com/markdave123-py/leaselens/internal/services"
)

// Services groups the application services the handlers depend on.
type Services struct {
	Users    *services.UserService
	Scans    *services.ScanService
	Payments *services.PaymentService
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.SugaredLogger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, analyzer handlers.Analyzer, svc Services, log *zap.SugaredLogger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(cfg, analyzer, svc, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// NewRouter returns the API route tree.
func NewRouter(cfg *config.Config, analyzer handlers.Analyzer, svc Services, log *zap.SugaredLogger) http.Handler {
	scanHandler := handlers.NewScanHandler(analyzer, svc.Scans, cfg.AnalysisTimeout, log)
	userHandler := handlers.NewUserHandler(svc.Users, log)
	webhookHandler := handlers.NewWebhookHandler(svc.Payments, cfg.GumroadSellerID, cfg.RevenueCatSecret, log)
	healthHandler := handlers.NewHealthHandler(Version)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", healthHandler.Root)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", healthHandler.Health)

		// public endpoints, authenticated by the payment stores' shared secrets
		api.Route("/webhooks", func(wh chi.Router) {
			wh.Post("/gumroad", webhookHandler.Gumroad)
			wh.Post("/revenuecat", webhookHandler.RevenueCat)
			wh.Post("/webhook", webhookHandler.RevenueCat)
		})

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			// the scan stream outlives any fixed request timeout
			protected.Post("/scans/scan", scanHandler.Scan)

			protected.Group(func(short chi.Router) {
				short.Use(middleware.Timeout(60 * time.Second))
				short.Get("/scans", scanHandler.List)
				short.Get("/scans/{id}", scanHandler.Get)
				short.Get("/user", userHandler.Get)
				short.Patch("/user/city", userHandler.UpdateCity)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

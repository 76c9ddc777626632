package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gameday-ticketing/internal/analytics"
	analytics_api "gameday-ticketing/internal/analytics/api"
	"gameday-ticketing/internal/app"
	"gameday-ticketing/internal/auth"
	"gameday-ticketing/internal/config"
	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/metrics"
	"gameday-ticketing/internal/order/order_api"
	"gameday-ticketing/internal/sse"
	"gameday-ticketing/internal/tickets/ticket_api"
	"gameday-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Dir, "ticketing", cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	log.Info("APP", "Starting ticketing service initialization")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("APP", err.Error())
	}
	defer a.Close()

	scanEvents := sse.NewScanEventEmitter()
	ticketService := a.TicketService(scanEvents)
	configService := a.ConfigService()
	orderService, err := a.OrderService(ticketService)
	if err != nil {
		log.Fatal("APP", fmt.Sprintf("Failed to build order service: %v", err))
	}
	analyticsService := analytics.NewService(a.DB, cfg.Ticketing.Location())

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to initialize OIDC verifier: %v", err))
	}

	orderHandler := order_api.NewHandler(orderService, cfg.Stripe.WebhookSecret, log)
	ticketHandler := ticket_api.NewHandler(ticketService, configService, scanEvents, log)
	analyticsHandler := analytics_api.NewHandler(analyticsService, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.DB.PingContext(r.Context()); err != nil {
			utils.WriteError(w, http.StatusServiceUnavailable, "database unavailable", "")
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "ok", nil)
	})
	r.Handle("/metrics", metrics.Handler())
	r.Post("/webhooks/stripe", orderHandler.StripeWebhook)

	r.Route("/api/ticketing", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalMiddleware(verifier, log))
			orderHandler.PublicRoutes(r)
			ticketHandler.PublicRoutes(r)
		})
		log.Info("ROUTER", "Public order and ticket routes registered under /api/ticketing")

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, log))
			orderHandler.OrganizerRoutes(r)
			ticketHandler.OrganizerRoutes(r)
			analyticsHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				if cfg.Auth.RequireGateScanner {
					r.Use(auth.RequireRole(auth.GateScannerRole, log))
				}
				ticketHandler.ScannerRoutes(r)
			})
		})
		log.Info("ROUTER", "Protected organizer and gate routes registered under /api/ticketing")
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		orderService.RunSweeper(ctx, cfg.Ticketing.SweepInterval)
	}()

	if cfg.Kafka.Enabled && orderService.Notifier != nil {
		worker, consumer := a.DeliveryWorker(orderService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer consumer.Close()
			if err := worker.Run(ctx, consumer, cfg.Kafka.Topics.OrderCompleted); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("KAFKA", fmt.Sprintf("Delivery worker stopped: %v", err))
			}
		}()
	}

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Ticketing service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	wg.Wait()
	log.Info("APP", "Ticketing service shutdown complete")
}

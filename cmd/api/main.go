// Package main is the entry point for the agent dashboard API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/db"
	"github.com/afiliado-ai/agent-dashboard/internal/botctl"
	"github.com/afiliado-ai/agent-dashboard/internal/config"
	"github.com/afiliado-ai/agent-dashboard/internal/handler"
	"github.com/afiliado-ai/agent-dashboard/internal/instance"
	"github.com/afiliado-ai/agent-dashboard/internal/knowledge"
	"github.com/afiliado-ai/agent-dashboard/internal/middleware"
	natsclient "github.com/afiliado-ai/agent-dashboard/internal/nats"
	"github.com/afiliado-ai/agent-dashboard/internal/pause"
	"github.com/afiliado-ai/agent-dashboard/internal/realtime"
	"github.com/afiliado-ai/agent-dashboard/internal/session"
	"github.com/afiliado-ai/agent-dashboard/internal/store"
	"github.com/afiliado-ai/agent-dashboard/internal/tenant"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
	"github.com/afiliado-ai/agent-dashboard/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agent-dashboard", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Run database migrations
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Error("failed to run migrations", zap.Error(err))
		os.Exit(1)
	}

	// Connect to Postgres
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		// Realtime degrades to manual refetch without NATS.
		log.Warn("failed to connect to NATS; realtime disabled", zap.Error(err))
	}
	if natsClient != nil {
		defer natsClient.Close()
	}

	// Stores and resolution
	profiles := store.NewProfileStore(pool)
	leads := store.NewLeadStore(pool, log)
	resolver := tenant.NewResolver(profiles, log)

	// External automation clients
	bot := botctl.NewClient(cfg.BotWebhookBase, cfg.WebhookTimeout)
	instances := instance.NewClient(cfg.BotWebhookBase, cfg.EvolutionAPIBase, cfg.EvolutionAPIKey, cfg.WebhookTimeout, log)
	storage := knowledge.NewHTTPProvider(cfg.StorageAPIBase, cfg.StorageAPIKey, cfg.WebhookTimeout)

	// Sessions and background work
	feed := realtime.NewFeed(natsClient, log)
	sessions := session.NewManager(resolver, profiles, leads, feed, bot, cfg.RealtimeDebounce, log)
	defer sessions.Close()

	sweeper := pause.NewSweeper(sessions, cfg.SweepInterval, log)
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient, pool)
	profileHandler := handler.NewProfileHandler(profiles, resolver, log)
	conversationHandler := handler.NewConversationHandler(sessions, bot, log)
	leadHandler := handler.NewLeadHandler(sessions, leads, log)
	instanceHandler := handler.NewInstanceHandler(instances, profiles, resolver, log)
	knowledgeHandler := handler.NewKnowledgeHandler(sessions, storage, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/profile", profileHandler.Get)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Get("/stream", conversationHandler.Stream)

			r.Route("/{remotejid}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Post("/pause", conversationHandler.Pause)
				r.Post("/resume", conversationHandler.Resume)
				r.Post("/messages", conversationHandler.SendMessage)
			})
		})

		r.Get("/leads", leadHandler.List)
		r.Get("/metrics/summary", leadHandler.MetricsSummary)

		r.Route("/instance", func(r chi.Router) {
			r.Post("/", instanceHandler.Create)
			r.Post("/confirm", instanceHandler.Confirm)
			r.Post("/code", instanceHandler.RefreshCode)
			r.Delete("/", instanceHandler.Delete)
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", knowledgeHandler.List)
			r.Post("/{filename}", knowledgeHandler.Upload)
			r.Delete("/{filename}", knowledgeHandler.Delete)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

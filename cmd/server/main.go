// Helpdesk - automated first-line IT support assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/helpdesk/internal/ai"
	"github.com/ashureev/helpdesk/internal/api"
	"github.com/ashureev/helpdesk/internal/config"
	"github.com/ashureev/helpdesk/internal/conversation"
	"github.com/ashureev/helpdesk/internal/middleware"
	"github.com/ashureev/helpdesk/internal/store"
	"github.com/ashureev/helpdesk/internal/ticket"
	"github.com/ashureev/helpdesk/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Gateways never fail a turn, but an unconfigured credential means every
	// call will degrade into fallback text. Say so at startup.
	if cfg.AI.APIKey == "" {
		slog.Warn("AI_API_KEY not set, completions will return fallback replies")
	}
	if cfg.ServiceNow.InstanceURL == "" {
		slog.Warn("SERVICENOW_URL not set, ticket creation will return failure sentinels")
	}

	completer := ai.NewClient(ai.ClientConfig{
		APIURL:  cfg.AI.APIURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})

	tickets := ticket.NewServiceNowClient(ticket.ClientConfig{
		InstanceURL: cfg.ServiceNow.InstanceURL,
		Username:    cfg.ServiceNow.Username,
		Password:    cfg.ServiceNow.Password,
		Category:    cfg.ServiceNow.Category,
		Timeout:     cfg.ServiceNow.Timeout,
	})

	convLog, err := conversation.NewLogger(conversation.LogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	})
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	engine := conversation.NewEngine(repo, completer, tickets, convLog)

	var limiter *api.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	}

	// Initialize handlers.
	askHandler := api.NewHandler(engine, limiter, cfg.MaxRequestBodySize)
	wsHandler := api.NewChatSocketHandler(engine, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))

	askHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // completions can take a while; the gateway timeout bounds them
		IdleTimeout:  120 * time.Second,
	}

	// Start session TTL worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartTTLWorker(ctx, repo, cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

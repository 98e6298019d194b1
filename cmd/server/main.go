// PilhIA - Electrochemistry Chatbot Server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/pilhia/pilhia/internal/api"
	"github.com/pilhia/pilhia/internal/chatws"
	"github.com/pilhia/pilhia/internal/completion"
	"github.com/pilhia/pilhia/internal/config"
	"github.com/pilhia/pilhia/internal/dialogue"
	"github.com/pilhia/pilhia/internal/knowledge"
	"github.com/pilhia/pilhia/internal/middleware"
	"github.com/pilhia/pilhia/internal/potentials"
	"github.com/pilhia/pilhia/internal/session"
	"github.com/pilhia/pilhia/internal/transcript"
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

	// Load the read-only knowledge inputs. Missing files degrade, never crash.
	bank := knowledge.Load(cfg.DataDir)
	table := potentials.Load(cfg.DataDir)

	llm := completion.New(completion.Config{
		APIKeys: cfg.APIKeys,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.CompletionTimeout,
	}, logger)
	if !llm.Available() {
		slog.Warn("No completion API keys configured, general queries will be degraded")
	}

	store := session.NewStore(cfg.MaxChats, cfg.EvictionBatch, cfg.HistorySize)
	engine := dialogue.New(bank, table, llm, bank, dialogue.DefaultLimits())

	transcripts, err := transcript.NewLogger(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcripts.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	limiter := api.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer limiter.Close()

	// Initialize handlers.
	chatHandler := api.NewChatHandler(store, engine, limiter, transcripts)
	healthHandler := api.NewHealthHandler(store, bank, table, llm)

	allowedOrigin := "*"
	if len(cfg.AllowedOrigins) > 0 {
		allowedOrigin = cfg.AllowedOrigins[0]
	}
	wsHandler := chatws.NewHandler(store, engine, transcripts, allowedOrigin, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the session sweep worker.
	store.StartSweep(ctx, time.Minute, cfg.SessionTTL)
	slog.Info("Session sweep worker started", "session_ttl", cfg.SessionTTL)

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

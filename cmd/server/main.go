package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"chatrelay/internal/auth"
	"chatrelay/internal/capabilities"
	"chatrelay/internal/config"
	"chatrelay/internal/handler"
	"chatrelay/internal/middleware"
	"chatrelay/internal/provider/openai"
	"chatrelay/internal/repository/postgres"
	"chatrelay/internal/service/chat"
	"chatrelay/internal/service/streaming"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"model", cfg.Model,
	)

	// Create pgx connection pool and make sure the schema exists
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Logger: logger,
	}
	userRepo := postgres.NewUserRepository(repoConfig)
	convRepo := postgres.NewConversationRepository(repoConfig)
	msgRepo := postgres.NewMessageRepository(repoConfig)

	// Initialize capability registry and validate the configured model
	capabilityRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}
	if _, err := capabilityRegistry.Lookup(cfg.Model); err != nil {
		log.Fatalf("Unsupported model: %v", err)
	}

	// Completion provider
	provider := openai.NewClient(openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, capabilityRegistry, logger)

	// Streaming session pool and chat orchestrator
	streamPool := streaming.NewPool(int64(cfg.StreamWorkers), logger)
	chatService := chat.NewService(convRepo, msgRepo, provider, streamPool, cfg.StreamIdleTimeout, logger)

	// Handlers
	chatHandler := handler.NewChatHandler(chatService, logger)
	convHandler := handler.NewConversationHandler(chatService, logger)
	healthHandler := handler.NewHealthHandler(pool.Ping)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", healthHandler.Check)

	// Chat routes
	mux.HandleFunc("POST /api/chat", chatHandler.SendMessage)
	mux.HandleFunc("POST /api/chat/stream", chatHandler.StreamMessage)

	// Conversation routes
	mux.HandleFunc("GET /api/conversations", convHandler.List)
	mux.HandleFunc("GET /api/conversations/{id}", convHandler.Get)
	mux.HandleFunc("DELETE /api/conversations/{id}", convHandler.Delete)

	// Build middleware chain
	authenticator := middleware.NewAuthenticator(userRepo, auth.NewHasher(cfg.APIKeyPepper), logger)
	rateLimiter := middleware.NewRateLimiter()

	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS -> Logging -> Recovery -> Auth -> Rate limit -> Routes
	root = rateLimiter.Middleware(root)
	root = authenticator.Middleware(root)
	root = middleware.Recovery(logger)(root)
	root = middleware.RequestLogger(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-API-Key", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	// Serve until interrupted, then drain in-flight streams
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}

		streamPool.Drain(cfg.ShutdownGrace)
		logger.Info("shutdown complete")
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/chat-gateway/internal/config"
	"github.com/lexiqai/chat-gateway/internal/conversation"
	"github.com/lexiqai/chat-gateway/internal/observability"
	"github.com/lexiqai/chat-gateway/internal/relay"
	"github.com/lexiqai/chat-gateway/internal/upstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("project_endpoint", cfg.ProjectEndpoint).
		Str("conversation_store", cfg.ConversationStore).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Chat Gateway Service starting")

	tokens, err := upstream.NewTokenSource(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure upstream credentials")
	}

	store, err := conversation.NewStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure conversation store")
	}

	client := upstream.NewClient(cfg, tokens)
	rl := relay.New(client, store)

	// Create HTTP server
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat", relay.HandleChat(rl))
	mux.HandleFunc("/api/continue", relay.HandleContinue(rl))
	mux.HandleFunc("/ws/chat", relay.HandleChatWS(rl, cfg.Origins()))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint - probe the pieces a turn actually depends on
	checks := map[string]observability.HealthCheckFunc{
		"credentials": func(ctx context.Context) (bool, error) {
			if _, err := tokens.Token(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
	}
	if rs, ok := store.(*conversation.RedisStore); ok {
		checks["redis"] = func(ctx context.Context) (bool, error) {
			if err := rs.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// WriteTimeout stays zero: a streamed turn legitimately outlives any
	// fixed response deadline; the upstream client carries its own timeout.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     corsMiddleware(cfg.Origins(), mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// corsMiddleware allows the configured browser origins to call the API.
// An empty allow list means same-origin deployments only.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

/*
Package main is the entry point for the Chat Relay Server.

It is responsible for loading configuration, initializing the global logging system,
constructing the shared resources (database pool, presence store, generation bridge
and worker pool, hub), setting up the HTTP server, and gracefully handling operating
system interrupt signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/genai"
	"chatrelay/internal/app/presence"
	"chatrelay/internal/app/store"
	"chatrelay/internal/configs"
	"chatrelay/internal/handler"
	"chatrelay/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("high_water_mark", cfg.HighWaterMark).
		Int("low_water_mark", cfg.LowWaterMark).
		Int("generation_workers", cfg.GenerationWorkers).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the database pool and the message record repository
	pool, err := store.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database pool")
	}
	defer pool.Close()

	messages := store.NewMessages(pool)

	// Initialize the presence store: Redis when configured, in-process otherwise
	var presenceStore chat.PresenceStore
	if cfg.RedisAddr != "" {
		redisStore, err := presence.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis presence store")
		}
		defer redisStore.Close()

		presenceStore = redisStore
		logx.Info("Using Redis presence store", "addr", cfg.RedisAddr)
	} else {
		presenceStore = presence.NewMemory()
		logx.Warn("REDIS_ADDR not set. Using in-process presence store; counts are not shared across server processes.")
	}

	// Initialize the generation bridge and its worker pool
	bridge := genai.NewBridge(genai.BridgeConfig{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
	})
	generationPool := genai.NewPool(bridge, cfg.GenerationWorkers)

	// Initialize the Hub
	hub := chat.NewHub()

	deps := &handler.AppDeps{
		Hub:    hub,
		Config: cfg,
		Services: chat.Services{
			Presence:   presenceStore,
			Messages:   messages,
			Generation: generationPool,
		},
		Messages: messages,
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Chat Relay Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()
	generationPool.Shutdown()

	logx.Info("Server gracefully stopped.")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"typeduet/internal/api"
	"typeduet/internal/config"
	"typeduet/internal/db"
	"typeduet/internal/deepl"
	"typeduet/internal/repository"
	"typeduet/internal/services/collaboration"
	"typeduet/internal/services/engine"
	"typeduet/internal/telemetry"
)

func main() {
	log.Println("🚀 Starting typeduet server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing first so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("typeduet", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Initialize GORM database
	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Initialize room repository and drop connection state from a prior run
	roomRepo := repository.NewRoomRepository(database.DB)
	reset, err := roomRepo.ResetAllMembershipAndBuffers(context.Background())
	if err != nil {
		log.Fatalf("❌ Failed to reset stale room state: %v", err)
	}
	log.Printf("✓ Cleared stale membership on %d rooms", reset)

	// Initialize DeepL translator client
	translator := deepl.NewClient(cfg.DeepLAuthKey, cfg.DeepLAPIURL)
	if translator.Configured() {
		log.Println("✓ DeepL client initialized")
	} else {
		log.Println("⚠️  DEEPL_AUTH_KEY not set; translated rooms are disabled")
	}

	// Hot cache, broadcast hub and the session synchronization engine
	cache := engine.NewRoomCache()
	hub := collaboration.NewHub()
	pipeline := engine.NewPipeline(roomRepo, cache, hub, translator)
	synchronizer := engine.NewSynchronizer(roomRepo, cache, hub, translator, pipeline)
	directory := engine.NewDirectory(roomRepo, cache)

	// Websocket event surface
	events := collaboration.NewEventHandler(hub, synchronizer, directory)
	wsHandler := collaboration.NewWebSocketHandler(hub, events)

	// REST + static surface
	handler := api.NewHandler(directory)
	router := api.SetupRoutes(handler, wsHandler, cfg.StaticDir)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("   GET  /api/rooms   - lobby directory")
		log.Printf("   GET  /api/health  - health check")
		log.Printf("   WS   /ws          - room events")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Close all websocket connections
	hub.Shutdown()

	log.Println("✓ Server shutdown complete")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beizuri/posedge/internal/config"
	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/handlers"
	"github.com/beizuri/posedge/internal/models"
	"github.com/beizuri/posedge/internal/server"
	"github.com/beizuri/posedge/internal/sync"
	"github.com/beizuri/posedge/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Brand{},
		&models.Product{},
		&models.Barcode{},
		&models.Sale{},
		&models.SaleItem{},
		&models.Return{},
		&models.ReturnItem{},
		&models.SyncLog{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Websocket hub for the operator UI
	hub := websocket.NewHub()
	go hub.Run()

	// 5. Sync engine: transport client, ledger, orchestrator, scheduler
	apiClient := server.NewClient(cfg.Sync)
	ledger := sync.NewLedger(db)
	orchestrator := sync.NewOrchestrator(db, apiClient, ledger, hub)
	scheduler := sync.NewScheduler(orchestrator, cfg.Sync)
	scheduler.Start()

	// 6. Set up HTTP router
	router := handlers.NewRouter(db, cfg, hub)
	syncHandler := handlers.NewSyncHandler(db, scheduler, ledger, apiClient)
	syncHandler.RegisterRoutes(router.Protected())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Terminal daemon starting on port %s (store %s)\n", cfg.Port, cfg.Sync.StoreID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop the background sync loop
	scheduler.Stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

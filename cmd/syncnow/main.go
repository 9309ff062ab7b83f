package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/beizuri/posedge/internal/config"
	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/models"
	"github.com/beizuri/posedge/internal/server"
	"github.com/beizuri/posedge/internal/sync"
)

// syncnow runs one full sync cycle against the central server and exits
// non-zero if the cycle did not complete cleanly. Useful from cron or a
// terminal while the daemon is stopped.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Sync.Enabled {
		log.Fatal("Sync is disabled (set SERVER_API_URL and ENABLE_SYNC)")
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	err = db.AutoMigrate(
		&models.User{}, &models.Category{}, &models.Brand{}, &models.Product{},
		&models.Barcode{}, &models.Sale{}, &models.SaleItem{},
		&models.Return{}, &models.ReturnItem{}, &models.SyncLog{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	apiClient := server.NewClient(cfg.Sync)
	ledger := sync.NewLedger(db)
	orchestrator := sync.NewOrchestrator(db, apiClient, ledger, nil)

	if !orchestrator.Bootstrap() {
		log.Println("❌ Initial sync did not complete")
		os.Exit(1)
	}

	result := orchestrator.FullSync()
	if !result.Online {
		log.Println("📴 Server unreachable, nothing synced")
		os.Exit(1)
	}

	fmt.Printf("Cycle %s finished in %s\n", result.CycleID, result.CompletedAt.Sub(result.StartedAt).Round(10*time.Millisecond))
	for step, ok := range result.Steps {
		mark := "✅"
		if !ok {
			mark = "❌"
		}
		fmt.Printf("  %s %s\n", mark, step)
	}

	if !result.Success() {
		os.Exit(1)
	}
}

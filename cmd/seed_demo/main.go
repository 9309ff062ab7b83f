package main

import (
	"fmt"
	"log"
	"time"

	"github.com/beizuri/posedge/internal/config"
	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/models"
	"github.com/beizuri/posedge/internal/utils"
)

func main() {
	fmt.Println("🌱 Posedge Demo Data Seeder")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.User{}, &models.Category{}, &models.Brand{}, &models.Product{},
		&models.Barcode{}, &models.Sale{}, &models.SaleItem{},
		&models.Return{}, &models.ReturnItem{}, &models.SyncLog{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	// Check if data already exists
	var productCount int64
	db.Model(&models.Product{}).Count(&productCount)
	if productCount > 0 {
		fmt.Printf("⚠️  Database already has %d products. Clear it first? (y/N): ", productCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		// Clear existing data
		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE return_items CASCADE")
		db.Exec("TRUNCATE TABLE returns CASCADE")
		db.Exec("TRUNCATE TABLE sale_items CASCADE")
		db.Exec("TRUNCATE TABLE sales CASCADE")
		db.Exec("TRUNCATE TABLE barcodes CASCADE")
		db.Exec("TRUNCATE TABLE products CASCADE")
		db.Exec("TRUNCATE TABLE brands CASCADE")
		db.Exec("TRUNCATE TABLE categories CASCADE")
		db.Exec("TRUNCATE TABLE users CASCADE")
		db.Exec("TRUNCATE TABLE sync_logs CASCADE")
		fmt.Println("✅ Data cleared")
	}

	fmt.Println()
	fmt.Println("📦 Creating demo data...")
	fmt.Println()

	// 1. Create staff
	fmt.Println("👤 Creating staff accounts...")
	password, err := utils.HashPassword("changeme123")
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}
	users := []models.User{
		{Username: "admin", FirstName: "Demo", LastName: "Admin", Role: models.RoleAdmin, Password: password, IsActive: true, IsStaff: true, IsSuperuser: true},
		{Username: "cashier1", FirstName: "Amina", LastName: "Yusuf", Role: models.RoleCashier, Password: password, IsActive: true, IsStaff: true},
	}
	for i := range users {
		if err := db.Create(&users[i]).Error; err != nil {
			log.Printf("⚠️  Failed to create user %s: %v", users[i].Username, err)
		} else {
			fmt.Printf("   ✓ Created user: %s (%s)\n", users[i].Username, users[i].Role)
		}
	}
	fmt.Printf("✅ Created %d users, password: changeme123\n\n", len(users))

	// 2. Create catalog
	fmt.Println("🏷️  Creating catalog...")
	category := models.Category{Name: "Beverages", IsActive: true}
	if err := db.Create(&category).Error; err != nil {
		log.Fatalf("❌ Failed to create category: %v", err)
	}
	brand := models.Brand{Name: "Fanta", IsActive: true}
	if err := db.Create(&brand).Error; err != nil {
		log.Fatalf("❌ Failed to create brand: %v", err)
	}

	products := []models.Product{
		{Name: "Fanta Orange 500ml", CategoryID: &category.ID, BrandID: &brand.ID, CostPrice: 0.80, SellingPrice: 1.50, SpecialPrice: 1.20, Quantity: 48, LowStockThreshold: 12, IsActive: true},
		{Name: "Fanta Lemon 500ml", CategoryID: &category.ID, BrandID: &brand.ID, CostPrice: 0.80, SellingPrice: 1.50, SpecialPrice: 1.20, Quantity: 36, LowStockThreshold: 12, IsActive: true},
		{Name: "Drinking Water 1.5L", CategoryID: &category.ID, CostPrice: 0.30, SellingPrice: 0.80, SpecialPrice: 0.60, Quantity: 120, LowStockThreshold: 24, IsActive: true},
	}
	for i := range products {
		if err := db.Create(&products[i]).Error; err != nil {
			log.Printf("⚠️  Failed to create product %s: %v", products[i].Name, err)
			continue
		}
		code := models.Barcode{Barcode: utils.GenerateEAN13(products[i].ID), ProductID: products[i].ID, IsActive: true}
		if err := db.Create(&code).Error; err != nil {
			log.Printf("⚠️  Failed to create barcode for %s: %v", products[i].Name, err)
		}
		fmt.Printf("   ✓ Created product: [%s] %s (barcode %s)\n", products[i].SKU, products[i].Name, code.Barcode)
	}
	fmt.Printf("✅ Created %d products\n\n", len(products))

	// 3. Create an offline sale waiting in the push outbox
	fmt.Println("🧾 Creating a completed offline sale...")
	sale := models.Sale{
		CashierID:     users[1].ID,
		SaleType:      models.SaleTypeRetail,
		PaymentMethod: "cash",
		Items: []models.SaleItem{
			{ProductID: products[0].ID, Quantity: 2, UnitPrice: products[0].SellingPrice},
			{ProductID: products[2].ID, Quantity: 1, UnitPrice: products[2].SellingPrice},
		},
	}
	if err := db.Create(&sale).Error; err != nil {
		log.Fatalf("❌ Failed to create sale: %v", err)
	}
	sale.Complete(time.Now().UTC())
	if err := db.Save(&sale).Error; err != nil {
		log.Fatalf("❌ Failed to complete sale: %v", err)
	}
	fmt.Printf("   ✓ Created sale %s, total %.2f\n", sale.SaleNumber, sale.FinalAmount)

	fmt.Println()
	fmt.Println("🎉 Demo data created successfully!")
	fmt.Println()
	fmt.Println("📊 Summary:")
	fmt.Printf("   • %d staff accounts\n", len(users))
	fmt.Printf("   • %d products with store barcodes\n", len(products))
	fmt.Printf("   • 1 completed sale in the push outbox\n")
	fmt.Println()
	fmt.Println("🚀 Start the daemon:")
	fmt.Println("   go run ./cmd/posd")
	fmt.Println()
	fmt.Println("🔄 Or run a one-shot sync cycle:")
	fmt.Println("   go run ./cmd/syncnow")
}

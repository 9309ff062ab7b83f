package models

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:modelstest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	err = db.AutoMigrate(
		&User{}, &Category{}, &Brand{}, &Product{}, &Barcode{},
		&Sale{}, &SaleItem{}, &Return{}, &ReturnItem{}, &SyncLog{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createCashier(t *testing.T, db *gorm.DB) *User {
	t.Helper()
	user := User{Username: "cashier1", Role: RoleCashier, Password: "x", IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("cannot create cashier: %v", err)
	}
	return &user
}

func TestSaleNumberSequence(t *testing.T) {
	db := newTestDB(t)
	cashier := createCashier(t, db)

	today := time.Now().Format("20060102")
	var numbers []string
	for i := 0; i < 3; i++ {
		sale := Sale{CashierID: cashier.ID}
		if err := db.Create(&sale).Error; err != nil {
			t.Fatalf("cannot create sale: %v", err)
		}
		numbers = append(numbers, sale.SaleNumber)
	}

	for i, number := range numbers {
		want := fmt.Sprintf("SALE-%s-%04d", today, i+1)
		if number != want {
			t.Errorf("sale %d numbered %q, want %q", i, number, want)
		}
	}
}

func TestSaleNumberNotOverwritten(t *testing.T) {
	db := newTestDB(t)
	cashier := createCashier(t, db)

	sale := Sale{CashierID: cashier.ID, SaleNumber: "SALE-20260101-0042"}
	if err := db.Create(&sale).Error; err != nil {
		t.Fatalf("cannot create sale: %v", err)
	}
	if sale.SaleNumber != "SALE-20260101-0042" {
		t.Errorf("preset sale number overwritten: %q", sale.SaleNumber)
	}
}

func TestReturnNumberSequence(t *testing.T) {
	db := newTestDB(t)
	cashier := createCashier(t, db)

	sale := Sale{CashierID: cashier.ID}
	if err := db.Create(&sale).Error; err != nil {
		t.Fatal(err)
	}

	today := time.Now().Format("20060102")
	ret := Return{SaleID: sale.ID, CashierID: cashier.ID}
	if err := db.Create(&ret).Error; err != nil {
		t.Fatalf("cannot create return: %v", err)
	}
	if want := fmt.Sprintf("RETURN-%s-0001", today); ret.ReturnNumber != want {
		t.Errorf("return numbered %q, want %q", ret.ReturnNumber, want)
	}
}

func TestSaleCompleteTotalsItems(t *testing.T) {
	now := time.Now().UTC()
	sale := Sale{
		DiscountAmount: 0.50,
		Items: []SaleItem{
			{TotalAmount: 3.00},
			{TotalAmount: 1.50},
		},
	}

	sale.Complete(now)
	if sale.CompletedAt == nil || !sale.CompletedAt.Equal(now) {
		t.Fatal("completion time not stamped")
	}
	if sale.TotalAmount != 4.50 {
		t.Errorf("total = %v, want 4.50", sale.TotalAmount)
	}
	if sale.FinalAmount != 4.00 {
		t.Errorf("final = %v, want 4.00", sale.FinalAmount)
	}

	// Completing twice must not move the timestamp
	later := now.Add(time.Minute)
	sale.Complete(later)
	if !sale.CompletedAt.Equal(now) {
		t.Error("second Complete moved the timestamp")
	}
}

func TestProductSell(t *testing.T) {
	p := Product{Name: "Fanta Orange 500ml", Quantity: 5}

	if err := p.Sell(3); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if p.Quantity != 2 || p.SoldCount != 3 {
		t.Errorf("after sale: quantity=%d sold=%d", p.Quantity, p.SoldCount)
	}

	if err := p.Sell(3); err == nil {
		t.Error("overselling did not fail")
	}
	if p.Quantity != 2 {
		t.Errorf("failed sale changed stock: %d", p.Quantity)
	}
}

func TestProductGeneratesSKUAndSlug(t *testing.T) {
	db := newTestDB(t)

	p := Product{Name: "Fanta Orange 500ml", SellingPrice: 1.50}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("cannot create product: %v", err)
	}

	if len(p.SKU) != 5 || p.SKU[:3] != "FAN" {
		t.Errorf("unexpected SKU %q", p.SKU)
	}
	if p.Slug != "fanta-orange-500ml" {
		t.Errorf("unexpected slug %q", p.Slug)
	}

	// Same name gets a suffixed slug, never a collision
	p2 := Product{Name: "Fanta Orange 500ml", SellingPrice: 1.50}
	if err := db.Create(&p2).Error; err != nil {
		t.Fatalf("cannot create second product: %v", err)
	}
	if p2.Slug != "fanta-orange-500ml-1" {
		t.Errorf("duplicate name slug = %q", p2.Slug)
	}
	if p2.SKU == p.SKU {
		t.Errorf("duplicate SKU generated: %q", p2.SKU)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Fanta Orange 500ml":  "fanta-orange-500ml",
		"  Crème / Brûlée!  ": "cr-me-br-l-e",
		"ABC":                 "abc",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSaleItemTotalComputed(t *testing.T) {
	db := newTestDB(t)
	cashier := createCashier(t, db)
	product := Product{Name: "Soap", SellingPrice: 2.00, Quantity: 10}
	if err := db.Create(&product).Error; err != nil {
		t.Fatal(err)
	}

	sale := Sale{
		CashierID: cashier.ID,
		Items: []SaleItem{
			{ProductID: product.ID, Quantity: 3, UnitPrice: 2.00, DiscountAmount: 1.00},
		},
	}
	if err := db.Create(&sale).Error; err != nil {
		t.Fatal(err)
	}
	if got := sale.Items[0].TotalAmount; got != 5.00 {
		t.Errorf("line total = %v, want 5.00", got)
	}
}

package sync

import (
	"testing"
	"time"

	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/models"
	"github.com/beizuri/posedge/internal/server"
	"github.com/beizuri/posedge/internal/utils"
	"gorm.io/gorm"
)

func testSnapshot() *server.CatalogSnapshot {
	return &server.CatalogSnapshot{
		Users: []server.UserRecord{
			{ID: 10, Username: "admin", Role: models.RoleAdmin, IsActive: true, IsStaff: true, IsSuperuser: true},
			{ID: 11, Username: "cashier1", Role: models.RoleCashier, IsActive: true},
		},
		Categories: []server.CategoryRecord{
			{ID: 1, Name: "Beverages", IsActive: true},
		},
		Brands: []server.BrandRecord{
			{ID: 2, Name: "Fanta", IsActive: true},
		},
		Products: []server.ProductRecord{
			{
				ID: 100, Name: "Fanta Orange 500ml", CategoryID: int64Ptr(1), BrandID: int64Ptr(2),
				Slug: "fanta-orange-500ml", SKU: "FAN01",
				CostPrice: 0.80, SellingPrice: 1.50, SpecialPrice: 1.20,
				Quantity: 100, LowStockThreshold: 10, IsActive: true,
				Barcodes: []server.BarcodeRecord{{ID: 500, Barcode: "5449000011527", IsActive: true}},
			},
		},
		HasUpdates: true,
	}
}

func applySnapshot(t *testing.T, db *database.DB, snap *server.CatalogSnapshot, deleteAbsent bool) int {
	t.Helper()
	var total int
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		total, txErr = NewReconciler().ApplySnapshot(tx, snap, deleteAbsent)
		return txErr
	})
	if err != nil {
		t.Fatalf("ApplySnapshot failed: %v", err)
	}
	return total
}

func TestApplySnapshotCreatesCatalog(t *testing.T) {
	db := newTestDB(t)

	total := applySnapshot(t, db, testSnapshot(), false)
	if total != 5 {
		t.Errorf("expected 5 records applied, got %d", total)
	}

	var product models.Product
	if err := db.Preload("Barcodes").Where("server_id = ?", 100).First(&product).Error; err != nil {
		t.Fatalf("product not created: %v", err)
	}
	if product.CategoryID == nil || product.BrandID == nil {
		t.Error("product references not resolved to local ids")
	}
	if product.Quantity != 100 {
		t.Errorf("new product should take server stock, got %d", product.Quantity)
	}
	if len(product.Barcodes) != 1 || product.Barcodes[0].Barcode != "5449000011527" {
		t.Errorf("barcodes not synced: %+v", product.Barcodes)
	}

	var cashier models.User
	if err := db.Where("server_id = ?", 11).First(&cashier).Error; err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if !utils.CheckPasswordHash("changeme123", cashier.Password) {
		t.Error("pulled user without password hash did not get the provisioning password")
	}
}

func TestApplySnapshotIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	applySnapshot(t, db, testSnapshot(), false)
	applySnapshot(t, db, testSnapshot(), false)

	var products, users, barcodes int64
	db.Model(&models.Product{}).Count(&products)
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.Barcode{}).Count(&barcodes)

	if products != 1 || users != 2 || barcodes != 1 {
		t.Errorf("re-applying the snapshot duplicated rows: products=%d users=%d barcodes=%d", products, users, barcodes)
	}
}

func TestSnapshotPreservesLocalStock(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)

	// Sell offline: local stock diverges from the server's snapshot
	if err := db.Model(&models.Product{}).Where("server_id = ?", 100).
		Updates(map[string]interface{}{"quantity": 47, "sold_count": 53}).Error; err != nil {
		t.Fatalf("cannot adjust stock: %v", err)
	}

	snap := testSnapshot()
	snap.Products[0].Name = "Fanta Orange 0.5L"
	snap.Products[0].SellingPrice = 1.60
	applySnapshot(t, db, snap, true)

	var product models.Product
	if err := db.Where("server_id = ?", 100).First(&product).Error; err != nil {
		t.Fatalf("product vanished: %v", err)
	}
	if product.Name != "Fanta Orange 0.5L" || product.SellingPrice != 1.60 {
		t.Errorf("catalog fields not updated: name=%q price=%v", product.Name, product.SellingPrice)
	}
	if product.Quantity != 47 || product.SoldCount != 53 {
		t.Errorf("snapshot overwrote local stock: quantity=%d sold=%d", product.Quantity, product.SoldCount)
	}
}

func TestSnapshotDeletionByAbsence(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)

	// Next snapshot no longer carries the brand or the product
	snap := testSnapshot()
	snap.Brands = nil
	snap.Products = nil
	applySnapshot(t, db, snap, true)

	var brands, products, barcodes int64
	db.Model(&models.Brand{}).Count(&brands)
	db.Model(&models.Product{}).Count(&products)
	db.Model(&models.Barcode{}).Count(&barcodes)
	if brands != 0 || products != 0 || barcodes != 0 {
		t.Errorf("absent entities not removed: brands=%d products=%d barcodes=%d", brands, products, barcodes)
	}
}

func TestDeletionSkipsIncrementalPayloads(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)

	snap := testSnapshot()
	snap.Products = nil
	applySnapshot(t, db, snap, false)

	var products int64
	db.Model(&models.Product{}).Count(&products)
	if products != 1 {
		t.Errorf("non-snapshot payload deleted products: %d left", products)
	}
}

func TestAbsentCategoryDetachesProducts(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)

	snap := testSnapshot()
	snap.Categories = nil
	snap.Products[0].CategoryID = nil
	applySnapshot(t, db, snap, true)

	var product models.Product
	if err := db.Where("server_id = ?", 100).First(&product).Error; err != nil {
		t.Fatalf("product vanished with its category: %v", err)
	}
	if product.CategoryID != nil {
		t.Error("deleted category still referenced by product")
	}
}

func TestSoldProductDeactivatedNotDeleted(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)

	var product models.Product
	if err := db.Where("server_id = ?", 100).First(&product).Error; err != nil {
		t.Fatal(err)
	}
	var cashier models.User
	if err := db.Where("server_id = ?", 11).First(&cashier).Error; err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	sale := models.Sale{
		CashierID:   cashier.ID,
		CompletedAt: &now,
		Items:       []models.SaleItem{{ProductID: product.ID, Quantity: 2, UnitPrice: 1.50}},
	}
	if err := db.Create(&sale).Error; err != nil {
		t.Fatalf("cannot create sale: %v", err)
	}

	snap := testSnapshot()
	snap.Products = nil
	applySnapshot(t, db, snap, true)

	if err := db.Where("server_id = ?", 100).First(&product).Error; err != nil {
		t.Fatalf("sold product was deleted: %v", err)
	}
	if product.IsActive {
		t.Error("absent sold product should be deactivated")
	}
}

func TestLocallyPrintedBarcodesSurvive(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)

	var product models.Product
	if err := db.Where("server_id = ?", 100).First(&product).Error; err != nil {
		t.Fatal(err)
	}
	local := models.Barcode{Barcode: utils.GenerateEAN13(product.ID), ProductID: product.ID, IsActive: true}
	if err := db.Create(&local).Error; err != nil {
		t.Fatalf("cannot create local barcode: %v", err)
	}

	// Server replaces its own barcode with a new one
	snap := testSnapshot()
	snap.Products[0].Barcodes = []server.BarcodeRecord{{ID: 501, Barcode: "4006381333931", IsActive: true}}
	applySnapshot(t, db, snap, true)

	var codes []models.Barcode
	if err := db.Where("product_id = ?", product.ID).Find(&codes).Error; err != nil {
		t.Fatal(err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected the new server barcode plus the local one, got %d", len(codes))
	}
	byCode := make(map[string]models.Barcode, len(codes))
	for _, c := range codes {
		byCode[c.Barcode] = c
	}
	if _, ok := byCode["5449000011527"]; ok {
		t.Error("replaced server barcode not removed")
	}
	if _, ok := byCode[local.Barcode]; !ok {
		t.Error("locally printed barcode was removed by sync")
	}
}

func TestUserPasswordKeptWhenServerOmitsIt(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)

	localHash, err := utils.HashPassword("store-secret")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&models.User{}).Where("server_id = ?", 11).Update("password", localHash).Error; err != nil {
		t.Fatal(err)
	}

	snap := testSnapshot()
	snap.Users[1].FirstName = "Amina"
	applySnapshot(t, db, snap, false)

	var user models.User
	if err := db.Where("server_id = ?", 11).First(&user).Error; err != nil {
		t.Fatal(err)
	}
	if user.FirstName != "Amina" {
		t.Errorf("profile field not updated: %q", user.FirstName)
	}
	if user.Password != localHash {
		t.Error("update without server password overwrote the local hash")
	}
}

func TestImportSalesCreatesAndDedups(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)
	r := NewReconciler()

	completed := time.Now().UTC().Add(-time.Hour)
	records := []server.SaleRecord{{
		SaleNumber:  "SALE-20260830-0042",
		SaleType:    models.SaleTypeRetail,
		CashierID:   11,
		TotalAmount: 3.00, FinalAmount: 3.00,
		PaymentMethod: "cash",
		CreatedAt:     completed,
		CompletedAt:   timePtr(completed),
		Items:         []server.SaleItemRecord{{ProductID: 100, Quantity: 2, UnitPrice: 1.50, TotalAmount: 3.00}},
	}}

	created, skipped, err := r.ImportSales(db, records)
	if err != nil {
		t.Fatalf("ImportSales failed: %v", err)
	}
	if created != 1 || len(skipped) != 0 {
		t.Fatalf("expected 1 created, got created=%d skipped=%d", created, len(skipped))
	}

	var sale models.Sale
	if err := db.Preload("Items").Where("sale_number = ?", "SALE-20260830-0042").First(&sale).Error; err != nil {
		t.Fatalf("imported sale not found: %v", err)
	}
	if sale.SyncedAt == nil {
		t.Error("imported sale must not re-enter the push outbox")
	}
	if len(sale.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(sale.Items))
	}

	// Pulling the same record again is a no-op
	created, _, err = r.ImportSales(db, records)
	if err != nil {
		t.Fatalf("second ImportSales failed: %v", err)
	}
	if created != 0 {
		t.Errorf("duplicate import created %d sales", created)
	}
	var count int64
	db.Model(&models.Sale{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 sale, got %d", count)
	}
}

func TestImportSalesSkipsUnresolvedReferences(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)
	r := NewReconciler()

	records := []server.SaleRecord{
		{
			SaleNumber: "SALE-20260830-0050",
			CashierID:  999, // never synced
			Items:      []server.SaleItemRecord{{ProductID: 100, Quantity: 1, UnitPrice: 1.50}},
		},
		{
			SaleNumber: "SALE-20260830-0051",
			CashierID:  11,
			Items:      []server.SaleItemRecord{{ProductID: 100, Quantity: 1, UnitPrice: 1.50, TotalAmount: 1.50}},
		},
	}

	created, skipped, err := r.ImportSales(db, records)
	if err != nil {
		t.Fatalf("ImportSales failed: %v", err)
	}
	if created != 1 {
		t.Errorf("resolvable sale not imported, created=%d", created)
	}
	if len(skipped) != 1 || skipped[0].Number != "SALE-20260830-0050" {
		t.Errorf("unresolved sale not reported: %+v", skipped)
	}

	var count int64
	db.Model(&models.Sale{}).Where("sale_number = ?", "SALE-20260830-0050").Count(&count)
	if count != 0 {
		t.Error("unresolved sale was partially materialized")
	}
}

func TestImportReturnsResolvesSaleItems(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)
	r := NewReconciler()

	completed := time.Now().UTC().Add(-time.Hour)
	_, _, err := r.ImportSales(db, []server.SaleRecord{{
		SaleNumber:  "SALE-20260830-0060",
		CashierID:   11,
		CreatedAt:   completed,
		CompletedAt: timePtr(completed),
		Items:       []server.SaleItemRecord{{ProductID: 100, Quantity: 3, UnitPrice: 1.50, TotalAmount: 4.50}},
	}})
	if err != nil {
		t.Fatal(err)
	}

	created, skipped, err := r.ImportReturns(db, []server.ReturnRecord{{
		ReturnNumber:      "RETURN-20260830-0001",
		SaleNumber:        "SALE-20260830-0060",
		CashierID:         11,
		TotalReturnAmount: 1.50,
		Items:             []server.ReturnItemRecord{{ProductID: 100, Quantity: 1, ReturnReason: models.ReturnReasonFaulty, UnitPrice: 1.50}},
	}})
	if err != nil {
		t.Fatalf("ImportReturns failed: %v", err)
	}
	if created != 1 || len(skipped) != 0 {
		t.Fatalf("expected 1 created, got created=%d skipped=%v", created, skipped)
	}

	var ret models.Return
	if err := db.Preload("Items").Where("return_number = ?", "RETURN-20260830-0001").First(&ret).Error; err != nil {
		t.Fatalf("imported return not found: %v", err)
	}
	if ret.SyncedAt == nil {
		t.Error("imported return must not re-enter the push outbox")
	}
	if len(ret.Items) != 1 || ret.Items[0].SaleItemID == 0 {
		t.Errorf("return line not linked to a sale item: %+v", ret.Items)
	}
}

func TestImportReturnsSkipsUnknownSale(t *testing.T) {
	db := newTestDB(t)
	applySnapshot(t, db, testSnapshot(), false)
	r := NewReconciler()

	created, skipped, err := r.ImportReturns(db, []server.ReturnRecord{{
		ReturnNumber: "RETURN-20260830-0002",
		SaleNumber:   "SALE-20260101-9999",
		CashierID:    11,
	}})
	if err != nil {
		t.Fatalf("ImportReturns failed: %v", err)
	}
	if created != 0 || len(skipped) != 1 {
		t.Errorf("return against unknown sale not skipped: created=%d skipped=%v", created, skipped)
	}
}

package sync

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/models"
	"github.com/beizuri/posedge/internal/server"
	"github.com/beizuri/posedge/internal/utils"
	"gorm.io/gorm"
)

// ErrUnresolved marks a pulled record whose references (cashier, product,
// sale) do not exist locally. Such records are skipped and logged, they
// never fail the surrounding batch.
var ErrUnresolved = errors.New("unresolved reference")

// Password assigned to users created by sync without a usable hash from
// the server. Operators are expected to rotate it on first login.
const provisioningPassword = "changeme123"

// SkippedRecord identifies a pulled record the reconciler could not apply
type SkippedRecord struct {
	Number string `json:"number"`
	Reason string `json:"reason"`
}

// Reconciler merges remote catalog and transaction payloads into the local
// store. All catalog methods operate inside a caller-supplied transaction;
// transactional imports open one transaction per aggregate so a bad record
// cannot poison its neighbours.
type Reconciler struct{}

// NewReconciler creates a reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// ApplySnapshot merges a catalog payload in dependency order: users first,
// then categories and brands, then products with their barcodes so every
// product reference resolves. deleteAbsent must only be true for payloads
// that are known-complete snapshots of active entities.
func (r *Reconciler) ApplySnapshot(tx *gorm.DB, snap *server.CatalogSnapshot, deleteAbsent bool) (int, error) {
	total := 0

	n, err := r.SyncUsers(tx, snap.Users)
	if err != nil {
		return total, fmt.Errorf("users: %w", err)
	}
	total += n

	n, err = r.SyncCategories(tx, snap.Categories, deleteAbsent)
	if err != nil {
		return total, fmt.Errorf("categories: %w", err)
	}
	total += n

	n, err = r.SyncBrands(tx, snap.Brands, deleteAbsent)
	if err != nil {
		return total, fmt.Errorf("brands: %w", err)
	}
	total += n

	n, err = r.SyncProducts(tx, snap.Products, deleteAbsent)
	if err != nil {
		return total, fmt.Errorf("products: %w", err)
	}
	total += n

	return total, nil
}

// SyncUsers upserts staff accounts by server id. Users are never deleted
// by absence: the server marks them inactive instead.
func (r *Reconciler) SyncUsers(tx *gorm.DB, records []server.UserRecord) (int, error) {
	now := time.Now().UTC()

	for _, rec := range records {
		rec := rec
		var user models.User
		err := tx.Where("server_id = ?", rec.ID).First(&user).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			password := rec.Password
			if password == "" {
				hashed, hashErr := utils.HashPassword(provisioningPassword)
				if hashErr != nil {
					return 0, hashErr
				}
				password = hashed
			}
			user = models.User{
				Username:    rec.Username,
				Email:       rec.Email,
				FirstName:   rec.FirstName,
				LastName:    rec.LastName,
				Role:        rec.Role,
				PhoneNumber: rec.PhoneNumber,
				Password:    password,
				IsActive:    rec.IsActive,
				IsStaff:     rec.IsStaff,
				IsSuperuser: rec.IsSuperuser,
				ServerID:    &rec.ID,
				SyncedAt:    &now,
			}
			if err := tx.Create(&user).Error; err != nil {
				return 0, err
			}

		case err != nil:
			return 0, err

		default:
			user.Username = rec.Username
			user.Email = rec.Email
			user.FirstName = rec.FirstName
			user.LastName = rec.LastName
			user.Role = rec.Role
			user.PhoneNumber = rec.PhoneNumber
			user.IsActive = rec.IsActive
			user.IsStaff = rec.IsStaff
			user.IsSuperuser = rec.IsSuperuser
			if rec.Password != "" {
				user.Password = rec.Password
			}
			user.SyncedAt = &now
			if err := tx.Save(&user).Error; err != nil {
				return 0, err
			}
		}
	}

	return len(records), nil
}

// SyncCategories upserts categories by server id and, for snapshot
// payloads, deletes the ones the server no longer knows. Products of a
// deleted category keep existing with a nulled category reference.
func (r *Reconciler) SyncCategories(tx *gorm.DB, records []server.CategoryRecord, deleteAbsent bool) (int, error) {
	now := time.Now().UTC()
	seen := make([]int64, 0, len(records))

	for _, rec := range records {
		rec := rec
		seen = append(seen, rec.ID)

		var cat models.Category
		err := tx.Where("server_id = ?", rec.ID).First(&cat).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			cat = models.Category{
				Name:        rec.Name,
				Description: rec.Description,
				IsActive:    rec.IsActive,
				ServerID:    &rec.ID,
				SyncedAt:    &now,
			}
			if err := tx.Create(&cat).Error; err != nil {
				return 0, err
			}
		case err != nil:
			return 0, err
		default:
			cat.Name = rec.Name
			cat.Description = rec.Description
			cat.IsActive = rec.IsActive
			cat.SyncedAt = &now
			if err := tx.Save(&cat).Error; err != nil {
				return 0, err
			}
		}
	}

	if deleteAbsent {
		if err := r.deleteAbsentCategories(tx, seen); err != nil {
			return 0, err
		}
	}

	return len(records), nil
}

func (r *Reconciler) deleteAbsentCategories(tx *gorm.DB, keep []int64) error {
	victims, err := absentIDs(tx, &models.Category{}, keep)
	if err != nil || len(victims) == 0 {
		return err
	}

	// Detach products before removing their category
	if err := tx.Model(&models.Product{}).
		Where("category_id IN ?", victims).
		Update("category_id", nil).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Category{}, victims).Error
}

// SyncBrands upserts brands by server id, with the same deletion rule as
// categories
func (r *Reconciler) SyncBrands(tx *gorm.DB, records []server.BrandRecord, deleteAbsent bool) (int, error) {
	now := time.Now().UTC()
	seen := make([]int64, 0, len(records))

	for _, rec := range records {
		rec := rec
		seen = append(seen, rec.ID)

		var brand models.Brand
		err := tx.Where("server_id = ?", rec.ID).First(&brand).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			brand = models.Brand{
				Name:        rec.Name,
				Description: rec.Description,
				IsActive:    rec.IsActive,
				ServerID:    &rec.ID,
				SyncedAt:    &now,
			}
			if err := tx.Create(&brand).Error; err != nil {
				return 0, err
			}
		case err != nil:
			return 0, err
		default:
			brand.Name = rec.Name
			brand.Description = rec.Description
			brand.IsActive = rec.IsActive
			brand.SyncedAt = &now
			if err := tx.Save(&brand).Error; err != nil {
				return 0, err
			}
		}
	}

	if deleteAbsent {
		victims, err := absentIDs(tx, &models.Brand{}, seen)
		if err != nil {
			return 0, err
		}
		if len(victims) > 0 {
			if err := tx.Model(&models.Product{}).
				Where("brand_id IN ?", victims).
				Update("brand_id", nil).Error; err != nil {
				return 0, err
			}
			if err := tx.Delete(&models.Brand{}, victims).Error; err != nil {
				return 0, err
			}
		}
	}

	return len(records), nil
}

// SyncProducts upserts products and their nested barcodes by server id.
// Stock policy: quantity and sold_count are owned by this terminal, an
// incoming snapshot never overwrites them on an existing product. New
// products take the server's stock figures as their opening balance.
func (r *Reconciler) SyncProducts(tx *gorm.DB, records []server.ProductRecord, deleteAbsent bool) (int, error) {
	now := time.Now().UTC()
	seen := make([]int64, 0, len(records))

	for _, rec := range records {
		rec := rec
		seen = append(seen, rec.ID)

		categoryID := localCategoryID(tx, rec.CategoryID)
		brandID := localBrandID(tx, rec.BrandID)

		var product models.Product
		err := tx.Where("server_id = ?", rec.ID).First(&product).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			product = models.Product{
				Name:              rec.Name,
				Description:       rec.Description,
				CategoryID:        categoryID,
				BrandID:           brandID,
				Slug:              rec.Slug,
				SKU:               rec.SKU,
				CostPrice:         rec.CostPrice,
				SellingPrice:      rec.SellingPrice,
				WholesalePrice:    rec.WholesalePrice,
				SpecialPrice:      rec.SpecialPrice,
				Quantity:          rec.Quantity,
				LowStockThreshold: rec.LowStockThreshold,
				Weight:            rec.Weight,
				SoldCount:         rec.SoldCount,
				IsActive:          rec.IsActive,
				ServerID:          &rec.ID,
				SyncedAt:          &now,
			}
			if err := tx.Create(&product).Error; err != nil {
				return 0, err
			}
		case err != nil:
			return 0, err
		default:
			product.Name = rec.Name
			product.Description = rec.Description
			product.CategoryID = categoryID
			product.BrandID = brandID
			product.CostPrice = rec.CostPrice
			product.SellingPrice = rec.SellingPrice
			product.WholesalePrice = rec.WholesalePrice
			product.SpecialPrice = rec.SpecialPrice
			product.LowStockThreshold = rec.LowStockThreshold
			product.Weight = rec.Weight
			product.IsActive = rec.IsActive
			product.SyncedAt = &now
			// Quantity and SoldCount deliberately untouched
			if err := tx.Save(&product).Error; err != nil {
				return 0, err
			}
		}

		if err := r.syncBarcodes(tx, product.ID, rec.Barcodes, now); err != nil {
			return 0, err
		}
	}

	if deleteAbsent {
		if err := r.deleteAbsentProducts(tx, seen); err != nil {
			return 0, err
		}
	}

	return len(records), nil
}

// syncBarcodes merges a product's child barcodes. The incoming list is the
// complete server-side set for the product, so server-linked barcodes not
// in it are removed; locally printed barcodes (no server id) survive.
func (r *Reconciler) syncBarcodes(tx *gorm.DB, productID uint, records []server.BarcodeRecord, now time.Time) error {
	seen := make([]int64, 0, len(records))

	for _, rec := range records {
		rec := rec
		seen = append(seen, rec.ID)

		var code models.Barcode
		err := tx.Where("server_id = ?", rec.ID).First(&code).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			code = models.Barcode{
				Barcode:   rec.Barcode,
				ProductID: productID,
				IsActive:  rec.IsActive,
				ServerID:  &rec.ID,
				SyncedAt:  &now,
			}
			if err := tx.Create(&code).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			code.Barcode = rec.Barcode
			code.ProductID = productID
			code.IsActive = rec.IsActive
			code.SyncedAt = &now
			if err := tx.Save(&code).Error; err != nil {
				return err
			}
		}
	}

	q := tx.Where("product_id = ? AND server_id IS NOT NULL", productID)
	if len(seen) > 0 {
		q = q.Where("server_id NOT IN ?", seen)
	}
	return q.Delete(&models.Barcode{}).Error
}

// deleteAbsentProducts removes server-linked products missing from the
// snapshot. A product referenced by sale or return lines is deactivated
// instead of deleted: monetary history must never lose its rows.
func (r *Reconciler) deleteAbsentProducts(tx *gorm.DB, keep []int64) error {
	victims, err := absentIDs(tx, &models.Product{}, keep)
	if err != nil || len(victims) == 0 {
		return err
	}

	for _, id := range victims {
		var referenced int64
		if err := tx.Model(&models.SaleItem{}).Where("product_id = ?", id).Count(&referenced).Error; err != nil {
			return err
		}

		if referenced > 0 {
			if err := tx.Model(&models.Product{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
				return err
			}
			continue
		}

		if err := tx.Where("product_id = ?", id).Delete(&models.Barcode{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Product{}, id).Error; err != nil {
			return err
		}
	}
	return nil
}

// ImportSales materializes sales pulled from the server that this terminal
// has not seen. Each aggregate gets its own transaction; records with
// unresolved references are skipped and reported, never fatal.
func (r *Reconciler) ImportSales(db *database.DB, records []server.SaleRecord) (int, []SkippedRecord, error) {
	created := 0
	var skipped []SkippedRecord

	for _, rec := range records {
		rec := rec

		var count int64
		if err := db.Model(&models.Sale{}).Where("sale_number = ?", rec.SaleNumber).Count(&count).Error; err != nil {
			return created, skipped, err
		}
		if count > 0 {
			continue // already materialized, dedup by business key
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			return r.createSale(tx, rec)
		})
		if err != nil {
			if errors.Is(err, ErrUnresolved) {
				log.Printf("⚠️ Sync: skipping sale %s: %v", rec.SaleNumber, err)
				skipped = append(skipped, SkippedRecord{Number: rec.SaleNumber, Reason: err.Error()})
				continue
			}
			return created, skipped, err
		}
		created++
	}

	return created, skipped, nil
}

func (r *Reconciler) createSale(tx *gorm.DB, rec server.SaleRecord) error {
	var cashier models.User
	if err := tx.Where("server_id = ?", rec.CashierID).First(&cashier).Error; err != nil {
		return fmt.Errorf("%w: cashier %d", ErrUnresolved, rec.CashierID)
	}

	items := make([]models.SaleItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		var product models.Product
		if err := tx.Where("server_id = ?", it.ProductID).First(&product).Error; err != nil {
			return fmt.Errorf("%w: product %d", ErrUnresolved, it.ProductID)
		}
		items = append(items, models.SaleItem{
			ProductID:      product.ID,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			DiscountAmount: it.DiscountAmount,
			TotalAmount:    it.TotalAmount,
		})
	}

	now := time.Now().UTC()
	sale := models.Sale{
		SaleNumber:     rec.SaleNumber,
		SaleType:       rec.SaleType,
		CashierID:      cashier.ID,
		TotalAmount:    rec.TotalAmount,
		DiscountAmount: rec.DiscountAmount,
		FinalAmount:    rec.FinalAmount,
		PaymentMethod:  rec.PaymentMethod,
		Notes:          rec.Notes,
		CompletedAt:    rec.CompletedAt,
		SyncedAt:       &now, // came from the server, nothing to push back
		Items:          items,
	}
	return tx.Create(&sale).Error
}

// ImportReturns materializes returns pulled from the server, resolving
// each line back to the sale item it reverses
func (r *Reconciler) ImportReturns(db *database.DB, records []server.ReturnRecord) (int, []SkippedRecord, error) {
	created := 0
	var skipped []SkippedRecord

	for _, rec := range records {
		rec := rec

		var count int64
		if err := db.Model(&models.Return{}).Where("return_number = ?", rec.ReturnNumber).Count(&count).Error; err != nil {
			return created, skipped, err
		}
		if count > 0 {
			continue
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			return r.createReturn(tx, rec)
		})
		if err != nil {
			if errors.Is(err, ErrUnresolved) {
				log.Printf("⚠️ Sync: skipping return %s: %v", rec.ReturnNumber, err)
				skipped = append(skipped, SkippedRecord{Number: rec.ReturnNumber, Reason: err.Error()})
				continue
			}
			return created, skipped, err
		}
		created++
	}

	return created, skipped, nil
}

func (r *Reconciler) createReturn(tx *gorm.DB, rec server.ReturnRecord) error {
	var sale models.Sale
	if err := tx.Where("sale_number = ?", rec.SaleNumber).First(&sale).Error; err != nil {
		return fmt.Errorf("%w: sale %s", ErrUnresolved, rec.SaleNumber)
	}

	var cashier models.User
	if err := tx.Where("server_id = ?", rec.CashierID).First(&cashier).Error; err != nil {
		return fmt.Errorf("%w: cashier %d", ErrUnresolved, rec.CashierID)
	}

	items := make([]models.ReturnItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		var saleItem models.SaleItem
		err := tx.Joins("JOIN products ON products.id = sale_items.product_id").
			Where("sale_items.sale_id = ? AND products.server_id = ?", sale.ID, it.ProductID).
			First(&saleItem).Error
		if err != nil {
			return fmt.Errorf("%w: sale item for product %d on %s", ErrUnresolved, it.ProductID, rec.SaleNumber)
		}
		items = append(items, models.ReturnItem{
			SaleItemID:   saleItem.ID,
			Quantity:     it.Quantity,
			ReturnReason: it.ReturnReason,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
		})
	}

	now := time.Now().UTC()
	ret := models.Return{
		ReturnNumber:      rec.ReturnNumber,
		SaleID:            sale.ID,
		CashierID:         cashier.ID,
		TotalReturnAmount: rec.TotalReturnAmount,
		Notes:             rec.Notes,
		SyncedAt:          &now,
		Items:             items,
	}
	return tx.Create(&ret).Error
}

// absentIDs returns local primary keys of server-linked rows whose server
// id is not in the incoming snapshot
func absentIDs(tx *gorm.DB, model interface{}, keep []int64) ([]uint, error) {
	var ids []uint
	q := tx.Model(model).Where("server_id IS NOT NULL")
	if len(keep) > 0 {
		q = q.Where("server_id NOT IN ?", keep)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}

func localCategoryID(tx *gorm.DB, serverID *int64) *uint {
	if serverID == nil {
		return nil
	}
	var cat models.Category
	if err := tx.Where("server_id = ?", *serverID).First(&cat).Error; err != nil {
		return nil
	}
	id := cat.ID
	return &id
}

func localBrandID(tx *gorm.DB, serverID *int64) *uint {
	if serverID == nil {
		return nil
	}
	var brand models.Brand
	if err := tx.Where("server_id = ?", *serverID).First(&brand).Error; err != nil {
		return nil
	}
	id := brand.ID
	return &id
}

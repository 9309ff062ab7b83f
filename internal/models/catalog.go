package models

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Category groups products. Deleting a category does not delete its
// products, their category reference is nulled instead.
type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`

	ServerID *int64     `gorm:"uniqueIndex" json:"serverId,omitempty"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Category) TableName() string {
	return "categories"
}

// Brand identifies a product manufacturer
type Brand struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`

	ServerID *int64     `gorm:"uniqueIndex" json:"serverId,omitempty"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Brand) TableName() string {
	return "brands"
}

// Barcode is a scannable code owned by a product. A product can carry
// several codes (manufacturer EAN plus store-printed labels).
type Barcode struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Barcode   string `gorm:"uniqueIndex;not null;type:varchar(25)" json:"barcode"`
	ProductID uint   `gorm:"not null;index" json:"productId"`
	IsActive  bool   `gorm:"default:true" json:"isActive"`

	ServerID *int64     `gorm:"uniqueIndex" json:"serverId,omitempty"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (Barcode) TableName() string {
	return "barcodes"
}

// Product is the catalog entry sold at the terminal. Quantity and SoldCount
// are owned by this terminal while offline; catalog pulls must never
// overwrite them (see the reconciler's stock policy).
type Product struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"index;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	CategoryID  *uint  `gorm:"index" json:"categoryId,omitempty"`
	BrandID     *uint  `gorm:"index" json:"brandId,omitempty"`
	Slug        string `gorm:"uniqueIndex" json:"slug"`
	SKU         string `gorm:"uniqueIndex;type:varchar(8)" json:"sku"`

	CostPrice      float64  `json:"costPrice"`
	SellingPrice   float64  `json:"sellingPrice"`
	WholesalePrice *float64 `json:"wholesalePrice,omitempty"`
	SpecialPrice   float64  `json:"specialPrice"`

	Quantity          int      `gorm:"default:0" json:"quantity"`
	LowStockThreshold int      `gorm:"default:10" json:"lowStockThreshold"`
	Weight            *float64 `json:"weight,omitempty"` // kg
	SoldCount         int      `gorm:"default:0" json:"soldCount"`
	IsActive          bool     `gorm:"default:true" json:"isActive"`

	ServerID *int64     `gorm:"uniqueIndex" json:"serverId,omitempty"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Category *Category `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Brand    *Brand    `gorm:"constraint:OnDelete:SET NULL" json:"brand,omitempty"`
	Barcodes []Barcode `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"barcodes,omitempty"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}

// BeforeCreate fills in SKU and slug when the caller did not set them
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.SKU == "" {
		base := generateSKU(p.Name)
		sku := base
		for counter := 1; ; counter++ {
			var count int64
			tx.Model(&Product{}).Where("sku = ?", sku).Count(&count)
			if count == 0 {
				break
			}
			sku = fmt.Sprintf("%s%02d", base[:3], counter)
		}
		p.SKU = sku
	}

	if p.Slug == "" {
		base := Slugify(p.Name)
		slug := base
		for counter := 1; ; counter++ {
			var count int64
			tx.Model(&Product{}).Where("slug = ?", slug).Count(&count)
			if count == 0 {
				break
			}
			slug = fmt.Sprintf("%s-%d", base, counter)
		}
		p.Slug = slug
	}

	return nil
}

// IsInStock reports whether any units remain
func (p Product) IsInStock() bool {
	return p.Quantity > 0
}

// IsLowStock reports whether stock fell to the reorder threshold
func (p Product) IsLowStock() bool {
	return p.Quantity <= p.LowStockThreshold
}

// Sell decrements stock and bumps the sold counter. The caller persists
// the change inside the sale transaction.
func (p *Product) Sell(qty int) error {
	if qty > p.Quantity {
		return fmt.Errorf("insufficient stock for %s: have %d, want %d", p.Name, p.Quantity, qty)
	}
	p.Quantity -= qty
	p.SoldCount += qty
	return nil
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// generateSKU builds a 3-letter + 2-digit code from the product name
func generateSKU(name string) string {
	clean := nonAlnum.ReplaceAllString(strings.ToUpper(name), "")

	var prefix string
	switch {
	case len(clean) >= 3:
		prefix = clean[:3]
	case len(clean) > 0:
		prefix = clean + strings.Repeat("X", 3-len(clean))
	default:
		prefix = "PRD"
	}

	return fmt.Sprintf("%s%02d", prefix, rand.Intn(100))
}

// Slugify converts a name into a URL-safe slug
func Slugify(name string) string {
	slug := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

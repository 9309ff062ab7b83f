package server

import "time"

// Wire types for the central server's JSON sync API. Field names follow the
// server's snake_case convention. IDs in these payloads are always server
// ids; the reconciler maps them onto local rows.

// UserRecord is a staff account as served by the catalog endpoints
type UserRecord struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phone_number"`
	IsActive    bool   `json:"is_active"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	Password    string `json:"password,omitempty"` // already hashed server-side
}

// CategoryRecord mirrors the server's category rows
type CategoryRecord struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// BrandRecord mirrors the server's brand rows
type BrandRecord struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// BarcodeRecord is nested under its product in catalog payloads
type BarcodeRecord struct {
	ID       int64  `json:"id"`
	Barcode  string `json:"barcode"`
	IsActive bool   `json:"is_active"`
}

// ProductRecord carries the full catalog entry with nested barcodes
type ProductRecord struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	CategoryID        *int64          `json:"category_id"`
	BrandID           *int64          `json:"brand_id"`
	Slug              string          `json:"slug"`
	SKU               string          `json:"sku"`
	CostPrice         float64         `json:"cost_price"`
	SellingPrice      float64         `json:"selling_price"`
	WholesalePrice    *float64        `json:"wholesale_price"`
	SpecialPrice      float64         `json:"special_price"`
	Quantity          int             `json:"quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Weight            *float64        `json:"weight"`
	SoldCount         int             `json:"sold_count"`
	IsActive          bool            `json:"is_active"`
	Barcodes          []BarcodeRecord `json:"barcodes"`
}

// CatalogSnapshot is the response shape shared by initial_sync and
// pull_updates. pull_updates responses are full snapshots of currently
// active entities, which is what makes deletion-by-absence safe.
type CatalogSnapshot struct {
	Users         []UserRecord     `json:"users"`
	Categories    []CategoryRecord `json:"categories"`
	Brands        []BrandRecord    `json:"brands"`
	Products      []ProductRecord  `json:"products"`
	SyncTimestamp string           `json:"sync_timestamp"`
	HasUpdates    bool             `json:"has_updates"`
}

// RecordCount is the number of top-level entities in the snapshot
func (s *CatalogSnapshot) RecordCount() int {
	return len(s.Users) + len(s.Categories) + len(s.Brands) + len(s.Products)
}

// SaleItemRecord is one line of a sale on the wire
type SaleItemRecord struct {
	ProductID      int64   `json:"product_id"` // server id
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	DiscountAmount float64 `json:"discount_amount"`
	TotalAmount    float64 `json:"total_amount"`
}

// SaleRecord is a completed sale, pushed and pulled in the same shape.
// SaleNumber is the idempotency key: the server upserts on it, so
// re-sending an already-accepted sale is harmless.
type SaleRecord struct {
	SaleNumber     string           `json:"sale_number"`
	SaleType       string           `json:"sale_type"`
	CashierID      int64            `json:"cashier_id"` // server id
	TotalAmount    float64          `json:"total_amount"`
	DiscountAmount float64          `json:"discount_amount"`
	FinalAmount    float64          `json:"final_amount"`
	PaymentMethod  string           `json:"payment_method"`
	Notes          string           `json:"notes"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at"`
	Items          []SaleItemRecord `json:"items"`
}

// ReturnItemRecord references the sold product it reverses
type ReturnItemRecord struct {
	ProductID    int64   `json:"product_id"` // server id
	Quantity     int     `json:"quantity"`
	ReturnReason string  `json:"return_reason"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
}

// ReturnRecord is a return against a sale, keyed by ReturnNumber
type ReturnRecord struct {
	ReturnNumber      string             `json:"return_number"`
	SaleNumber        string             `json:"sale_number"`
	CashierID         int64              `json:"cashier_id"` // server id
	TotalReturnAmount float64            `json:"total_return_amount"`
	Notes             string             `json:"notes"`
	CreatedAt         time.Time          `json:"created_at"`
	Items             []ReturnItemRecord `json:"items"`
}

// PushError reports one rejected record from a push batch, keyed by the
// record's business number so the caller can keep it eligible for retry
type PushError struct {
	Number string `json:"number"`
	Error  string `json:"error"`
}

// PushResult is the response of push_sales / push_returns
type PushResult struct {
	Success     bool        `json:"success"`
	SyncedCount int         `json:"synced_count"`
	ErrorCount  int         `json:"error_count"`
	Errors      []PushError `json:"errors,omitempty"`
}

// FailedNumbers returns the business numbers the server rejected
func (r *PushResult) FailedNumbers() map[string]bool {
	failed := make(map[string]bool, len(r.Errors))
	for _, e := range r.Errors {
		failed[e.Number] = true
	}
	return failed
}

// pullSalesResponse wraps the pull_sales payload
type pullSalesResponse struct {
	Sales []SaleRecord `json:"sales"`
	Count int          `json:"count"`
}

// pullReturnsResponse wraps the pull_returns payload
type pullReturnsResponse struct {
	Returns []ReturnRecord `json:"returns"`
	Count   int            `json:"count"`
}

// healthResponse is the liveness probe payload
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

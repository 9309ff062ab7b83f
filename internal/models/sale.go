package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Sale types
const (
	SaleTypeRetail    = "RETAIL"
	SaleTypeWholesale = "WHOLESALE"
	SaleTypeSpecial   = "SPECIAL"
)

// Sale is a transaction recorded at this terminal. A sale joins the push
// outbox once CompletedAt is set and leaves it when SyncedAt is written by
// a successful push. SaleNumber is the business key the server dedups on.
type Sale struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	SaleNumber    string  `gorm:"uniqueIndex;not null;type:varchar(20)" json:"saleNumber"`
	SaleType      string  `gorm:"type:varchar(10);default:'RETAIL'" json:"saleType"`
	CashierID     uint    `gorm:"not null;index" json:"cashierId"`
	TotalAmount   float64 `json:"totalAmount"`
	SpecialAmount float64 `json:"specialAmount"`

	DiscountAmount float64  `json:"discountAmount"`
	FinalAmount    float64  `json:"finalAmount"`
	PaymentMethod  string   `gorm:"type:varchar(50)" json:"paymentMethod,omitempty"`
	MoneyReceived  *float64 `json:"moneyReceived,omitempty"`
	ChangeAmount   *float64 `json:"changeAmount,omitempty"`
	Notes          string   `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	CompletedAt *time.Time `gorm:"index" json:"completedAt,omitempty"`
	SyncedAt    *time.Time `gorm:"index" json:"syncedAt,omitempty"`
	IsHeld      bool       `gorm:"default:false;index" json:"isHeld"`

	Cashier *User      `json:"cashier,omitempty"`
	Items   []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName specifies the table name
func (Sale) TableName() string {
	return "sales"
}

// BeforeCreate assigns the next sequential sale number for today
func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.SaleNumber == "" {
		number, err := nextDocumentNumber(tx, &Sale{}, "sale_number", "SALE")
		if err != nil {
			return err
		}
		s.SaleNumber = number
	}
	return nil
}

// Complete stamps the sale as finished and totals its items. Stock
// decrements happen alongside in the same transaction.
func (s *Sale) Complete(now time.Time) {
	if s.CompletedAt != nil {
		return
	}
	s.CompletedAt = &now

	var total float64
	for _, item := range s.Items {
		total += item.TotalAmount
	}
	s.TotalAmount = total
	s.FinalAmount = total - s.DiscountAmount
}

// SaleItem is one product line on a sale, ordered by creation time
type SaleItem struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	SaleID         uint    `gorm:"not null;index" json:"saleId"`
	ProductID      uint    `gorm:"not null;index" json:"productId"`
	Quantity       int     `gorm:"not null" json:"quantity"`
	UnitPrice      float64 `json:"unitPrice"`
	DiscountAmount float64 `json:"discountAmount"`
	TotalAmount    float64 `json:"totalAmount"`

	CreatedAt time.Time `json:"createdAt"`

	Product *Product `json:"product,omitempty"`
}

// TableName specifies the table name
func (SaleItem) TableName() string {
	return "sale_items"
}

// BeforeSave keeps the line total consistent with quantity and price
func (si *SaleItem) BeforeSave(tx *gorm.DB) error {
	if si.TotalAmount == 0 {
		si.TotalAmount = float64(si.Quantity)*si.UnitPrice - si.DiscountAmount
	}
	return nil
}

// nextDocumentNumber generates PREFIX-YYYYMMDD-NNNN numbers, restarting the
// sequence each day. Must run inside the transaction that inserts the row.
func nextDocumentNumber(tx *gorm.DB, model interface{}, column, prefix string) (string, error) {
	today := time.Now().Format("20060102")
	dayPrefix := fmt.Sprintf("%s-%s-", prefix, today)

	var last string
	err := tx.Model(model).
		Select(column).
		Where(column+" LIKE ?", dayPrefix+"%").
		Order(column + " DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", err
	}

	next := 1
	if last != "" {
		parts := strings.Split(last, "-")
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			next = n + 1
		}
	}

	return fmt.Sprintf("%s%04d", dayPrefix, next), nil
}

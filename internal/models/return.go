package models

import (
	"time"

	"gorm.io/gorm"
)

// Return reasons
const (
	ReturnReasonFaulty   = "FAULTY"
	ReturnReasonProspect = "PROSPECT"
)

// Return records goods coming back against an earlier sale. Like sales it
// sits in the push outbox until SyncedAt is set; ReturnNumber is the
// business key for server-side dedup.
type Return struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	ReturnNumber      string  `gorm:"uniqueIndex;not null;type:varchar(20)" json:"returnNumber"`
	SaleID            uint    `gorm:"not null;index" json:"saleId"`
	CashierID         uint    `gorm:"not null;index" json:"cashierId"`
	TotalReturnAmount float64 `json:"totalReturnAmount"`
	Notes             string  `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
	SyncedAt  *time.Time `gorm:"index" json:"syncedAt,omitempty"`

	Sale    *Sale        `json:"sale,omitempty"`
	Cashier *User        `json:"cashier,omitempty"`
	Items   []ReturnItem `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName specifies the table name
func (Return) TableName() string {
	return "returns"
}

// BeforeCreate assigns the next sequential return number for today
func (r *Return) BeforeCreate(tx *gorm.DB) error {
	if r.ReturnNumber == "" {
		number, err := nextDocumentNumber(tx, &Return{}, "return_number", "RETURN")
		if err != nil {
			return err
		}
		r.ReturnNumber = number
	}
	return nil
}

// ReturnItem is one returned line, tied back to the sale item it reverses
type ReturnItem struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	ReturnID     uint    `gorm:"not null;index" json:"returnId"`
	SaleItemID   uint    `gorm:"not null;index" json:"saleItemId"`
	Quantity     int     `gorm:"not null" json:"quantity"`
	ReturnReason string  `gorm:"type:varchar(10)" json:"returnReason"`
	UnitPrice    float64 `json:"unitPrice"`
	TotalPrice   float64 `json:"totalPrice"`

	CreatedAt time.Time `json:"createdAt"`

	SaleItem *SaleItem `json:"saleItem,omitempty"`
}

// TableName specifies the table name
func (ReturnItem) TableName() string {
	return "return_items"
}

// BeforeSave keeps the line total consistent
func (ri *ReturnItem) BeforeSave(tx *gorm.DB) error {
	ri.TotalPrice = float64(ri.Quantity) * ri.UnitPrice
	return nil
}

package models

import (
	"time"
)

// User roles mirrored from the central server
const (
	RoleAdmin       = "admin"
	RoleCashier     = "cashier"
	RoleDeliveryGuy = "delivery_guy"
	RoleSupervisor  = "supervisor"
	RoleCustomer    = "customer"
)

// User represents a staff account replicated from the central server.
// ServerID links the local row to its server-side counterpart; it is set
// once on first reconciliation and never changes afterwards.
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Role        string `gorm:"type:varchar(20);default:'customer'" json:"role"`
	PhoneNumber string `gorm:"type:varchar(15)" json:"phoneNumber,omitempty"`
	Password    string `gorm:"not null" json:"-"` // bcrypt hash
	IsActive    bool   `gorm:"default:true" json:"isActive"`
	IsStaff     bool   `gorm:"default:false" json:"isStaff"`
	IsSuperuser bool   `gorm:"default:false" json:"isSuperuser"`

	ServerID *int64     `gorm:"uniqueIndex" json:"serverId,omitempty"`
	SyncedAt *time.Time `json:"syncedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// FullName returns the display name for receipts and logs
func (u User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	return u.FirstName + " " + u.LastName
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PremiumProjection is the denormalized entitlement read-model carried by
// both users and customers. It only ever moves forward.
type PremiumProjection struct {
	IsPremium          bool            `gorm:"not null;default:false" json:"is_premium"`
	ExtensionActivated bool            `gorm:"not null;default:false" json:"extension_activated"`
	PremiumActivatedAt *time.Time      `json:"premium_activated_at,omitempty"`
	TotalSpent         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_spent"`
	TotalOrders        int             `gorm:"not null;default:0" json:"total_orders"`
}

// Customer is the commerce record, created for guests on first purchase.
type Customer struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Email string `gorm:"size:191;uniqueIndex;not null" json:"email"`
	Name  string `gorm:"size:191" json:"name"`

	PremiumProjection `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a registered account. It is never created by the purchase flow.
type User struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Email string `gorm:"size:191;uniqueIndex;not null" json:"email"`
	Name  string `gorm:"size:191" json:"name"`
	Role  string `gorm:"size:32;not null;default:'customer'" json:"role"`

	PremiumProjection `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeFlat    DiscountType = "flat"
)

type Coupon struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Code         string          `gorm:"size:64;uniqueIndex;not null" json:"code"`
	DiscountType DiscountType    `gorm:"size:16;not null" json:"discount_type"`
	Value        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`
	Active       bool            `gorm:"not null;default:true" json:"active"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	UsageLimit   int             `gorm:"not null;default:0" json:"usage_limit"` // 0 means unlimited
	UsedCount    int             `gorm:"not null;default:0" json:"used_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

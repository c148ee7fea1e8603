package model

import "time"

type ActivationCode struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Code          string `gorm:"size:64;uniqueIndex;not null" json:"code"`
	OrderID       uint   `gorm:"index;not null" json:"order_id"`
	CustomerID    *uint  `gorm:"index" json:"customer_id,omitempty"`
	CustomerEmail string `gorm:"size:191;index" json:"customer_email"`

	MaxActivations  int  `gorm:"not null;default:1" json:"max_activations"`
	ActivationCount int  `gorm:"not null;default:0" json:"activation_count"`
	IsActive        bool `gorm:"not null;default:true" json:"is_active"`
	IsRevoked       bool `gorm:"not null;default:false" json:"is_revoked"`

	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	InstallationID string     `gorm:"size:128;index" json:"installation_id,omitempty"` // bound on first redemption
	DeviceID       string     `gorm:"size:128" json:"device_id,omitempty"`
	BoundAt        *time.Time `json:"bound_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *ActivationCode) Remaining() int {
	remaining := c.MaxActivations - c.ActivationCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *ActivationCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// ActivationValidation counts redemption/validation calls per code per UTC day.
type ActivationValidation struct {
	ID               uint      `gorm:"primaryKey"`
	ActivationCodeID uint      `gorm:"not null;uniqueIndex:ux_activation_validations_code_day,priority:1"`
	Day              string    `gorm:"size:10;not null;uniqueIndex:ux_activation_validations_code_day,priority:2"` // YYYY-MM-DD
	Count            int       `gorm:"not null;default:0"`
	UpdatedAt        time.Time
}

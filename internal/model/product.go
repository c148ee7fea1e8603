package model

import "github.com/shopspring/decimal"

type ProductType string

const (
	ProductTypeLifetime ProductType = "LIFETIME"
	ProductTypeTeam     ProductType = "TEAM"
)

type Product struct {
	ID          string          `gorm:"primaryKey;size:64;not null" json:"id"` // product sku
	Name        string          `gorm:"size:128;not null" json:"name"`
	Description string          `gorm:"size:512" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency    string          `gorm:"size:8;not null" json:"currency"`
	Type        ProductType     `gorm:"size:32;index;not null" json:"type"`
}

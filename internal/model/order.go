package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

type PaymentMethod string

const (
	PaymentMethodStripe    PaymentMethod = "stripe"
	PaymentMethodPaypal    PaymentMethod = "paypal"
	PaymentMethodBraintree PaymentMethod = "braintree"
	// fully discounted orders never reach a provider
	PaymentMethodCoupon PaymentMethod = "coupon"
)

// Order is the root aggregate of a purchase attempt. ActivationCode and
// Invoice rows reference it by ID.
type Order struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	CustomerID    *uint  `gorm:"index" json:"customer_id,omitempty"` // nil for guest checkout
	CustomerEmail string `gorm:"size:191;index;not null" json:"customer_email"`
	CustomerName  string `gorm:"size:191" json:"customer_name"`
	ProductID     string `gorm:"size:64;not null" json:"product_id"`

	OriginalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"original_amount"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"final_amount"` // after discount
	Currency       string          `gorm:"size:8;not null" json:"currency"`

	Status        OrderStatus   `gorm:"size:32;index;not null" json:"status"`
	PaymentMethod PaymentMethod `gorm:"size:16;not null" json:"payment_method"`
	// stripe payment intent id, paypal order id or braintree transaction id
	ProviderTransactionID *string `gorm:"size:128;uniqueIndex" json:"provider_transaction_id,omitempty"`

	DownloadToken    string `gorm:"size:64;uniqueIndex;not null" json:"download_token"`
	ActivationCodeID *uint  `json:"activation_code_id,omitempty"`
	CouponCode       string `gorm:"size:64" json:"coupon_code,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (o *Order) DiscountAmount() decimal.Decimal {
	discount := o.OriginalAmount.Sub(o.FinalAmount)
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

func (o *Order) TransactionID() string {
	if o.ProviderTransactionID == nil {
		return ""
	}
	return *o.ProviderTransactionID
}

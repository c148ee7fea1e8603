package dto

import (
	"strings"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CheckoutRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	ProductID  string `json:"product_id"`
	CouponCode string `json:"coupon_code"`
}

type QuoteRequest struct {
	ProductID  string `json:"product_id"`
	CouponCode string `json:"coupon_code"`
}

type BraintreeCheckoutRequest struct {
	CheckoutRequest
	Nonce string `json:"nonce"`
}

// CompletePurchaseRequest is the client callback body for manual completion.
type CompletePurchaseRequest struct {
	PaymentIntentID string           `json:"paymentIntentId"`
	OrderID         uint             `json:"orderId"`
	CustomerEmail   string           `json:"customerEmail"`
	CustomerName    string           `json:"customerName"`
	Amount          *decimal.Decimal `json:"amount"`
	Currency        string           `json:"currency"`
	ProductType     string           `json:"productType"`
}

// ProductID maps the client's product type onto a catalog sku.
func (r CompletePurchaseRequest) ProductID() string {
	switch model.ProductType(strings.ToUpper(strings.TrimSpace(r.ProductType))) {
	case model.ProductTypeTeam:
		return "premium_team"
	default:
		return ""
	}
}

type PurchaseResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type ActivationRequest struct {
	Code           string `json:"code"`
	InstallationID string `json:"installationId"`
	DeviceID       string `json:"deviceId"`
}

type AdminTokenRequest struct {
	APIKey string `json:"api_key"`
}

type AdminTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type BackfillRequest struct {
	Limit int `json:"limit"`
}

type PendingRepairRequest struct {
	Limit     int    `json:"limit"`
	OlderThan string `json:"older_than"` // Go duration, default 1h
}

type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

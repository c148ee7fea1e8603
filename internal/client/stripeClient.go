package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	stripeclient "github.com/stripe/stripe-go/v76/client"
)

type StripeClient interface {
	CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type PaymentIntentInput struct {
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	ProductID     string
	OrderRef      string
}

type stripeClientImpl struct {
	api *stripeclient.API
}

// NewStripeClient builds a client bound to one secret key. It never touches
// the package-level stripe.Key.
func NewStripeClient(secretKey string) StripeClient {
	api := &stripeclient.API{}
	api.Init(secretKey, nil)

	return &stripeClientImpl{
		api: api,
	}
}

func (c *stripeClientImpl) CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(ToMinorUnits(input.Amount)),
		Currency:     stripe.String(strings.ToLower(input.Currency)),
		ReceiptEmail: stripe.String(input.CustomerEmail),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_ref", input.OrderRef)
	params.AddMetadata("product_id", input.ProductID)
	params.AddMetadata("customer_email", input.CustomerEmail)
	params.SetIdempotencyKey("checkout-" + input.OrderRef)

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return pi, nil
}

func (c *stripeClientImpl) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get payment intent: %w", err)
	}

	return pi, nil
}

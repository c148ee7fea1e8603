package client

import (
	"context"
	"fmt"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

type BraintreeClient interface {
	// ChargeNonce settles a one-time sale for a drop-in nonce (card or PayPal).
	ChargeNonce(ctx context.Context, nonce string, amount decimal.Decimal, orderRef string) (*BraintreeCharge, error)
}

type BraintreeCharge struct {
	TransactionID string
	Status        string
}

type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

func NewBraintreeClient(cfg *config.Braintree) BraintreeClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

func (c *braintreeClientImpl) ChargeNonce(ctx context.Context, nonce string, amount decimal.Decimal, orderRef string) (*BraintreeCharge, error) {
	// Braintree expects NewDecimal(unscaled, scale): "29.99" -> NewDecimal(2999, 2)
	btAmount := braintree.NewDecimal(ToMinorUnits(amount), 2)

	req := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             btAmount,
		PaymentMethodNonce: nonce,
		OrderId:            orderRef,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true, // Captures the funds immediately
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transaction creation failed: %w", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined || tx.Status == braintree.TransactionStatusGatewayRejected {
		return nil, fmt.Errorf("transaction declined: %s", tx.ProcessorResponseText)
	}

	return &BraintreeCharge{
		TransactionID: tx.Id,
		Status:        string(tx.Status),
	}, nil
}

// ToMinorUnits converts a two-decimal amount to cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a two-decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

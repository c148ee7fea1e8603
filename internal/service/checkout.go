package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/client"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
)

type Quote struct {
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Currency       string          `json:"currency"`
	CouponCode     string          `json:"coupon_code,omitempty"`
}

type CheckoutInput struct {
	Email      string
	Name       string
	ProductID  string
	CouponCode string
}

type BraintreeInput struct {
	CheckoutInput
	Nonce string
}

// ManualCompletionInput is the client-reported confirmation used when a
// webhook has not arrived.
type ManualCompletionInput struct {
	PaymentIntentID string
	OrderID         uint
	Email           string
	Name            string
	Amount          *decimal.Decimal
	Currency        string
	ProductID       string
	PaymentMethod   model.PaymentMethod
}

type CheckoutResult struct {
	OrderID       uint            `json:"order_id"`
	Provider      string          `json:"provider"`
	TransactionID string          `json:"transaction_id"`
	ClientSecret  string          `json:"client_secret,omitempty"`
	ApprovalURL   string          `json:"approval_url,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Completed     *PurchaseResult `json:"completed,omitempty"` // set when a coupon covered the whole price
}

type CheckoutService interface {
	Products(ctx context.Context) ([]*model.Product, error)
	Quote(ctx context.Context, productID, couponCode string) (*Quote, error)
	CreateStripeCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	CreatePaypalCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	CapturePaypal(ctx context.Context, paypalOrderID string) (*PurchaseResult, error)
	ChargeBraintree(ctx context.Context, input BraintreeInput) (*PurchaseResult, error)
	CompleteManually(ctx context.Context, input ManualCompletionInput) (*PurchaseResult, error)
	RecoverPending(ctx context.Context, olderThan time.Duration, limit int) (*PendingReport, error)
}

// PendingReport summarizes one RecoverPending run. Orders the provider has
// not been paid for stay pending and are listed under Unpaid.
type PendingReport struct {
	Scanned   int             `json:"scanned"`
	Completed []uint          `json:"completed"`
	Unpaid    []uint          `json:"unpaid,omitempty"`
	Failed    map[uint]string `json:"failed,omitempty"`
}

type checkoutServiceImpl struct {
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	orderRepo   repository.OrderRepository
	gateways    *client.Gateways
	purchases   PurchaseService
	baseURL     string
	clock       clock.Clock
	logger      *slog.Logger
}

func NewCheckoutService(
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	orderRepo repository.OrderRepository,
	gateways *client.Gateways,
	purchases PurchaseService,
	baseURL string,
	clk clock.Clock,
	logger *slog.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		productRepo: productRepo,
		couponRepo:  couponRepo,
		orderRepo:   orderRepo,
		gateways:    gateways,
		purchases:   purchases,
		baseURL:     strings.TrimRight(baseURL, "/"),
		clock:       clk,
		logger:      logger,
	}
}

func (s *checkoutServiceImpl) Products(ctx context.Context) ([]*model.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *checkoutServiceImpl) Quote(ctx context.Context, productID, couponCode string) (*Quote, error) {
	if productID == "" {
		productID = repository.DefaultProductID
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if repository.IsNotFound(err) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}

	quote := &Quote{
		ProductID:      product.ID,
		ProductName:    product.Name,
		OriginalAmount: product.Price,
		DiscountAmount: decimal.Zero,
		FinalAmount:    product.Price,
		Currency:       product.Currency,
	}

	couponCode = strings.ToUpper(strings.TrimSpace(couponCode))
	if couponCode == "" {
		return quote, nil
	}

	coupon, err := s.couponRepo.FindByCode(ctx, couponCode)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s not found", ErrInvalidCoupon, couponCode)
	}
	if err != nil {
		return nil, fmt.Errorf("find coupon: %w", err)
	}

	discount, err := s.discountFor(coupon, product.Price)
	if err != nil {
		return nil, err
	}

	quote.CouponCode = coupon.Code
	quote.DiscountAmount = discount
	quote.FinalAmount = product.Price.Sub(discount)
	return quote, nil
}

func (s *checkoutServiceImpl) discountFor(coupon *model.Coupon, price decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case !coupon.Active:
		return decimal.Zero, fmt.Errorf("%w: %s is inactive", ErrInvalidCoupon, coupon.Code)
	case coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(s.clock.Now()):
		return decimal.Zero, fmt.Errorf("%w: %s has expired", ErrInvalidCoupon, coupon.Code)
	case coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit:
		return decimal.Zero, fmt.Errorf("%w: %s usage limit reached", ErrInvalidCoupon, coupon.Code)
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case model.DiscountTypePercent:
		if !coupon.Value.IsPositive() || coupon.Value.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, fmt.Errorf("%w: %s has a bad percentage", ErrInvalidCoupon, coupon.Code)
		}
		discount = price.Mul(coupon.Value).Div(decimal.NewFromInt(100)).Round(2)
	case model.DiscountTypeFlat:
		if !coupon.Value.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: %s has a bad amount", ErrInvalidCoupon, coupon.Code)
		}
		discount = coupon.Value
	default:
		return decimal.Zero, fmt.Errorf("%w: %s has unknown type %q", ErrInvalidCoupon, coupon.Code, coupon.DiscountType)
	}

	if discount.GreaterThan(price) {
		discount = price
	}
	return discount, nil
}

func (s *checkoutServiceImpl) CreateStripeCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}

	quote, err := s.Quote(ctx, input.ProductID, input.CouponCode)
	if err != nil {
		return nil, err
	}
	if quote.FinalAmount.IsZero() {
		return s.completeFree(ctx, input, quote)
	}

	stripeClient, err := s.gateways.Stripe()
	if err != nil {
		return nil, err
	}

	downloadToken := uuid.NewString()
	intent, err := stripeClient.CreatePaymentIntent(ctx, client.PaymentIntentInput{
		Amount:        quote.FinalAmount,
		Currency:      quote.Currency,
		CustomerEmail: input.Email,
		ProductID:     quote.ProductID,
		OrderRef:      downloadToken,
	})
	if err != nil {
		return nil, err
	}

	order := pendingOrder(input, quote, model.PaymentMethodStripe, intent.ID, downloadToken, s.clock.Now())
	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.InfoContext(ctx, "stripe checkout created", "order_id", order.ID, "payment_intent", intent.ID)

	return &CheckoutResult{
		OrderID:       order.ID,
		Provider:      model.ProviderStripe,
		TransactionID: intent.ID,
		ClientSecret:  intent.ClientSecret,
		Amount:        quote.FinalAmount,
		Currency:      quote.Currency,
	}, nil
}

func (s *checkoutServiceImpl) CreatePaypalCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}

	quote, err := s.Quote(ctx, input.ProductID, input.CouponCode)
	if err != nil {
		return nil, err
	}
	if quote.FinalAmount.IsZero() {
		return s.completeFree(ctx, input, quote)
	}

	paypalClient, err := s.gateways.Paypal()
	if err != nil {
		return nil, err
	}

	downloadToken := uuid.NewString()
	created, err := paypalClient.CreateOrder(ctx, client.PaypalOrderInput{
		ReferenceID: downloadToken,
		Description: quote.ProductName,
		Amount:      quote.FinalAmount,
		Currency:    quote.Currency,
		ReturnURL:   s.baseURL + "/api/paypal/success",
		CancelURL:   s.baseURL + "/",
	})
	if err != nil {
		return nil, err
	}

	order := pendingOrder(input, quote, model.PaymentMethodPaypal, created.OrderID, downloadToken, s.clock.Now())
	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.InfoContext(ctx, "paypal checkout created", "order_id", order.ID, "paypal_order_id", created.OrderID)

	return &CheckoutResult{
		OrderID:       order.ID,
		Provider:      model.ProviderPaypal,
		TransactionID: created.OrderID,
		ApprovalURL:   created.ApproveURL,
		Amount:        quote.FinalAmount,
		Currency:      quote.Currency,
	}, nil
}

// CapturePaypal captures an approved PayPal order and completes it.
func (s *checkoutServiceImpl) CapturePaypal(ctx context.Context, paypalOrderID string) (*PurchaseResult, error) {
	paypalOrderID = strings.TrimSpace(paypalOrderID)
	if paypalOrderID == "" {
		return nil, fmt.Errorf("%w: paypal order id is required", ErrInvalidRequest)
	}

	order, err := s.orderRepo.FindByTransactionID(ctx, nil, paypalOrderID)
	if repository.IsNotFound(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order.Status == model.OrderStatusCompleted {
		return s.purchases.CompletePurchase(ctx, PurchaseInput{TransactionID: paypalOrderID})
	}

	paypalClient, err := s.gateways.Paypal()
	if err != nil {
		return nil, err
	}

	captured, err := paypalClient.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		return nil, err
	}
	capture, ok := captured.CompletedCapture()
	if !ok {
		return nil, fmt.Errorf("%w: paypal order %s is %s", ErrPaymentNotCompleted, paypalOrderID, captured.Status)
	}

	amount, err := decimal.NewFromString(capture.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("parse capture amount: %w", err)
	}

	return s.purchases.CompletePurchase(ctx, PurchaseInput{
		TransactionID: paypalOrderID,
		Amount:        &amount,
		Currency:      capture.Amount.Currency,
		PaymentMethod: model.PaymentMethodPaypal,
	})
}

// ChargeBraintree settles a drop-in nonce and completes the purchase under
// the Braintree transaction id.
func (s *checkoutServiceImpl) ChargeBraintree(ctx context.Context, input BraintreeInput) (*PurchaseResult, error) {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" || strings.TrimSpace(input.Nonce) == "" {
		return nil, fmt.Errorf("%w: email and payment nonce are required", ErrInvalidRequest)
	}

	quote, err := s.Quote(ctx, input.ProductID, input.CouponCode)
	if err != nil {
		return nil, err
	}
	if quote.FinalAmount.IsZero() {
		result, err := s.completeFree(ctx, input.CheckoutInput, quote)
		if err != nil {
			return nil, err
		}
		return result.Completed, nil
	}

	braintreeClient, err := s.gateways.Braintree()
	if err != nil {
		return nil, err
	}

	charge, err := braintreeClient.ChargeNonce(ctx, input.Nonce, quote.FinalAmount, "bt-"+uuid.NewString())
	if err != nil {
		return nil, err
	}

	return s.purchases.CompletePurchase(ctx, PurchaseInput{
		TransactionID:  charge.TransactionID,
		CustomerEmail:  input.Email,
		CustomerName:   input.Name,
		Amount:         &quote.FinalAmount,
		OriginalAmount: &quote.OriginalAmount,
		Currency:       quote.Currency,
		ProductID:      quote.ProductID,
		PaymentMethod:  model.PaymentMethodBraintree,
		CouponCode:     quote.CouponCode,
	})
}

// CompleteManually completes a purchase reported by the client. The payment
// is confirmed with the provider that took it: Stripe intents are retrieved
// and PayPal orders are captured. Only a deployment with no provider
// credentials at all accepts the client's word.
func (s *checkoutServiceImpl) CompleteManually(ctx context.Context, input ManualCompletionInput) (*PurchaseResult, error) {
	input.PaymentIntentID = strings.TrimSpace(input.PaymentIntentID)
	if input.PaymentIntentID == "" && input.OrderID == 0 {
		return nil, fmt.Errorf("%w: payment intent id or order id is required", ErrInvalidRequest)
	}

	order, err := s.manualOrder(ctx, input)
	if err != nil {
		return nil, err
	}

	purchase := PurchaseInput{
		TransactionID: input.PaymentIntentID,
		OrderID:       input.OrderID,
		CustomerEmail: input.Email,
		CustomerName:  input.Name,
		Amount:        input.Amount,
		Currency:      input.Currency,
		ProductID:     input.ProductID,
		PaymentMethod: input.PaymentMethod,
	}

	var method model.PaymentMethod
	switch {
	case order != nil:
		if order.Status == model.OrderStatusCompleted {
			return s.purchases.CompletePurchase(ctx, PurchaseInput{TransactionID: order.TransactionID(), OrderID: order.ID})
		}
		purchase.TransactionID = order.TransactionID()
		purchase.OrderID = order.ID
		purchase.PaymentMethod = order.PaymentMethod
		method = order.PaymentMethod
	case strings.HasPrefix(purchase.TransactionID, "pi_"):
		purchase.PaymentMethod = model.PaymentMethodStripe
		method = model.PaymentMethodStripe
	}

	switch method {
	case model.PaymentMethodStripe:
		stripeClient, err := s.gateways.Stripe()
		if err == nil {
			if err := s.confirmStripePayment(ctx, stripeClient, &purchase); err != nil {
				return nil, err
			}
			return s.purchases.CompletePurchase(ctx, purchase)
		}
		if !errors.Is(err, client.ErrGatewayNotConfigured) {
			return nil, err
		}
	case model.PaymentMethodPaypal:
		if _, err := s.gateways.Paypal(); err == nil {
			return s.CapturePaypal(ctx, purchase.TransactionID)
		} else if !errors.Is(err, client.ErrGatewayNotConfigured) {
			return nil, err
		}
	}

	if s.gateways.AnyConfigured() {
		return nil, fmt.Errorf("%w: transaction %q cannot be verified with a configured provider",
			ErrPaymentNotCompleted, purchase.TransactionID)
	}

	s.logger.WarnContext(ctx, "no payment provider configured, accepting unverified manual completion",
		"transaction_id", purchase.TransactionID,
		"order_id", purchase.OrderID,
	)
	return s.purchases.CompletePurchase(ctx, purchase)
}

// RecoverPending re-verifies provider orders left pending longer than
// olderThan. A webhook whose processing failed is acknowledged and never
// redelivered, so this is how such payments get completed.
func (s *checkoutServiceImpl) RecoverPending(ctx context.Context, olderThan time.Duration, limit int) (*PendingReport, error) {
	if !s.gateways.AnyConfigured() {
		return nil, fmt.Errorf("%w: pending orders can only be verified with provider credentials", ErrGatewayNotConfigured)
	}
	if limit <= 0 {
		limit = defaultRecoverLimit
	}

	orders, err := s.orderRepo.ListPendingBefore(ctx, s.clock.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	report := &PendingReport{Scanned: len(orders), Failed: map[uint]string{}}
	for _, order := range orders {
		_, err := s.CompleteManually(ctx, ManualCompletionInput{OrderID: order.ID})
		switch {
		case err == nil:
			report.Completed = append(report.Completed, order.ID)
		case errors.Is(err, ErrPaymentNotCompleted), errors.Is(err, ErrGatewayNotConfigured):
			report.Unpaid = append(report.Unpaid, order.ID)
		default:
			s.logger.ErrorContext(ctx, "pending order recovery failed",
				"order_id", order.ID,
				"transaction_id", order.TransactionID(),
				"error", err,
			)
			report.Failed[order.ID] = err.Error()
		}
	}

	s.logger.InfoContext(ctx, "pending order recovery",
		"scanned", report.Scanned,
		"completed", len(report.Completed),
		"unpaid", len(report.Unpaid),
		"failed", len(report.Failed),
	)
	return report, nil
}

// manualOrder loads the order a manual completion refers to. A transaction
// id with no order yet returns nil.
func (s *checkoutServiceImpl) manualOrder(ctx context.Context, input ManualCompletionInput) (*model.Order, error) {
	if input.OrderID != 0 {
		order, err := s.orderRepo.FindByID(ctx, nil, input.OrderID)
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("find order: %w", err)
		}
		if input.PaymentIntentID != "" && input.PaymentIntentID != order.TransactionID() {
			return nil, fmt.Errorf("%w: order %d belongs to another transaction", ErrInvalidRequest, order.ID)
		}
		return order, nil
	}

	order, err := s.orderRepo.FindByTransactionID(ctx, nil, input.PaymentIntentID)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

func (s *checkoutServiceImpl) confirmStripePayment(ctx context.Context, stripeClient client.StripeClient, purchase *PurchaseInput) error {
	intent, err := stripeClient.GetPaymentIntent(ctx, purchase.TransactionID)
	if err != nil {
		return err
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: payment intent %s is %s", ErrPaymentNotCompleted, intent.ID, intent.Status)
	}

	applyPaymentIntent(purchase, intent)
	return nil
}

// applyPaymentIntent overrides client-reported fields with what Stripe charged.
func applyPaymentIntent(purchase *PurchaseInput, intent *stripe.PaymentIntent) {
	cents := intent.AmountReceived
	if cents == 0 {
		cents = intent.Amount
	}
	amount := client.FromMinorUnits(cents)
	purchase.Amount = &amount
	purchase.Currency = strings.ToUpper(string(intent.Currency))
	purchase.PaymentMethod = model.PaymentMethodStripe

	if email := intent.Metadata["customer_email"]; email != "" {
		purchase.CustomerEmail = email
	} else if purchase.CustomerEmail == "" {
		purchase.CustomerEmail = intent.ReceiptEmail
	}
	if productID := intent.Metadata["product_id"]; productID != "" {
		purchase.ProductID = productID
	}
}

func (s *checkoutServiceImpl) completeFree(ctx context.Context, input CheckoutInput, quote *Quote) (*CheckoutResult, error) {
	transactionID := "coupon-" + uuid.NewString()
	result, err := s.purchases.CompletePurchase(ctx, PurchaseInput{
		TransactionID:  transactionID,
		CustomerEmail:  input.Email,
		CustomerName:   input.Name,
		Amount:         &quote.FinalAmount,
		OriginalAmount: &quote.OriginalAmount,
		Currency:       quote.Currency,
		ProductID:      quote.ProductID,
		PaymentMethod:  model.PaymentMethodCoupon,
		CouponCode:     quote.CouponCode,
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		OrderID:       result.OrderID,
		Provider:      string(model.PaymentMethodCoupon),
		TransactionID: transactionID,
		Amount:        quote.FinalAmount,
		Currency:      quote.Currency,
		Completed:     result,
	}, nil
}

func pendingOrder(input CheckoutInput, quote *Quote, method model.PaymentMethod, transactionID, downloadToken string, now time.Time) *model.Order {
	return &model.Order{
		CustomerEmail:         input.Email,
		CustomerName:          strings.TrimSpace(input.Name),
		ProductID:             quote.ProductID,
		OriginalAmount:        quote.OriginalAmount,
		FinalAmount:           quote.FinalAmount,
		Currency:              quote.Currency,
		Status:                model.OrderStatusPending,
		PaymentMethod:         method,
		ProviderTransactionID: &transactionID,
		DownloadToken:         downloadToken,
		CouponCode:            quote.CouponCode,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

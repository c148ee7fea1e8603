package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

// PurchaseInput describes a confirmed payment. TransactionID is the
// provider's id; OrderID is accepted instead for orders created without one.
type PurchaseInput struct {
	TransactionID  string
	OrderID        uint
	CustomerEmail  string
	CustomerName   string
	Amount         *decimal.Decimal // charged amount, required when no order exists yet
	OriginalAmount *decimal.Decimal // list price before coupon, defaults to Amount
	Currency       string
	ProductID      string
	PaymentMethod  model.PaymentMethod
	CouponCode     string
}

type PurchaseResult struct {
	OrderID          uint   `json:"order_id"`
	CustomerEmail    string `json:"customer_email"`
	ActivationCode   string `json:"activation_code,omitempty"`
	DownloadToken    string `json:"download_token"`
	InvoiceID        uint   `json:"invoice_id,omitempty"`
	InvoiceNumber    string `json:"invoice_number,omitempty"`
	AlreadyCompleted bool   `json:"already_completed"`
}

// PurchaseService is the single path every payment confirmation takes,
// whether it arrives by webhook, provider redirect or manual call.
type PurchaseService interface {
	CompletePurchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error)
}

type purchaseServiceImpl struct {
	txRunner       repository.TxRunner
	orderRepo      repository.OrderRepository
	accountRepo    repository.AccountRepository
	couponRepo     repository.CouponRepository
	activationRepo repository.ActivationRepository
	activation     ActivationService
	invoices       InvoiceService
	notifier       Notifier
	clock          clock.Clock
	logger         *slog.Logger
}

func NewPurchaseService(
	txRunner repository.TxRunner,
	orderRepo repository.OrderRepository,
	accountRepo repository.AccountRepository,
	couponRepo repository.CouponRepository,
	activationRepo repository.ActivationRepository,
	activation ActivationService,
	invoices InvoiceService,
	notifier Notifier,
	clk clock.Clock,
	logger *slog.Logger,
) PurchaseService {
	return &purchaseServiceImpl{
		txRunner:       txRunner,
		orderRepo:      orderRepo,
		accountRepo:    accountRepo,
		couponRepo:     couponRepo,
		activationRepo: activationRepo,
		activation:     activation,
		invoices:       invoices,
		notifier:       notifier,
		clock:          clk,
		logger:         logger,
	}
}

// CompletePurchase moves an order to completed exactly once. The order
// transition, both entitlement projections, coupon usage and the activation
// code commit together; the invoice is issued afterwards and repaired on
// any replay if that step failed.
func (s *purchaseServiceImpl) CompletePurchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	input.TransactionID = strings.TrimSpace(input.TransactionID)
	input.CustomerEmail = normalizeEmail(input.CustomerEmail)
	input.CustomerName = strings.TrimSpace(input.CustomerName)

	if input.TransactionID == "" && input.OrderID == 0 {
		return nil, fmt.Errorf("%w: transaction id or order id is required", ErrInvalidRequest)
	}
	if input.Amount != nil && input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidRequest)
	}

	var (
		order      *model.Order
		activation *model.ActivationCode
		won        bool
	)

	now := s.clock.Now()
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.resolveOrder(ctx, tx, input)
		if err != nil {
			return err
		}
		if order.Status == model.OrderStatusCompleted {
			return nil
		}

		won, err = s.orderRepo.MarkCompleted(ctx, tx, order.ID, now)
		if err != nil {
			return fmt.Errorf("mark order completed: %w", err)
		}
		if !won {
			return nil
		}
		order.Status = model.OrderStatusCompleted
		order.CompletedAt = &now

		if input.Amount != nil && !input.Amount.Equal(order.FinalAmount) {
			s.logger.WarnContext(ctx, "confirmed amount differs from order amount",
				"order_id", order.ID,
				"order_amount", order.FinalAmount.String(),
				"confirmed_amount", input.Amount.String(),
			)
		}

		customer, err := s.accountRepo.ApplyCompletedOrder(ctx, tx, order.CustomerEmail, order.CustomerName, order.FinalAmount, now)
		if err != nil {
			return fmt.Errorf("update entitlement projection: %w", err)
		}
		order.CustomerID = &customer.ID

		if order.CouponCode != "" {
			counted, err := s.couponRepo.IncrementUsage(ctx, tx, order.CouponCode)
			if err != nil {
				return fmt.Errorf("record coupon usage: %w", err)
			}
			if !counted {
				s.logger.WarnContext(ctx, "coupon usage limit reached at completion",
					"order_id", order.ID,
					"coupon", order.CouponCode,
				)
			}
		}

		activation, err = s.activation.Issue(ctx, tx, order, customer.ID)
		if err != nil {
			return err
		}
		order.ActivationCodeID = &activation.ID

		if err := s.orderRepo.SetFulfillment(ctx, tx, order.ID, customer.ID, activation.ID); err != nil {
			return fmt.Errorf("link order fulfillment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !won {
		return s.storedResult(ctx, order.ID)
	}

	s.logger.InfoContext(ctx, "purchase completed",
		"order_id", order.ID,
		"transaction_id", order.TransactionID(),
		"email", order.CustomerEmail,
		"amount", order.FinalAmount.String(),
	)

	result := &PurchaseResult{
		OrderID:        order.ID,
		CustomerEmail:  order.CustomerEmail,
		ActivationCode: activation.Code,
		DownloadToken:  order.DownloadToken,
	}
	s.attachInvoice(ctx, result)

	s.notifier.PurchaseCompleted(ctx, *result)

	return result, nil
}

// resolveOrder finds the order for input or, when a transaction id has
// none yet, inserts one. A concurrent insert for the same transaction id
// is absorbed by the unique index and the stored row is returned.
func (s *purchaseServiceImpl) resolveOrder(ctx context.Context, tx *gorm.DB, input PurchaseInput) (*model.Order, error) {
	if input.TransactionID == "" {
		order, err := s.orderRepo.FindByID(ctx, tx, input.OrderID)
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("find order: %w", err)
		}
		return order, nil
	}

	order, err := s.orderRepo.FindByTransactionID(ctx, tx, input.TransactionID)
	if err == nil {
		return order, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("find order: %w", err)
	}

	if input.Amount == nil {
		return nil, fmt.Errorf("no order for transaction %s and no amount supplied: %w", input.TransactionID, ErrOrderNotFound)
	}
	if input.CustomerEmail == "" {
		return nil, fmt.Errorf("%w: customer email is required", ErrInvalidRequest)
	}

	if _, err := s.orderRepo.InsertIfAbsent(ctx, tx, newOrderFromInput(input)); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	// a row inserted by a concurrent delivery is outside this transaction's snapshot
	order, err = s.orderRepo.FindByTransactionIDForUpdate(ctx, tx, input.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

func newOrderFromInput(input PurchaseInput) *model.Order {
	original := *input.Amount
	if input.OriginalAmount != nil {
		original = *input.OriginalAmount
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	productID := input.ProductID
	if productID == "" {
		productID = repository.DefaultProductID
	}
	method := input.PaymentMethod
	if method == "" {
		method = model.PaymentMethodStripe
	}

	transactionID := input.TransactionID
	return &model.Order{
		CustomerEmail:         input.CustomerEmail,
		CustomerName:          input.CustomerName,
		ProductID:             productID,
		OriginalAmount:        original,
		FinalAmount:           *input.Amount,
		Currency:              currency,
		Status:                model.OrderStatusPending,
		PaymentMethod:         method,
		ProviderTransactionID: &transactionID,
		DownloadToken:         uuid.NewString(),
		CouponCode:            strings.ToUpper(strings.TrimSpace(input.CouponCode)),
	}
}

// storedResult answers a replay with what the first completion produced.
func (s *purchaseServiceImpl) storedResult(ctx context.Context, orderID uint) (*PurchaseResult, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}

	result := &PurchaseResult{
		OrderID:          order.ID,
		CustomerEmail:    order.CustomerEmail,
		DownloadToken:    order.DownloadToken,
		AlreadyCompleted: true,
	}

	if order.ActivationCodeID != nil {
		activation, err := s.activationRepo.FindByID(ctx, nil, *order.ActivationCodeID)
		if err != nil {
			return nil, fmt.Errorf("find activation code: %w", err)
		}
		result.ActivationCode = activation.Code
	} else {
		s.logger.ErrorContext(ctx, "completed order has no activation code", "order_id", order.ID)
	}

	s.attachInvoice(ctx, result)

	return result, nil
}

// attachInvoice issues or loads the invoice. Failure leaves the order
// completed and is logged for the backfill repair.
func (s *purchaseServiceImpl) attachInvoice(ctx context.Context, result *PurchaseResult) {
	invoice, _, err := s.invoices.EnsureForOrder(ctx, result.OrderID)
	if err != nil {
		s.logger.ErrorContext(ctx, "completed order has no invoice",
			"order_id", result.OrderID,
			"error", err,
		)
		return
	}

	result.InvoiceID = invoice.ID
	result.InvoiceNumber = invoice.InvoiceNumber
}

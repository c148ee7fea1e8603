package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

const defaultBackfillLimit = 500

type InvoiceService interface {
	EnsureForOrder(ctx context.Context, orderID uint) (*model.Invoice, bool, error)
	BackfillMissing(ctx context.Context, limit int) (*BackfillReport, error)
	Renderable(ctx context.Context, invoiceID uint) (*RenderableInvoice, error)
	MarkPaid(ctx context.Context, invoiceID uint) error
}

type BackfillReport struct {
	Scanned int             `json:"scanned"`
	Created []string        `json:"created"`
	Failed  map[uint]string `json:"failed,omitempty"`
}

type FormattedAmounts struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

// RenderableInvoice carries everything a template needs to print an invoice.
type RenderableInvoice struct {
	Invoice   *model.Invoice        `json:"invoice"`
	Order     *model.Order          `json:"order"`
	Settings  model.DisplaySettings `json:"settings"`
	Formatted FormattedAmounts      `json:"formatted"`
}

type invoiceServiceImpl struct {
	txRunner      repository.TxRunner
	orderRepo     repository.OrderRepository
	invoiceRepo   repository.InvoiceRepository
	productRepo   repository.ProductRepository
	reconcileRepo repository.ReconcileRepository
	settings      SettingsService
	clock         clock.Clock
	logger        *slog.Logger
}

func NewInvoiceService(
	txRunner repository.TxRunner,
	orderRepo repository.OrderRepository,
	invoiceRepo repository.InvoiceRepository,
	productRepo repository.ProductRepository,
	reconcileRepo repository.ReconcileRepository,
	settings SettingsService,
	clk clock.Clock,
	logger *slog.Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		txRunner:      txRunner,
		orderRepo:     orderRepo,
		invoiceRepo:   invoiceRepo,
		productRepo:   productRepo,
		reconcileRepo: reconcileRepo,
		settings:      settings,
		clock:         clk,
		logger:        logger,
	}
}

// EnsureForOrder returns the invoice of a completed order, issuing it when
// missing. The bool reports whether this call created it.
func (s *invoiceServiceImpl) EnsureForOrder(ctx context.Context, orderID uint) (*model.Invoice, bool, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if repository.IsNotFound(err) {
		return nil, false, ErrOrderNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("find order: %w", err)
	}
	if order.Status != model.OrderStatusCompleted {
		return nil, false, fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ErrOrderNotCompleted)
	}

	existing, err := s.invoiceRepo.FindByOrderID(ctx, nil, order.ID)
	if err == nil {
		return existing, false, nil
	}
	if !repository.IsNotFound(err) {
		return nil, false, fmt.Errorf("find invoice: %w", err)
	}

	invoice, err := s.build(ctx, order)
	if err != nil {
		return nil, false, err
	}
	if err := reconcile(invoice, order); err != nil {
		return nil, false, err
	}

	prefix := fmt.Sprintf("INV-%s-", s.clock.Now().UTC().Format("200601"))
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		invoice.ID = 0
		for i := range invoice.Items {
			invoice.Items[i].ID = 0
			invoice.Items[i].InvoiceID = 0
		}

		var created bool
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			count, err := s.invoiceRepo.CountByNumberPrefix(ctx, tx, prefix)
			if err != nil {
				return fmt.Errorf("count invoices: %w", err)
			}
			invoice.InvoiceNumber = fmt.Sprintf("%s%04d", prefix, count+1+int64(attempt))

			created, err = s.invoiceRepo.CreateWithItems(ctx, tx, invoice)
			return err
		})
		if err != nil {
			return nil, false, fmt.Errorf("create invoice: %w", err)
		}
		if created {
			s.logger.InfoContext(ctx, "invoice issued",
				"order_id", order.ID,
				"invoice_number", invoice.InvoiceNumber,
			)
			return invoice, true, nil
		}

		// either a concurrent caller invoiced this order or the number was taken
		existing, err := s.invoiceRepo.FindByOrderID(ctx, nil, order.ID)
		if err == nil {
			return existing, false, nil
		}
		if !repository.IsNotFound(err) {
			return nil, false, fmt.Errorf("find invoice: %w", err)
		}
	}

	return nil, false, fmt.Errorf("invoice number for order %d: %w", order.ID, ErrIssuanceFailed)
}

func (s *invoiceServiceImpl) build(ctx context.Context, order *model.Order) (*model.Invoice, error) {
	display, err := s.settings.Display(ctx)
	if err != nil {
		return nil, err
	}

	name := order.ProductID
	description := ""
	product, err := s.productRepo.FindByID(ctx, order.ProductID)
	switch {
	case err == nil:
		name = product.Name
		description = product.Description
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("find product: %w", err)
	}
	if order.ProductID == repository.DefaultProductID && display.ProductDisplayName != "" {
		name = display.ProductDisplayName
	}

	now := s.clock.Now()
	subtotal := order.OriginalAmount
	discount := order.DiscountAmount()
	tax := decimal.Zero

	return &model.Invoice{
		OrderID:        order.ID,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		TotalAmount:    subtotal.Add(tax).Sub(discount),
		Currency:       order.Currency,
		Status:         model.InvoiceStatusPaid,
		IssuedAt:       now,
		PaidAt:         &now,
		Items: []model.InvoiceItem{
			{
				ProductName: name,
				Description: description,
				Quantity:    1,
				UnitPrice:   subtotal,
				TotalPrice:  subtotal,
			},
		},
	}, nil
}

// reconcile checks that line items sum to the subtotal and that the
// invoice total matches what the order charged.
func reconcile(invoice *model.Invoice, order *model.Order) error {
	itemsTotal := decimal.Zero
	for _, item := range invoice.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if !lineTotal.Equal(item.TotalPrice) {
			return fmt.Errorf("%w: item %q total %s != %s x %d",
				ErrInvoiceReconciliation, item.ProductName, item.TotalPrice, item.UnitPrice, item.Quantity)
		}
		itemsTotal = itemsTotal.Add(item.TotalPrice)
	}

	if !itemsTotal.Equal(invoice.Subtotal) {
		return fmt.Errorf("%w: items %s != subtotal %s", ErrInvoiceReconciliation, itemsTotal, invoice.Subtotal)
	}

	expected := invoice.Subtotal.Add(invoice.TaxAmount).Sub(invoice.DiscountAmount)
	if !invoice.TotalAmount.Equal(expected) {
		return fmt.Errorf("%w: total %s != %s", ErrInvoiceReconciliation, invoice.TotalAmount, expected)
	}
	if !invoice.TotalAmount.Equal(order.FinalAmount) {
		return fmt.Errorf("%w: total %s != charged %s", ErrInvoiceReconciliation, invoice.TotalAmount, order.FinalAmount)
	}

	return nil
}

// BackfillMissing issues invoices for completed orders that have none.
// Per-order failures are collected in the report.
func (s *invoiceServiceImpl) BackfillMissing(ctx context.Context, limit int) (*BackfillReport, error) {
	if limit <= 0 {
		limit = defaultBackfillLimit
	}

	orderIDs, err := s.reconcileRepo.CompletedOrdersWithoutInvoice(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("scan orders without invoice: %w", err)
	}

	report := &BackfillReport{
		Scanned: len(orderIDs),
		Created: []string{},
		Failed:  map[uint]string{},
	}
	for _, orderID := range orderIDs {
		invoice, created, err := s.EnsureForOrder(ctx, orderID)
		if err != nil {
			s.logger.ErrorContext(ctx, "backfill invoice failed", "order_id", orderID, "error", err)
			report.Failed[orderID] = err.Error()
			continue
		}
		if created {
			report.Created = append(report.Created, invoice.InvoiceNumber)
		}
	}

	s.logger.InfoContext(ctx, "invoice backfill finished",
		"scanned", report.Scanned,
		"created", len(report.Created),
		"failed", len(report.Failed),
	)

	return report, nil
}

func (s *invoiceServiceImpl) Renderable(ctx context.Context, invoiceID uint) (*RenderableInvoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if repository.IsNotFound(err) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice: %w", err)
	}

	order, err := s.orderRepo.FindByID(ctx, nil, invoice.OrderID)
	if repository.IsNotFound(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}

	display, err := s.settings.Display(ctx)
	if err != nil {
		return nil, err
	}

	return &RenderableInvoice{
		Invoice:  invoice,
		Order:    order,
		Settings: display,
		Formatted: FormattedAmounts{
			Subtotal: formatMoney(invoice.Subtotal, invoice.Currency),
			Tax:      formatMoney(invoice.TaxAmount, invoice.Currency),
			Discount: formatMoney(invoice.DiscountAmount, invoice.Currency),
			Total:    formatMoney(invoice.TotalAmount, invoice.Currency),
		},
	}, nil
}

func (s *invoiceServiceImpl) MarkPaid(ctx context.Context, invoiceID uint) error {
	changed, err := s.invoiceRepo.MarkPaid(ctx, invoiceID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	if changed {
		return nil
	}

	// already paid is fine, a missing row is not
	if _, err := s.invoiceRepo.FindByID(ctx, invoiceID); err != nil {
		if repository.IsNotFound(err) {
			return ErrInvoiceNotFound
		}
		return fmt.Errorf("find invoice: %w", err)
	}

	return nil
}

func formatMoney(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2) + " " + code
	}

	// the amount stays a decimal string; only the symbol comes from CLDR
	symbol := message.NewPrinter(language.English).Sprint(currency.Symbol(unit))
	return symbol + " " + amount.StringFixed(2)
}

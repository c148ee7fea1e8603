package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func completedOrder(t *testing.T, h *harness, original, final string) *model.Order {
	t.Helper()

	txID := "pi_" + uuid.NewString()
	completedAt := testNow
	order := &model.Order{
		CustomerEmail:         "demo@example.com",
		ProductID:             "premium_lifetime",
		OriginalAmount:        decimal.RequireFromString(original),
		FinalAmount:           decimal.RequireFromString(final),
		Currency:              "USD",
		Status:                model.OrderStatusCompleted,
		PaymentMethod:         model.PaymentMethodStripe,
		ProviderTransactionID: &txID,
		DownloadToken:         uuid.NewString(),
		CompletedAt:           &completedAt,
	}
	if err := h.orders.Create(context.Background(), nil, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestReconcile(t *testing.T) {
	item := func(unit string, qty int, total string) model.InvoiceItem {
		return model.InvoiceItem{
			ProductName: "Premium",
			Quantity:    qty,
			UnitPrice:   decimal.RequireFromString(unit),
			TotalPrice:  decimal.RequireFromString(total),
		}
	}

	tests := []struct {
		name    string
		items   []model.InvoiceItem
		total   string
		charged string
		wantErr bool
	}{
		{"balanced", []model.InvoiceItem{item("29.99", 1, "29.99")}, "23.99", "23.99", false},
		{"line total wrong", []model.InvoiceItem{item("29.99", 2, "29.99")}, "23.99", "23.99", true},
		{"items do not sum to subtotal", []model.InvoiceItem{item("10.00", 1, "10.00")}, "23.99", "23.99", true},
		{"total off", []model.InvoiceItem{item("29.99", 1, "29.99")}, "29.99", "29.99", true},
		{"charged differs", []model.InvoiceItem{item("29.99", 1, "29.99")}, "23.99", "25.00", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoice := &model.Invoice{
				Subtotal:       decimal.RequireFromString("29.99"),
				TaxAmount:      decimal.Zero,
				DiscountAmount: decimal.RequireFromString("6.00"),
				TotalAmount:    decimal.RequireFromString(tt.total),
				Items:          tt.items,
			}
			order := &model.Order{FinalAmount: decimal.RequireFromString(tt.charged)}

			err := reconcile(invoice, order)
			if tt.wantErr && !errors.Is(err, ErrInvoiceReconciliation) {
				t.Errorf("err = %v, want ErrInvoiceReconciliation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
		})
	}
}

func TestEnsureForOrderNumbersSequentially(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, created, err := h.invoices.EnsureForOrder(ctx, completedOrder(t, h, "29.99", "29.99").ID)
	if err != nil || !created {
		t.Fatalf("EnsureForOrder first = %v, created %v", err, created)
	}
	second, created, err := h.invoices.EnsureForOrder(ctx, completedOrder(t, h, "99.00", "99.00").ID)
	if err != nil || !created {
		t.Fatalf("EnsureForOrder second = %v, created %v", err, created)
	}

	if first.InvoiceNumber != "INV-202605-0001" || second.InvoiceNumber != "INV-202605-0002" {
		t.Errorf("numbers = %s, %s", first.InvoiceNumber, second.InvoiceNumber)
	}
	if first.Status != model.InvoiceStatusPaid || first.PaidAt == nil {
		t.Errorf("invoice status = %s, want paid", first.Status)
	}
	if len(first.Items) != 1 || first.Items[0].Quantity != 1 {
		t.Fatalf("items = %+v, want one line", first.Items)
	}
	if first.Items[0].ProductName != "Ocus Job Hunter Premium" {
		t.Errorf("product name = %q", first.Items[0].ProductName)
	}

	again, created, err := h.invoices.EnsureForOrder(ctx, first.OrderID)
	if err != nil {
		t.Fatalf("EnsureForOrder again: %v", err)
	}
	if created || again.ID != first.ID {
		t.Errorf("repeat ensure created=%v id=%d, want existing %d", created, again.ID, first.ID)
	}

	h.clock.Set(time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC))
	june, _, err := h.invoices.EnsureForOrder(ctx, completedOrder(t, h, "29.99", "29.99").ID)
	if err != nil {
		t.Fatalf("EnsureForOrder june: %v", err)
	}
	if june.InvoiceNumber != "INV-202606-0001" {
		t.Errorf("june number = %s, want INV-202606-0001", june.InvoiceNumber)
	}
}

func TestEnsureForOrderRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, _, err := h.invoices.EnsureForOrder(ctx, 999); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("unknown order err = %v, want ErrOrderNotFound", err)
	}

	pending := completedOrder(t, h, "29.99", "29.99")
	if err := h.db.Model(&model.Order{}).Where("id = ?", pending.ID).Update("status", model.OrderStatusPending).Error; err != nil {
		t.Fatalf("reset status: %v", err)
	}
	if _, _, err := h.invoices.EnsureForOrder(ctx, pending.ID); !errors.Is(err, ErrOrderNotCompleted) {
		t.Errorf("pending order err = %v, want ErrOrderNotCompleted", err)
	}

	overcharged := completedOrder(t, h, "10.00", "12.00")
	if _, _, err := h.invoices.EnsureForOrder(ctx, overcharged.ID); !errors.Is(err, ErrInvoiceReconciliation) {
		t.Errorf("overcharged order err = %v, want ErrInvoiceReconciliation", err)
	}

	if n := h.count(t, &model.Invoice{}); n != 0 {
		t.Errorf("invoices = %d, want none written", n)
	}
	if n := h.count(t, &model.InvoiceItem{}); n != 0 {
		t.Errorf("invoice items = %d, want none written", n)
	}
}

func TestBackfillMissing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	completedOrder(t, h, "29.99", "29.99")
	completedOrder(t, h, "99.00", "79.00")
	bad := completedOrder(t, h, "10.00", "12.00")

	report, err := h.invoices.BackfillMissing(ctx, 0)
	if err != nil {
		t.Fatalf("BackfillMissing: %v", err)
	}
	if report.Scanned != 3 || len(report.Created) != 2 {
		t.Errorf("report = %+v, want 3 scanned and 2 created", report)
	}
	if _, ok := report.Failed[bad.ID]; !ok {
		t.Errorf("failed = %v, want order %d", report.Failed, bad.ID)
	}

	report, err = h.invoices.BackfillMissing(ctx, 0)
	if err != nil {
		t.Fatalf("second BackfillMissing: %v", err)
	}
	if report.Scanned != 1 || len(report.Created) != 0 {
		t.Errorf("second report = %+v, want only the failing order rescanned", report)
	}
}

func TestRenderable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result := h.complete(t, "pi_render", "demo@example.com", "29.99")

	rendered, err := h.invoices.Renderable(ctx, result.InvoiceID)
	if err != nil {
		t.Fatalf("Renderable: %v", err)
	}
	if rendered.Order.ID != result.OrderID {
		t.Errorf("order id = %d, want %d", rendered.Order.ID, result.OrderID)
	}
	if rendered.Settings.CompanyName != "Ocus Job Hunter" {
		t.Errorf("company name = %q", rendered.Settings.CompanyName)
	}
	if !strings.Contains(rendered.Formatted.Total, "29.99") {
		t.Errorf("formatted total = %q, want it to contain 29.99", rendered.Formatted.Total)
	}
	if len(rendered.Invoice.Items) != 1 {
		t.Errorf("items = %d, want 1", len(rendered.Invoice.Items))
	}

	if _, err := h.invoices.Renderable(ctx, 999); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("unknown invoice err = %v, want ErrInvoiceNotFound", err)
	}
}

func TestFormatMoneyKeepsDecimalDigits(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		code   string
		want   string
	}{
		{"usd", "29.99", "USD", "29.99"},
		{"beyond float precision", "123456789012345.67", "USD", "123456789012345.67"},
		{"rounds half up", "0.125", "EUR", "0.13"},
		{"unknown currency", "5", "bogus", "5.00 bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMoney(decimal.RequireFromString(tt.amount), tt.code)
			if !strings.Contains(got, tt.want) {
				t.Errorf("formatMoney(%s, %s) = %q, want it to contain %q", tt.amount, tt.code, got, tt.want)
			}
		})
	}
}

func TestMarkPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result := h.complete(t, "pi_paid", "demo@example.com", "29.99")
	if err := h.db.Model(&model.Invoice{}).Where("id = ?", result.InvoiceID).
		Updates(map[string]interface{}{"status": model.InvoiceStatusOverdue, "paid_at": nil}).Error; err != nil {
		t.Fatalf("mark overdue: %v", err)
	}

	if err := h.invoices.MarkPaid(ctx, result.InvoiceID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	invoice, err := h.invoiceRepo.FindByID(ctx, result.InvoiceID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if invoice.Status != model.InvoiceStatusPaid || invoice.PaidAt == nil {
		t.Errorf("invoice = %s/%v, want paid", invoice.Status, invoice.PaidAt)
	}

	if err := h.invoices.MarkPaid(ctx, result.InvoiceID); err != nil {
		t.Errorf("MarkPaid on paid invoice: %v", err)
	}
	if err := h.invoices.MarkPaid(ctx, 999); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("unknown invoice err = %v, want ErrInvoiceNotFound", err)
	}
}

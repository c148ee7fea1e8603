package service

import (
	"context"
	"log/slog"
)

// Notifier receives completed purchases for customer email delivery.
// Implementations must not block the caller for long and must not fail
// the purchase; errors stay inside the notifier.
type Notifier interface {
	PurchaseCompleted(ctx context.Context, result PurchaseResult)
}

type logNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) PurchaseCompleted(ctx context.Context, result PurchaseResult) {
	n.logger.InfoContext(ctx, "purchase confirmation queued",
		"order_id", result.OrderID,
		"email", result.CustomerEmail,
		"invoice_number", result.InvoiceNumber,
	)
}

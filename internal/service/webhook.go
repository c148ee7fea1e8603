package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/client"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/webhook"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
)

const (
	stripePaymentSucceeded = "payment_intent.succeeded"
	stripePaymentFailed    = "payment_intent.payment_failed"
	stripePaymentCanceled  = "payment_intent.canceled"

	paypalCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	paypalCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	paypalCaptureDeclined  = "PAYMENT.CAPTURE.DECLINED"
	paypalOrderVoided      = "CHECKOUT.ORDER.VOIDED"
)

// WebhookOutcome reports what happened to a verified delivery. Processing
// failures are logged and reported here so the endpoint can still
// acknowledge the delivery.
type WebhookOutcome struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Duplicate bool            `json:"duplicate"`
	Processed bool            `json:"processed"`
	Purchase  *PurchaseResult `json:"-"`
}

type WebhookService interface {
	HandleStripe(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error)
	HandlePaypal(ctx context.Context, headers http.Header, payload []byte) (*WebhookOutcome, error)
}

type webhookServiceImpl struct {
	eventRepo repository.WebhookEventRepository
	orderRepo repository.OrderRepository
	purchases PurchaseService
	gateways  *client.Gateways
	clock     clock.Clock
	logger    *slog.Logger
}

func NewWebhookService(
	eventRepo repository.WebhookEventRepository,
	orderRepo repository.OrderRepository,
	purchases PurchaseService,
	gateways *client.Gateways,
	clk clock.Clock,
	logger *slog.Logger,
) WebhookService {
	return &webhookServiceImpl{
		eventRepo: eventRepo,
		orderRepo: orderRepo,
		purchases: purchases,
		gateways:  gateways,
		clock:     clk,
		logger:    logger,
	}
}

// HandleStripe verifies the signature before touching the payload. Only
// verification failures are returned as errors.
func (s *webhookServiceImpl) HandleStripe(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error) {
	cfg := s.gateways.StripeWebhookConfig()
	event, err := webhook.Verify(payload, signature, cfg.WebhookSecret, cfg.WebhookTolerance, s.clock.Now())
	if err != nil {
		s.logger.WarnContext(ctx, "stripe webhook rejected", "error", err)
		return nil, err
	}

	outcome := &WebhookOutcome{EventID: event.ID, Type: event.Type}
	return s.process(ctx, model.ProviderStripe, outcome, func() error {
		return s.applyStripeEvent(ctx, event, outcome)
	})
}

func (s *webhookServiceImpl) applyStripeEvent(ctx context.Context, event *webhook.Event, outcome *WebhookOutcome) error {
	switch event.Type {
	case stripePaymentSucceeded, stripePaymentFailed, stripePaymentCanceled:
	default:
		s.logger.DebugContext(ctx, "stripe event ignored", "event_id", event.ID, "type", event.Type)
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return fmt.Errorf("%w: %v", webhook.ErrInvalidPayload, err)
	}
	if intent.ID == "" {
		return fmt.Errorf("%w: payment intent without id", webhook.ErrInvalidPayload)
	}

	switch event.Type {
	case stripePaymentSucceeded:
		purchase := PurchaseInput{TransactionID: intent.ID}
		applyPaymentIntent(&purchase, &intent)

		result, err := s.purchases.CompletePurchase(ctx, purchase)
		if err != nil {
			return err
		}
		outcome.Purchase = result
		return nil
	case stripePaymentFailed:
		return s.markUnpaid(ctx, intent.ID, model.OrderStatusFailed)
	default:
		return s.markUnpaid(ctx, intent.ID, model.OrderStatusCanceled)
	}
}

// HandlePaypal asks PayPal to verify the delivery, then applies capture
// and void events.
func (s *webhookServiceImpl) HandlePaypal(ctx context.Context, headers http.Header, payload []byte) (*WebhookOutcome, error) {
	paypalClient, err := s.gateways.Paypal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := paypalClient.VerifyWebhookSignature(ctx, headers, payload); err != nil {
		s.logger.WarnContext(ctx, "paypal webhook rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var event model.PayPalWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" {
		return nil, fmt.Errorf("%w: paypal event", webhook.ErrInvalidPayload)
	}

	outcome := &WebhookOutcome{EventID: event.ID, Type: event.EventType}
	return s.process(ctx, model.ProviderPaypal, outcome, func() error {
		return s.applyPaypalEvent(ctx, &event, outcome)
	})
}

func (s *webhookServiceImpl) applyPaypalEvent(ctx context.Context, event *model.PayPalWebhookEvent, outcome *WebhookOutcome) error {
	resource := event.Resource

	switch event.EventType {
	case paypalCaptureCompleted:
		orderID := resource.SupplementaryData.RelatedIDs.OrderID
		if orderID == "" {
			return fmt.Errorf("%w: capture %s without related order", webhook.ErrInvalidPayload, resource.ID)
		}

		amount, err := decimal.NewFromString(resource.Amount.Value)
		if err != nil {
			return fmt.Errorf("%w: capture amount %q", webhook.ErrInvalidPayload, resource.Amount.Value)
		}

		result, err := s.purchases.CompletePurchase(ctx, PurchaseInput{
			TransactionID: orderID,
			Amount:        &amount,
			Currency:      resource.Amount.Currency,
			PaymentMethod: model.PaymentMethodPaypal,
		})
		if err != nil {
			return err
		}
		outcome.Purchase = result
		return nil
	case paypalCaptureDenied, paypalCaptureDeclined:
		return s.markUnpaid(ctx, resource.SupplementaryData.RelatedIDs.OrderID, model.OrderStatusFailed)
	case paypalOrderVoided:
		return s.markUnpaid(ctx, resource.ID, model.OrderStatusCanceled)
	default:
		s.logger.DebugContext(ctx, "paypal event ignored", "event_id", event.ID, "type", event.EventType)
		return nil
	}
}

// process skips events already recorded and records the ones applied
// successfully. The endpoint acknowledges failed events too, so providers do
// not redeliver them; the order stays pending for RecoverPending and a
// manual resend from the provider dashboard is not swallowed as a duplicate.
func (s *webhookServiceImpl) process(ctx context.Context, provider string, outcome *WebhookOutcome, apply func() error) (*WebhookOutcome, error) {
	seen, err := s.eventRepo.Exists(ctx, provider, outcome.EventID)
	if err != nil {
		s.logger.ErrorContext(ctx, "webhook dedupe lookup failed", "provider", provider, "event_id", outcome.EventID, "error", err)
		return outcome, nil
	}
	if seen {
		outcome.Duplicate = true
		s.logger.InfoContext(ctx, "duplicate webhook event", "provider", provider, "event_id", outcome.EventID)
		return outcome, nil
	}

	if err := apply(); err != nil {
		s.logger.ErrorContext(ctx, "webhook processing failed",
			"provider", provider,
			"event_id", outcome.EventID,
			"type", outcome.Type,
			"error", err,
		)
		return outcome, nil
	}

	if _, err := s.eventRepo.MarkProcessed(ctx, provider, outcome.EventID, outcome.Type); err != nil {
		s.logger.ErrorContext(ctx, "record webhook event failed", "provider", provider, "event_id", outcome.EventID, "error", err)
	}
	outcome.Processed = true

	return outcome, nil
}

func (s *webhookServiceImpl) markUnpaid(ctx context.Context, transactionID string, status model.OrderStatus) error {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return fmt.Errorf("%w: missing transaction id", webhook.ErrInvalidPayload)
	}

	changed, err := s.orderRepo.MarkUnpaid(ctx, transactionID, status)
	if err != nil {
		return fmt.Errorf("mark order %s: %w", status, err)
	}
	if changed {
		s.logger.InfoContext(ctx, "order payment not completed", "transaction_id", transactionID, "status", status)
	}
	return nil
}

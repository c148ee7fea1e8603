package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/dto"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/webhook"

	"github.com/labstack/echo/v4"
)

// provider events are a few KB; anything past this is not a real delivery
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService service.WebhookService
	logger         *slog.Logger
}

func NewWebhookHandler(webhookService service.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

func (h *WebhookHandler) Stripe(c echo.Context) error {
	ctx := c.Request().Context()

	payload, err := readBody(c)
	if err != nil {
		return err
	}

	outcome, err := h.webhookService.HandleStripe(ctx, payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return h.reject(c, "stripe", err)
	}

	return c.JSON(http.StatusOK, webhookResponse(outcome))
}

func (h *WebhookHandler) Paypal(c echo.Context) error {
	ctx := c.Request().Context()

	payload, err := readBody(c)
	if err != nil {
		return err
	}

	outcome, err := h.webhookService.HandlePaypal(ctx, c.Request().Header, payload)
	if err != nil {
		return h.reject(c, "paypal", err)
	}

	return c.JSON(http.StatusOK, webhookResponse(outcome))
}

func (h *WebhookHandler) reject(c echo.Context, provider string, err error) error {
	if errors.Is(err, webhook.ErrInvalidSignature) ||
		errors.Is(err, webhook.ErrStaleTimestamp) ||
		errors.Is(err, webhook.ErrInvalidPayload) {
		h.logger.WarnContext(c.Request().Context(), "webhook rejected", "provider", provider, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Webhook signature verification failed")
	}
	return err
}

func readBody(c echo.Context) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if len(payload) > maxWebhookBody {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "body too large")
	}
	return payload, nil
}

func webhookResponse(outcome *service.WebhookOutcome) dto.WebhookResponse {
	return dto.WebhookResponse{
		Received:  true,
		EventID:   outcome.EventID,
		Duplicate: outcome.Duplicate,
	}
}

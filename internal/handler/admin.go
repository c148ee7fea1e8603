package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/dto"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/middleware"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"

	"github.com/labstack/echo/v4"
)

// AdminConfig carries the credentials the admin surface checks against.
type AdminConfig struct {
	APIKey    string
	JWTSecret []byte
	TokenTTL  time.Duration
}

type AdminHandler struct {
	cfg                AdminConfig
	checkoutService    service.CheckoutService
	invoiceService     service.InvoiceService
	activationService  service.ActivationService
	entitlementService service.EntitlementService
	settingsService    service.SettingsService
	clock              clock.Clock
	logger             *slog.Logger
}

func NewAdminHandler(
	cfg AdminConfig,
	checkoutService service.CheckoutService,
	invoiceService service.InvoiceService,
	activationService service.ActivationService,
	entitlementService service.EntitlementService,
	settingsService service.SettingsService,
	clk clock.Clock,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		cfg:                cfg,
		checkoutService:    checkoutService,
		invoiceService:     invoiceService,
		activationService:  activationService,
		entitlementService: entitlementService,
		settingsService:    settingsService,
		clock:              clk,
		logger:             logger,
	}
}

func (h *AdminHandler) IssueToken(c echo.Context) error {
	var req dto.AdminTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if h.cfg.APIKey == "" || len(h.cfg.JWTSecret) == 0 {
		return echo.NewHTTPError(http.StatusServiceUnavailable, middleware.ErrAdminDisabled.Error())
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.cfg.APIKey)) != 1 {
		h.logger.WarnContext(c.Request().Context(), "admin token rejected", "remote_ip", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
	}

	token, expiresAt, err := middleware.IssueAdminToken(h.cfg.JWTSecret, "admin", h.cfg.TokenTTL, h.clock.Now())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.AdminTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	})
}

func (h *AdminHandler) BackfillInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.BackfillRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	report, err := h.invoiceService.BackfillMissing(ctx, req.Limit)
	if err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "invoice backfill",
		"admin", c.Get(middleware.AdminSubjectKey),
		"scanned", report.Scanned,
		"created", len(report.Created),
		"failed", len(report.Failed),
	)

	return c.JSON(http.StatusOK, report)
}

// RecoverPending re-verifies stale pending orders with their provider.
func (h *AdminHandler) RecoverPending(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PendingRepairRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	olderThan := time.Hour
	if req.OlderThan != "" {
		parsed, err := time.ParseDuration(req.OlderThan)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid older_than")
		}
		olderThan = parsed
	}

	report, err := h.checkoutService.RecoverPending(ctx, olderThan, req.Limit)
	if err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "pending order repair",
		"admin", c.Get(middleware.AdminSubjectKey),
		"completed", len(report.Completed),
	)

	return c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) EnsureInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := uintParam(c, "id")
	if err != nil {
		return err
	}

	invoice, created, err := h.invoiceService.EnsureForOrder(ctx, orderID)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, invoice)
}

func (h *AdminHandler) MarkInvoicePaid(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := uintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.invoiceService.MarkPaid(ctx, invoiceID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ErrorResponse{Success: true, Message: "Invoice marked paid"})
}

func (h *AdminHandler) RevokeCode(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.activationService.Revoke(ctx, c.Param("code")); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ErrorResponse{Success: true, Message: "Activation code revoked"})
}

func (h *AdminHandler) RecomputeProjection(c echo.Context) error {
	ctx := c.Request().Context()

	projection, err := h.entitlementService.Recompute(ctx, c.Param("email"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, projection)
}

func (h *AdminHandler) GetSettings(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.settingsService.Display(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, settings)
}

func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	ctx := c.Request().Context()

	var req model.DisplaySettings
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.settingsService.UpdateDisplay(ctx, req); err != nil {
		return err
	}

	settings, err := h.settingsService.Display(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, settings)
}

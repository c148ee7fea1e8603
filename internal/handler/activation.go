package handler

import (
	"net/http"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/dto"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"

	"github.com/labstack/echo/v4"
)

type ActivationHandler struct {
	activationService service.ActivationService
}

func NewActivationHandler(activationService service.ActivationService) *ActivationHandler {
	return &ActivationHandler{
		activationService: activationService,
	}
}

// Redeem binds a code to the calling extension installation. Rejections
// carry the result body so the extension can show the message.
func (h *ActivationHandler) Redeem(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ActivationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.activationService.Redeem(ctx, req.Code, req.InstallationID, req.DeviceID)
	if err != nil {
		return err
	}

	return c.JSON(activationStatus(result), result)
}

// Validate is the extension's periodic check; it never consumes an activation.
func (h *ActivationHandler) Validate(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ActivationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.activationService.Validate(ctx, req.Code, req.InstallationID)
	if err != nil {
		return err
	}

	return c.JSON(activationStatus(result), result)
}

func activationStatus(result *service.ActivationResult) int {
	switch {
	case result.Valid:
		return http.StatusOK
	case result.Message == service.MsgDailyLimit:
		return http.StatusTooManyRequests
	case result.Message == service.MsgUnknownCode:
		return http.StatusNotFound
	case result.Message == service.MsgAlreadyBound, result.Message == service.MsgRedemptionRaced:
		return http.StatusConflict
	default:
		return http.StatusForbidden
	}
}

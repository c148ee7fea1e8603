package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/dto"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/webhook"

	"github.com/labstack/echo/v4"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidCoupon),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrStaleTimestamp),
		errors.Is(err, webhook.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrInvoiceNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrActivationCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPaymentNotCompleted):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrOrderNotCompleted):
		return http.StatusConflict
	case errors.Is(err, service.ErrGatewayNotConfigured),
		errors.Is(err, service.ErrDatabaseUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every handler error as {success:false, message}.
// Server errors get a generic message so provider or database details
// never reach the client.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusFor(err)
		message := err.Error()

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			if m, ok := httpErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		}

		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
			message = http.StatusText(status)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, dto.ErrorResponse{Success: false, Message: message})
		}
		if err != nil {
			logger.Error("write error response", "error", err)
		}
	}
}

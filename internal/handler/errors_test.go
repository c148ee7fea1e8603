package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"

	"github.com/labstack/echo/v4"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: email is required", service.ErrInvalidRequest), http.StatusBadRequest},
		{service.ErrInvalidCoupon, http.StatusBadRequest},
		{service.ErrInvalidSignature, http.StatusBadRequest},
		{service.ErrOrderNotFound, http.StatusNotFound},
		{service.ErrInvoiceNotFound, http.StatusNotFound},
		{service.ErrActivationCodeNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: pi_1 is processing", service.ErrPaymentNotCompleted), http.StatusPaymentRequired},
		{service.ErrOrderNotCompleted, http.StatusConflict},
		{service.ErrGatewayNotConfigured, http.StatusServiceUnavailable},
		{service.ErrDatabaseUnavailable, http.StatusServiceUnavailable},
		{echo.NewHTTPError(http.StatusTeapot, "short"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	e := echo.New()
	handle := ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	handle(errors.New("dial tcp 10.0.0.5:3306: connection refused"), e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("body leaks internal error: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handle(fmt.Errorf("%w: email is required", service.ErrInvalidRequest), e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec))

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "email is required") {
		t.Errorf("client error = %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want success=false", rec.Body.String())
	}
}

func TestActivationStatus(t *testing.T) {
	tests := []struct {
		result service.ActivationResult
		want   int
	}{
		{service.ActivationResult{Valid: true, Message: service.MsgActivated}, http.StatusOK},
		{service.ActivationResult{Message: service.MsgDailyLimit}, http.StatusTooManyRequests},
		{service.ActivationResult{Message: service.MsgUnknownCode}, http.StatusNotFound},
		{service.ActivationResult{Message: service.MsgAlreadyBound}, http.StatusConflict},
		{service.ActivationResult{Message: service.MsgExpired}, http.StatusForbidden},
	}

	for _, tt := range tests {
		if got := activationStatus(&tt.result); got != tt.want {
			t.Errorf("activationStatus(%q) = %d, want %d", tt.result.Message, got, tt.want)
		}
	}
}

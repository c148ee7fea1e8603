package handler

import (
	"net/http"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/dto"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"

	"github.com/labstack/echo/v4"
)

type PurchaseHandler struct {
	checkoutService    service.CheckoutService
	entitlementService service.EntitlementService
	invoiceService     service.InvoiceService
}

func NewPurchaseHandler(
	checkoutService service.CheckoutService,
	entitlementService service.EntitlementService,
	invoiceService service.InvoiceService,
) *PurchaseHandler {
	return &PurchaseHandler{
		checkoutService:    checkoutService,
		entitlementService: entitlementService,
		invoiceService:     invoiceService,
	}
}

// CompletePurchase is the client callback used when the webhook has not
// been delivered yet. Replays return the stored result.
func (h *PurchaseHandler) CompletePurchase(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CompletePurchaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.CompleteManually(ctx, service.ManualCompletionInput{
		PaymentIntentID: req.PaymentIntentID,
		OrderID:         req.OrderID,
		Email:           req.CustomerEmail,
		Name:            req.CustomerName,
		Amount:          req.Amount,
		Currency:        req.Currency,
		ProductID:       req.ProductID(),
	})
	if err != nil {
		return err
	}

	message := "Purchase completed"
	if result.AlreadyCompleted {
		message = "Purchase already completed"
	}

	return c.JSON(http.StatusOK, dto.PurchaseResponse{
		Success: true,
		Message: message,
		Data:    result,
	})
}

func (h *PurchaseHandler) GetEntitlement(c echo.Context) error {
	ctx := c.Request().Context()

	entitlement, err := h.entitlementService.Get(ctx, c.QueryParam("email"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entitlement)
}

func (h *PurchaseHandler) GetInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uintParam(c, "id")
	if err != nil {
		return err
	}

	invoice, err := h.invoiceService.Renderable(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, invoice)
}

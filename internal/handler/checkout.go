package handler

import (
	"fmt"
	"html"
	"net/http"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/dto"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.checkoutService.Products(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, products)
}

func (h *CheckoutHandler) Quote(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.QuoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	quote, err := h.checkoutService.Quote(ctx, req.ProductID, req.CouponCode)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, quote)
}

func (h *CheckoutHandler) StripeCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.CreateStripeCheckout(ctx, checkoutInput(req))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) PaypalCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.CreatePaypalCheckout(ctx, checkoutInput(req))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// PaypalSuccess is the buyer's return URL after approving the PayPal order.
func (h *CheckoutHandler) PaypalSuccess(c echo.Context) error {
	ctx := c.Request().Context()

	orderID := c.QueryParam("token")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order token")
	}

	result, err := h.checkoutService.CapturePaypal(ctx, orderID)
	if err != nil {
		return err
	}

	page := fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8">
		<title>Payment Complete</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				text-align: center;
				margin-top: 80px;
			}
			.code {
				font-size: 24px;
				font-weight: bold;
				letter-spacing: 2px;
			}
		</style>
	</head>
	<body>
		<h2>Payment approved</h2>
		<p>Your activation code for the Chrome extension:</p>
		<p class="code">%s</p>
		<p>A confirmation with your invoice %s was sent to %s.</p>
	</body>
	</html>
	`,
		html.EscapeString(result.ActivationCode),
		html.EscapeString(result.InvoiceNumber),
		html.EscapeString(result.CustomerEmail),
	)

	return c.HTML(http.StatusOK, page)
}

func (h *CheckoutHandler) BraintreeCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.BraintreeCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.ChargeBraintree(ctx, service.BraintreeInput{
		CheckoutInput: checkoutInput(req.CheckoutRequest),
		Nonce:         req.Nonce,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.PurchaseResponse{
		Success: true,
		Message: "Checkout complete",
		Data:    result,
	})
}

func checkoutInput(req dto.CheckoutRequest) service.CheckoutInput {
	return service.CheckoutInput{
		Email:      req.Email,
		Name:       req.Name,
		ProductID:  req.ProductID,
		CouponCode: req.CouponCode,
	}
}

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/handler"
	appmiddleware "github.com/Houman6460/OCUS-jub-hunter-sub002/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Checkout   *handler.CheckoutHandler
	Purchase   *handler.PurchaseHandler
	Webhook    *handler.WebhookHandler
	Activation *handler.ActivationHandler
	Admin      *handler.AdminHandler
}

type Server struct {
	echo        *echo.Echo
	db          *gorm.DB
	handlers    Handlers
	adminSecret []byte
	clock       clock.Clock
	logger      *slog.Logger
}

func NewServer(db *gorm.DB, handlers Handlers, adminSecret []byte, clk clock.Clock, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:        e,
		db:          db,
		handlers:    handlers,
		adminSecret: adminSecret,
		clock:       clk,
		logger:      logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.health)

	api.GET("/products", s.handlers.Checkout.ListProducts)

	// -------- checkout --------
	checkout := api.Group("/checkout")
	checkout.POST("/quote", s.handlers.Checkout.Quote)
	checkout.POST("/stripe", s.handlers.Checkout.StripeCheckout)
	checkout.POST("/paypal", s.handlers.Checkout.PaypalCheckout)
	checkout.POST("/braintree", s.handlers.Checkout.BraintreeCheckout)

	api.GET("/paypal/success", s.handlers.Checkout.PaypalSuccess)

	api.POST("/purchases/complete", s.handlers.Purchase.CompletePurchase)

	// -------- provider webhooks --------
	webhooks := api.Group("/webhooks")
	webhooks.POST("/stripe", s.handlers.Webhook.Stripe)
	webhooks.POST("/paypal", s.handlers.Webhook.Paypal)

	activation := api.Group("/activation")
	activation.POST("/redeem", s.handlers.Activation.Redeem)
	activation.POST("/validate", s.handlers.Activation.Validate)

	// -------- admin --------
	api.POST("/admin/token", s.handlers.Admin.IssueToken)

	admin := api.Group("/admin", appmiddleware.AdminAuth(s.adminSecret, s.clock))
	// customer data is keyed by guessable email and sequential id
	admin.GET("/entitlements", s.handlers.Purchase.GetEntitlement)
	admin.GET("/invoices/:id", s.handlers.Purchase.GetInvoice)
	admin.POST("/repair/invoices", s.handlers.Admin.BackfillInvoices)
	admin.POST("/repair/pending", s.handlers.Admin.RecoverPending)
	admin.POST("/orders/:id/invoice", s.handlers.Admin.EnsureInvoice)
	admin.POST("/invoices/:id/paid", s.handlers.Admin.MarkInvoicePaid)
	admin.POST("/activation-codes/:code/revoke", s.handlers.Admin.RevokeCode)
	admin.POST("/projections/:email/recompute", s.handlers.Admin.RecomputeProjection)
	admin.GET("/settings", s.handlers.Admin.GetSettings)
	admin.PUT("/settings", s.handlers.Admin.UpdateSettings)
}

func (s *Server) health(c echo.Context) error {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		s.logger.Warn("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/client"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/config"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/handler"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/server"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	db, err := client.OpenDatabase(cfg.Database)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	clk := clock.Real()

	orderRepo := repository.NewOrderRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	activationRepo := repository.NewActivationRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	productRepo := repository.NewProductRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)
	txRunner := repository.NewTxRunner(db)

	reconcileRepo, err := repository.NewReconcileRepository(db)
	if err != nil {
		logger.Error("reconcile repository", "error", err)
		os.Exit(1)
	}

	if err := productRepo.Seed(ctx); err != nil {
		logger.Error("seed products", "error", err)
		os.Exit(1)
	}

	settingsService := service.NewSettingsService(settingsRepo)
	if err := settingsService.SeedFromFile(ctx, cfg.SettingsFile); err != nil {
		logger.Error("seed settings", "file", cfg.SettingsFile, "error", err)
		os.Exit(1)
	}

	gateways := client.NewGateways(cfg)

	activationService := service.NewActivationService(
		activationRepo, clk, logger,
		cfg.Activation.CodePrefix,
		cfg.Activation.DailyLimit,
	)
	invoiceService := service.NewInvoiceService(
		txRunner,
		orderRepo,
		invoiceRepo,
		productRepo,
		reconcileRepo,
		settingsService,
		clk, logger,
	)
	purchaseService := service.NewPurchaseService(
		txRunner,
		orderRepo,
		accountRepo,
		couponRepo,
		activationRepo,
		activationService,
		invoiceService,
		service.NewLogNotifier(logger),
		clk, logger,
	)
	checkoutService := service.NewCheckoutService(
		productRepo,
		couponRepo,
		orderRepo,
		gateways,
		purchaseService,
		cfg.BaseURL,
		clk, logger,
	)
	webhookService := service.NewWebhookService(
		webhookEventRepo,
		orderRepo,
		purchaseService,
		gateways,
		clk, logger,
	)
	entitlementService := service.NewEntitlementService(txRunner, orderRepo, accountRepo)

	adminSecret := []byte(cfg.Admin.JWTSecret)
	handlers := server.Handlers{
		Checkout:   handler.NewCheckoutHandler(checkoutService),
		Purchase:   handler.NewPurchaseHandler(checkoutService, entitlementService, invoiceService),
		Webhook:    handler.NewWebhookHandler(webhookService, logger),
		Activation: handler.NewActivationHandler(activationService),
		Admin: handler.NewAdminHandler(
			handler.AdminConfig{
				APIKey:    cfg.Admin.APIKey,
				JWTSecret: adminSecret,
				TokenTTL:  cfg.Admin.TokenTTL,
			},
			checkoutService,
			invoiceService,
			activationService,
			entitlementService,
			settingsService,
			clk, logger,
		),
	}

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(db, handlers, adminSecret, clk, logger)

	logger.Info("starting HTTP server",
		"addr", serverAddr,
		"environment", cfg.Environment.Name,
		"stripe", cfg.Stripe.Enabled(),
		"paypal", cfg.Paypal.Enabled(),
		"braintree", cfg.BrainTree.Enabled(),
	)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			break
		}

		// provider credentials are reloadable without a restart
		reloaded, err := config.Reload()
		if err != nil {
			logger.Error("reload config", "error", err)
			continue
		}
		gateways.Update(reloaded)
		logger.Info("payment gateways reloaded",
			"stripe", reloaded.Stripe.Enabled(),
			"paypal", reloaded.Paypal.Enabled(),
			"braintree", reloaded.BrainTree.Enabled(),
		)
	}

	logger.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

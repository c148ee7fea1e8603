package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/client"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/config"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/service"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "repair: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var limit int
	var email string
	var settingsFile string
	var olderThan time.Duration

	flagSet := pflag.NewFlagSet("repair", pflag.ContinueOnError)
	flagSet.IntVar(&limit, "limit", 500, "maximum number of orders to repair in one run")
	flagSet.StringVar(&email, "email", "", "customer email whose premium projection is rebuilt (recompute only)")
	flagSet.StringVar(&settingsFile, "settings", "", "seed display settings from this YAML file before repairing")
	flagSet.DurationVar(&olderThan, "older-than", time.Hour, "only re-verify orders pending longer than this (pending only)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("expected exactly one command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log)

	db, err := client.OpenDatabase(cfg.Database)
	if err != nil {
		return err
	}

	ctx := context.Background()
	clk := clock.Real()
	txRunner := repository.NewTxRunner(db)
	orderRepo := repository.NewOrderRepository(db)
	accountRepo := repository.NewAccountRepository(db)

	reconcileRepo, err := repository.NewReconcileRepository(db)
	if err != nil {
		return err
	}

	settingsService := service.NewSettingsService(repository.NewSettingsRepository(db))
	if settingsFile != "" {
		if err := settingsService.SeedFromFile(ctx, settingsFile); err != nil {
			return err
		}
	}

	productRepo := repository.NewProductRepository(db)
	invoiceService := service.NewInvoiceService(
		txRunner,
		orderRepo,
		repository.NewInvoiceRepository(db),
		productRepo,
		reconcileRepo,
		settingsService,
		clk, logger,
	)

	switch rest[0] {
	case "invoices":
		report, err := invoiceService.BackfillMissing(ctx, limit)
		if err != nil {
			return err
		}
		printReport(report)
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d orders could not be invoiced", len(report.Failed))
		}
		return nil

	case "pending":
		activationRepo := repository.NewActivationRepository(db)
		couponRepo := repository.NewCouponRepository(db)
		purchaseService := service.NewPurchaseService(
			txRunner,
			orderRepo,
			accountRepo,
			couponRepo,
			activationRepo,
			service.NewActivationService(activationRepo, clk, logger, cfg.Activation.CodePrefix, cfg.Activation.DailyLimit),
			invoiceService,
			service.NewLogNotifier(logger),
			clk, logger,
		)
		checkoutService := service.NewCheckoutService(
			productRepo,
			couponRepo,
			orderRepo,
			client.NewGateways(cfg),
			purchaseService,
			cfg.BaseURL,
			clk, logger,
		)

		report, err := checkoutService.RecoverPending(ctx, olderThan, limit)
		if err != nil {
			return err
		}
		fmt.Printf("scanned %d pending orders: %d completed, %d still unpaid\n",
			report.Scanned, len(report.Completed), len(report.Unpaid))
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d pending orders could not be recovered", len(report.Failed))
		}
		return nil

	case "recompute":
		if email == "" {
			return fmt.Errorf("recompute requires --email")
		}

		entitlementService := service.NewEntitlementService(txRunner, orderRepo, accountRepo)
		projection, err := entitlementService.Recompute(ctx, email)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(projection)

	default:
		printHelp(flagSet)
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func printReport(report *service.BackfillReport) {
	fmt.Printf("scanned %d completed orders without an invoice\n", report.Scanned)
	for _, number := range report.Created {
		fmt.Printf("  created %s\n", number)
	}

	orderIDs := make([]uint, 0, len(report.Failed))
	for id := range report.Failed {
		orderIDs = append(orderIDs, id)
	}
	sort.Slice(orderIDs, func(i, j int) bool { return orderIDs[i] < orderIDs[j] })
	for _, id := range orderIDs {
		fmt.Printf("  order %d failed: %s\n", id, report.Failed[id])
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Offline repair for the storefront database.

Usage:
  repair [flags] invoices     issue missing invoices for completed orders
  repair [flags] pending      re-verify stale pending orders with their provider
  repair [flags] recompute    rebuild one customer's premium projection

Flags:
%s`, flagSet.FlagUsages())
}

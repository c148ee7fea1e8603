package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newPendingOrder(transactionID string) *model.Order {
	txID := transactionID
	return &model.Order{
		CustomerEmail:         "demo@example.com",
		ProductID:             DefaultProductID,
		OriginalAmount:        decimal.RequireFromString("29.99"),
		FinalAmount:           decimal.RequireFromString("29.99"),
		Currency:              "USD",
		Status:                model.OrderStatusPending,
		PaymentMethod:         model.PaymentMethodStripe,
		ProviderTransactionID: &txID,
		DownloadToken:         uuid.NewString(),
	}
}

func TestOrderInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testutil.NewDB(t))

	inserted, err := repo.InsertIfAbsent(ctx, nil, newPendingOrder("pi_test_1"))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert should report inserted")
	}

	inserted, err = repo.InsertIfAbsent(ctx, nil, newPendingOrder("pi_test_1"))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatal("second insert with the same transaction id should be a no-op")
	}

	order, err := repo.FindByTransactionID(ctx, nil, "pi_test_1")
	if err != nil {
		t.Fatalf("FindByTransactionID: %v", err)
	}
	if order.Status != model.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
}

func TestOrderLockingReadSeesRowInsertedInTransaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)

	err := NewTxRunner(db).WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := repo.FindByTransactionID(ctx, tx, "pi_race"); !IsNotFound(err) {
			t.Fatalf("first read err = %v, want not found", err)
		}
		if _, err := repo.InsertIfAbsent(ctx, tx, newPendingOrder("pi_race")); err != nil {
			return err
		}

		order, err := repo.FindByTransactionIDForUpdate(ctx, tx, "pi_race")
		if err != nil {
			return err
		}
		if order.TransactionID() != "pi_race" {
			t.Errorf("transaction id = %q, want pi_race", order.TransactionID())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	if _, err := repo.FindByTransactionIDForUpdate(ctx, nil, "pi_missing"); !IsNotFound(err) {
		t.Errorf("missing row err = %v, want not found", err)
	}
}

func TestOrderMarkCompletedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testutil.NewDB(t))

	order := newPendingOrder("pi_cas")
	if err := repo.Create(ctx, nil, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Now().UTC()
	won, err := repo.MarkCompleted(ctx, nil, order.ID, now)
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if !won {
		t.Fatal("first MarkCompleted should win")
	}

	won, err = repo.MarkCompleted(ctx, nil, order.ID, now)
	if err != nil {
		t.Fatalf("second MarkCompleted: %v", err)
	}
	if won {
		t.Fatal("second MarkCompleted must not win")
	}

	// failed/canceled transitions never override a completed order
	changed, err := repo.MarkUnpaid(ctx, "pi_cas", model.OrderStatusFailed)
	if err != nil {
		t.Fatalf("MarkUnpaid: %v", err)
	}
	if changed {
		t.Fatal("MarkUnpaid must not touch a completed order")
	}

	if err := repo.SetFulfillment(ctx, nil, order.ID, 7, 3); err != nil {
		t.Fatalf("SetFulfillment: %v", err)
	}

	stored, err := repo.FindByID(ctx, nil, order.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.ActivationCodeID == nil || *stored.ActivationCodeID != 3 {
		t.Errorf("activation_code_id = %v, want 3", stored.ActivationCodeID)
	}
	if stored.Status != model.OrderStatusCompleted || stored.CompletedAt == nil {
		t.Errorf("stored order = %+v, want completed with completed_at", stored)
	}
	if stored.CustomerID == nil || *stored.CustomerID != 7 {
		t.Errorf("customer_id = %v, want 7", stored.CustomerID)
	}
}

func TestAccountApplyCompletedOrderUpdatesBothProjections(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(testutil.NewDB(t))

	if err := repo.CreateUser(ctx, &model.User{Email: "customer@example.com", Name: "Registered"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	if _, err := repo.ApplyCompletedOrder(ctx, nil, "customer@example.com", "Guest", decimal.RequireFromString("29.99"), at); err != nil {
		t.Fatalf("first ApplyCompletedOrder: %v", err)
	}
	customer, err := repo.ApplyCompletedOrder(ctx, nil, "customer@example.com", "", decimal.RequireFromString("10.01"), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("second ApplyCompletedOrder: %v", err)
	}

	if !customer.IsPremium || !customer.ExtensionActivated {
		t.Errorf("customer flags = %+v, want premium and activated", customer.PremiumProjection)
	}
	if customer.TotalOrders != 2 {
		t.Errorf("customer total_orders = %d, want 2", customer.TotalOrders)
	}
	if !customer.TotalSpent.Round(2).Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("customer total_spent = %s, want 40.00", customer.TotalSpent)
	}
	if customer.PremiumActivatedAt == nil || !customer.PremiumActivatedAt.Equal(at) {
		t.Errorf("premium_activated_at = %v, want first activation %v", customer.PremiumActivatedAt, at)
	}
	if customer.Name != "Guest" {
		t.Errorf("customer name = %q, want Guest", customer.Name)
	}

	user, err := repo.FindUserByEmail(ctx, nil, "customer@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if !user.IsPremium || user.TotalOrders != 2 {
		t.Errorf("user projection = %+v, want premium with 2 orders", user.PremiumProjection)
	}
}

func TestAccountFreeOrderDoesNotGrantPremium(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(testutil.NewDB(t))

	customer, err := repo.ApplyCompletedOrder(ctx, nil, "free@example.com", "", decimal.Zero, time.Now().UTC())
	if err != nil {
		t.Fatalf("ApplyCompletedOrder: %v", err)
	}
	if customer.IsPremium {
		t.Error("a zero-amount order must not set is_premium")
	}
	if !customer.ExtensionActivated || customer.TotalOrders != 1 {
		t.Errorf("projection = %+v, want activated with one order", customer.PremiumProjection)
	}
}

func TestActivationBindRejectsExpiredCode(t *testing.T) {
	ctx := context.Background()
	repo := NewActivationRepository(testutil.NewDB(t))

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour)
	code := &model.ActivationCode{Code: "OCUS-EXPR-0001", OrderID: 1, MaxActivations: 2, IsActive: true, ExpiresAt: &expiresAt}
	if created, err := repo.Create(ctx, nil, code); err != nil || !created {
		t.Fatalf("Create = %v, %v", created, err)
	}

	if bound, err := repo.Bind(ctx, nil, code.ID, "dev-A", "", now.Add(2*time.Hour)); err != nil || bound {
		t.Fatalf("Bind after expiry = %v, %v, want false", bound, err)
	}

	stored, err := repo.FindByCode(ctx, nil, "OCUS-EXPR-0001")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if stored.ActivationCount != 0 || stored.InstallationID != "" {
		t.Errorf("expired code was bound: %+v", stored)
	}

	if bound, err := repo.Bind(ctx, nil, code.ID, "dev-A", "", now); err != nil || !bound {
		t.Errorf("Bind before expiry = %v, %v, want true", bound, err)
	}
}

func TestActivationBindRules(t *testing.T) {
	ctx := context.Background()
	repo := NewActivationRepository(testutil.NewDB(t))

	code := &model.ActivationCode{Code: "OCUS-TEST-0001", OrderID: 1, MaxActivations: 1, IsActive: true}
	created, err := repo.Create(ctx, nil, code)
	if err != nil || !created {
		t.Fatalf("Create = %v, %v", created, err)
	}

	duplicate, err := repo.Create(ctx, nil, &model.ActivationCode{Code: "OCUS-TEST-0001", OrderID: 2, MaxActivations: 1, IsActive: true})
	if err != nil {
		t.Fatalf("duplicate Create: %v", err)
	}
	if duplicate {
		t.Fatal("duplicate code must not be inserted")
	}

	now := time.Now().UTC()
	bound, err := repo.Bind(ctx, nil, code.ID, "dev-A", "chrome-1", now)
	if err != nil || !bound {
		t.Fatalf("first Bind = %v, %v", bound, err)
	}

	if bound, _ := repo.Bind(ctx, nil, code.ID, "dev-B", "", now); bound {
		t.Error("Bind from a second installation must fail")
	}
	if bound, _ := repo.Bind(ctx, nil, code.ID, "dev-A", "", now); bound {
		t.Error("Bind past max_activations must fail")
	}

	stored, err := repo.FindByCode(ctx, nil, "OCUS-TEST-0001")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if stored.ActivationCount != 1 || stored.InstallationID != "dev-A" || stored.DeviceID != "chrome-1" {
		t.Errorf("stored code = %+v", stored)
	}

	revoked, err := repo.Revoke(ctx, "OCUS-TEST-0001", now)
	if err != nil || !revoked {
		t.Fatalf("Revoke = %v, %v", revoked, err)
	}
	stored, _ = repo.FindByCode(ctx, nil, "OCUS-TEST-0001")
	if !stored.IsRevoked || stored.IsActive {
		t.Errorf("revoked code = %+v", stored)
	}
}

func TestActivationDailyCounter(t *testing.T) {
	ctx := context.Background()
	repo := NewActivationRepository(testutil.NewDB(t))

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementDailyCount(ctx, nil, 42, "2026-10-16")
		if err != nil {
			t.Fatalf("IncrementDailyCount: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}

	got, err := repo.IncrementDailyCount(ctx, nil, 42, "2026-10-17")
	if err != nil {
		t.Fatalf("IncrementDailyCount next day: %v", err)
	}
	if got != 1 {
		t.Errorf("next day count = %d, want 1", got)
	}
}

func TestInvoiceCreateWithItemsIsIdempotentPerOrder(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewInvoiceRepository(db)
	tx := NewTxRunner(db)

	newInvoice := func(number string) *model.Invoice {
		return &model.Invoice{
			InvoiceNumber:  number,
			OrderID:        11,
			CustomerEmail:  "demo@example.com",
			Subtotal:       decimal.RequireFromString("29.99"),
			TaxAmount:      decimal.Zero,
			DiscountAmount: decimal.Zero,
			TotalAmount:    decimal.RequireFromString("29.99"),
			Currency:       "USD",
			Status:         model.InvoiceStatusPaid,
			IssuedAt:       time.Now().UTC(),
			Items: []model.InvoiceItem{{
				ProductName: "Premium",
				Quantity:    1,
				UnitPrice:   decimal.RequireFromString("29.99"),
				TotalPrice:  decimal.RequireFromString("29.99"),
			}},
		}
	}

	var created bool
	err := tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = repo.CreateWithItems(ctx, tx, newInvoice("INV-202610-0001"))
		return err
	})
	if err != nil || !created {
		t.Fatalf("first CreateWithItems = %v, %v", created, err)
	}

	created, err = repo.CreateWithItems(ctx, nil, newInvoice("INV-202610-0002"))
	if err != nil {
		t.Fatalf("second CreateWithItems: %v", err)
	}
	if created {
		t.Fatal("a second invoice for the same order must not be created")
	}

	invoice, err := repo.FindByOrderID(ctx, nil, 11)
	if err != nil {
		t.Fatalf("FindByOrderID: %v", err)
	}
	if invoice.InvoiceNumber != "INV-202610-0001" || len(invoice.Items) != 1 {
		t.Errorf("invoice = %+v", invoice)
	}

	count, err := repo.CountByNumberPrefix(ctx, nil, "INV-202610-")
	if err != nil || count != 1 {
		t.Errorf("CountByNumberPrefix = %d, %v", count, err)
	}

	if paid, _ := repo.MarkPaid(ctx, invoice.ID, time.Now()); paid {
		t.Error("MarkPaid on an already paid invoice must be a no-op")
	}
}

func TestReconcileFindsCompletedOrdersWithoutInvoice(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	orders := NewOrderRepository(db)
	invoices := NewInvoiceRepository(db)

	reconcile, err := NewReconcileRepository(db)
	if err != nil {
		t.Fatalf("NewReconcileRepository: %v", err)
	}

	var completed []uint
	for _, txID := range []string{"pi_a", "pi_b", "pi_c"} {
		order := newPendingOrder(txID)
		if err := orders.Create(ctx, nil, order); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if txID != "pi_c" {
			if _, err := orders.MarkCompleted(ctx, nil, order.ID, time.Now().UTC()); err != nil {
				t.Fatalf("MarkCompleted: %v", err)
			}
			completed = append(completed, order.ID)
		}
	}

	_, err = invoices.CreateWithItems(ctx, nil, &model.Invoice{
		InvoiceNumber: "INV-202610-0001",
		OrderID:       completed[0],
		CustomerEmail: "demo@example.com",
		Currency:      "USD",
		Status:        model.InvoiceStatusPaid,
		IssuedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateWithItems: %v", err)
	}

	ids, err := reconcile.CompletedOrdersWithoutInvoice(ctx, 100)
	if err != nil {
		t.Fatalf("CompletedOrdersWithoutInvoice: %v", err)
	}
	if len(ids) != 1 || ids[0] != completed[1] {
		t.Errorf("ids = %v, want [%d]", ids, completed[1])
	}
}

func TestCouponUsageLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testutil.NewDB(t))

	err := repo.Create(ctx, &model.Coupon{
		Code:         " launch20 ",
		DiscountType: model.DiscountTypePercent,
		Value:        decimal.NewFromInt(20),
		Active:       true,
		UsageLimit:   1,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	coupon, err := repo.FindByCode(ctx, "Launch20")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if coupon.Code != "LAUNCH20" {
		t.Errorf("code = %q, want LAUNCH20", coupon.Code)
	}

	if ok, _ := repo.IncrementUsage(ctx, nil, "launch20"); !ok {
		t.Fatal("first usage should be recorded")
	}
	if ok, _ := repo.IncrementUsage(ctx, nil, "launch20"); ok {
		t.Fatal("usage beyond the limit must be refused")
	}
}

func TestWebhookEventMarkProcessedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewWebhookEventRepository(testutil.NewDB(t))

	first, err := repo.MarkProcessed(ctx, model.ProviderStripe, "evt_1", "payment_intent.succeeded")
	if err != nil || !first {
		t.Fatalf("first MarkProcessed = %v, %v", first, err)
	}
	second, err := repo.MarkProcessed(ctx, model.ProviderStripe, "evt_1", "payment_intent.succeeded")
	if err != nil {
		t.Fatalf("second MarkProcessed: %v", err)
	}
	if second {
		t.Error("the same event must only be recorded once")
	}

	// same id from another provider is a different event
	other, err := repo.MarkProcessed(ctx, model.ProviderPaypal, "evt_1", "PAYMENT.CAPTURE.COMPLETED")
	if err != nil || !other {
		t.Errorf("other provider MarkProcessed = %v, %v", other, err)
	}

	exists, err := repo.Exists(ctx, model.ProviderStripe, "evt_1")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v", exists, err)
	}
}

func TestSettingsSeedKeepsStoredValues(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(testutil.NewDB(t))

	if err := repo.Set(ctx, model.SettingCompanyName, "Stored Ltd"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := repo.SeedDefaults(ctx, map[string]string{
		model.SettingCompanyName:  "Seed Ltd",
		model.SettingCompanyEmail: "billing@example.com",
	})
	if err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}

	values, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if values[model.SettingCompanyName] != "Stored Ltd" {
		t.Errorf("company_name = %q, want stored value", values[model.SettingCompanyName])
	}
	if values[model.SettingCompanyEmail] != "billing@example.com" {
		t.Errorf("company_email = %q, want seeded value", values[model.SettingCompanyEmail])
	}
}

func TestProductSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testutil.NewDB(t))

	for i := 0; i < 2; i++ {
		if err := repo.Seed(ctx); err != nil {
			t.Fatalf("Seed #%d: %v", i+1, err)
		}
	}

	products, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(products) != 2 || products[0].ID != DefaultProductID {
		t.Errorf("products = %+v", products)
	}
}

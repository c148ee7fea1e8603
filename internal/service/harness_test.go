package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/client"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/config"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	db    *gorm.DB
	clock *clock.Fake

	orders      repository.OrderRepository
	accounts    repository.AccountRepository
	coupons     repository.CouponRepository
	activations repository.ActivationRepository
	invoiceRepo repository.InvoiceRepository
	events      repository.WebhookEventRepository

	gateways  *client.Gateways
	stripe    *fakeStripe
	paypal    *fakePaypal
	braintree *fakeBraintree
	notifier  *recordingNotifier

	settings     SettingsService
	activation   ActivationService
	invoices     InvoiceService
	purchases    PurchaseService
	checkout     CheckoutService
	webhooks     WebhookService
	entitlements EntitlementService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db := testutil.NewDB(t)
	clk := clock.NewFake(testNow)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		db:          db,
		clock:       clk,
		orders:      repository.NewOrderRepository(db),
		accounts:    repository.NewAccountRepository(db),
		coupons:     repository.NewCouponRepository(db),
		activations: repository.NewActivationRepository(db),
		invoiceRepo: repository.NewInvoiceRepository(db),
		events:      repository.NewWebhookEventRepository(db),
		stripe:      newFakeStripe(),
		paypal:      &fakePaypal{captures: map[string]decimal.Decimal{}},
		braintree:   &fakeBraintree{},
		notifier:    &recordingNotifier{},
	}

	productRepo := repository.NewProductRepository(db)
	if err := productRepo.Seed(ctx); err != nil {
		t.Fatalf("seed products: %v", err)
	}

	reconcileRepo, err := repository.NewReconcileRepository(db)
	if err != nil {
		t.Fatalf("reconcile repository: %v", err)
	}

	h.settings = NewSettingsService(repository.NewSettingsRepository(db))
	if err := h.settings.SeedFromFile(ctx, filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	cfg := &config.Config{
		Stripe: config.Stripe{
			SecretKey:        "sk_test_fake",
			WebhookSecret:    testWebhookSecret,
			WebhookTolerance: 5 * time.Minute,
		},
		Paypal:    config.Paypal{ClientID: "client", ClientSecret: "secret", WebhookID: "WH-1"},
		BrainTree: config.Braintree{MerchantID: "merchant", PublicKey: "public", PrivateKey: "private"},
	}
	gateways := client.NewGateways(cfg)
	gateways.SetStripe(h.stripe)
	gateways.SetPaypal(h.paypal)
	gateways.SetBraintree(h.braintree)
	h.gateways = gateways

	txRunner := repository.NewTxRunner(db)
	h.activation = NewActivationService(h.activations, clk, logger, "OCUS", 100)
	h.invoices = NewInvoiceService(txRunner, h.orders, h.invoiceRepo, productRepo, reconcileRepo, h.settings, clk, logger)
	h.purchases = NewPurchaseService(txRunner, h.orders, h.accounts, h.coupons, h.activations, h.activation, h.invoices, h.notifier, clk, logger)
	h.checkout = NewCheckoutService(productRepo, h.coupons, h.orders, gateways, h.purchases, "http://shop.test", clk, logger)
	h.webhooks = NewWebhookService(h.events, h.orders, h.purchases, gateways, clk, logger)
	h.entitlements = NewEntitlementService(txRunner, h.orders, h.accounts)

	return h
}

func (h *harness) complete(t *testing.T, transactionID, email, amount string) *PurchaseResult {
	t.Helper()

	value := decimal.RequireFromString(amount)
	result, err := h.purchases.CompletePurchase(context.Background(), PurchaseInput{
		TransactionID: transactionID,
		CustomerEmail: email,
		Amount:        &value,
		Currency:      "usd",
		PaymentMethod: model.PaymentMethodStripe,
	})
	if err != nil {
		t.Fatalf("CompletePurchase(%s): %v", transactionID, err)
	}
	return result
}

func (h *harness) count(t *testing.T, value interface{}) int64 {
	t.Helper()

	var n int64
	if err := h.db.Model(value).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", value, err)
	}
	return n
}

func (h *harness) customer(t *testing.T, email string) *model.Customer {
	t.Helper()

	customer, err := h.accounts.FindCustomerByEmail(context.Background(), nil, email)
	if err != nil {
		t.Fatalf("FindCustomerByEmail(%s): %v", email, err)
	}
	return customer
}

func mustDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Round(2).Equal(decimal.RequireFromString(want)) {
		t.Errorf("amount = %s, want %s", got, want)
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []PurchaseResult
}

func (n *recordingNotifier) PurchaseCompleted(_ context.Context, result PurchaseResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, result)
}

func (n *recordingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.results)
}

type fakeStripe struct {
	mu      sync.Mutex
	intents map[string]*stripe.PaymentIntent
	created int
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{intents: map[string]*stripe.PaymentIntent{}}
}

func (f *fakeStripe) CreatePaymentIntent(_ context.Context, input client.PaymentIntentInput) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created++
	id := fmt.Sprintf("pi_fake_%d", f.created)
	intent := &stripe.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       client.ToMinorUnits(input.Amount),
		Currency:     stripe.Currency(strings.ToLower(input.Currency)),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		Metadata: map[string]string{
			"customer_email": input.CustomerEmail,
			"product_id":     input.ProductID,
			"order_ref":      input.OrderRef,
		},
	}
	f.intents[id] = intent
	return intent, nil
}

func (f *fakeStripe) GetPaymentIntent(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	intent, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such payment intent")
	}
	copied := *intent
	return &copied, nil
}

func (f *fakeStripe) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	intent := f.intents[id]
	intent.Status = stripe.PaymentIntentStatusSucceeded
	intent.AmountReceived = intent.Amount
}

type fakePaypal struct {
	mu           sync.Mutex
	created      int
	captureCalls int
	captures     map[string]decimal.Decimal
	verifyErr    error
}

func (f *fakePaypal) CreateOrder(_ context.Context, input client.PaypalOrderInput) (*client.CreateOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created++
	id := fmt.Sprintf("PAYPAL-%d", f.created)
	f.captures[id] = input.Amount
	return &client.CreateOrderResponse{
		OrderID:    id,
		ApproveURL: "https://www.sandbox.paypal.com/checkoutnow?token=" + id,
	}, nil
}

func (f *fakePaypal) CaptureOrder(_ context.Context, orderID string) (*model.PaypalOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.captureCalls++
	amount, ok := f.captures[orderID]
	if !ok {
		return nil, errors.New("unknown paypal order")
	}

	return &model.PaypalOrderResult{
		ID:     orderID,
		Status: "COMPLETED",
		PurchaseUnits: []model.PurchaseUnit{{
			Payments: model.Payments{Captures: []model.Capture{{
				ID:     "CAPTURE-" + orderID,
				Status: "COMPLETED",
				Amount: model.Amount{Currency: "USD", Value: amount.StringFixed(2)},
			}}},
		}},
	}, nil
}

func (f *fakePaypal) VerifyWebhookSignature(_ context.Context, _ http.Header, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyErr
}

type fakeBraintree struct {
	mu      sync.Mutex
	charges int
}

const declinedNonce = "fake-processor-declined-visa-nonce"

func (f *fakeBraintree) ChargeNonce(_ context.Context, nonce string, _ decimal.Decimal, _ string) (*client.BraintreeCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if nonce == declinedNonce {
		return nil, errors.New("braintree sale declined: processor_declined")
	}
	f.charges++
	return &client.BraintreeCharge{
		TransactionID: fmt.Sprintf("bt_txn_%d", f.charges),
		Status:        "submitted_for_settlement",
	}, nil
}

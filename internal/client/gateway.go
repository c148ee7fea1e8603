package client

import (
	"errors"
	"sync"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/config"
)

var ErrGatewayNotConfigured = errors.New("payment gateway not configured")

// Gateways hands out payment provider clients built from the current
// credentials. Clients are constructed on first use and rebuilt after
// Update, so reloading settings never mutates a client another request holds.
type Gateways struct {
	mu sync.Mutex

	stripeCfg    config.Stripe
	paypalCfg    config.Paypal
	braintreeCfg config.Braintree

	stripe    StripeClient
	paypal    PaypalClient
	braintree BraintreeClient
}

func NewGateways(cfg *config.Config) *Gateways {
	return &Gateways{
		stripeCfg:    cfg.Stripe,
		paypalCfg:    cfg.Paypal,
		braintreeCfg: cfg.BrainTree,
	}
}

// Update swaps credentials; clients whose credentials changed are dropped
// and rebuilt lazily.
func (g *Gateways) Update(cfg *config.Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cfg.Stripe.SecretKey != g.stripeCfg.SecretKey {
		g.stripe = nil
	}
	if cfg.Paypal != g.paypalCfg {
		g.paypal = nil
	}
	if cfg.BrainTree != g.braintreeCfg {
		g.braintree = nil
	}

	g.stripeCfg = cfg.Stripe
	g.paypalCfg = cfg.Paypal
	g.braintreeCfg = cfg.BrainTree
}

func (g *Gateways) Stripe() (StripeClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.stripeCfg.Enabled() {
		return nil, ErrGatewayNotConfigured
	}
	if g.stripe == nil {
		g.stripe = NewStripeClient(g.stripeCfg.SecretKey)
	}
	return g.stripe, nil
}

func (g *Gateways) Paypal() (PaypalClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.paypalCfg.Enabled() {
		return nil, ErrGatewayNotConfigured
	}
	if g.paypal == nil {
		cfg := g.paypalCfg
		g.paypal = NewPaypalClient(&cfg)
	}
	return g.paypal, nil
}

func (g *Gateways) Braintree() (BraintreeClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.braintreeCfg.Enabled() {
		return nil, ErrGatewayNotConfigured
	}
	if g.braintree == nil {
		cfg := g.braintreeCfg
		g.braintree = NewBraintreeClient(&cfg)
	}
	return g.braintree, nil
}

// AnyConfigured reports whether credentials exist for at least one provider.
func (g *Gateways) AnyConfigured() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stripeCfg.Enabled() || g.paypalCfg.Enabled() || g.braintreeCfg.Enabled()
}

// StripeWebhookConfig returns the current signing secret and tolerance.
func (g *Gateways) StripeWebhookConfig() config.Stripe {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stripeCfg
}

// SetStripe, SetPaypal and SetBraintree install prebuilt clients, used when
// wiring fakes.
func (g *Gateways) SetStripe(c StripeClient) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stripe = c
}

func (g *Gateways) SetPaypal(c PaypalClient) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paypal = c
}

func (g *Gateways) SetBraintree(c BraintreeClient) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.braintree = c
}

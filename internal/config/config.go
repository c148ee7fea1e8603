package config

import "time"

type Config struct {
	Environment  Environment
	Log          Log
	HTTP         HTTPServer
	Database     Database
	BaseURL      string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	SettingsFile string `env:"SETTINGS_FILE" envDefault:"settings.yaml"`

	Paypal     Paypal     `envPrefix:"PAYPAL_"`
	BrainTree  Braintree  `envPrefix:"BRAINTREE_"`
	Stripe     Stripe     `envPrefix:"STRIPE_"`
	Admin      Admin      `envPrefix:"ADMIN_"`
	Activation Activation `envPrefix:"ACTIVATION_"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
}

// Enabled reports whether PayPal REST credentials are present.
func (p Paypal) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT" envDefault:"sandbox"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

func (b Braintree) Enabled() bool {
	return b.MerchantID != "" && b.PublicKey != "" && b.PrivateKey != ""
}

type Stripe struct {
	SecretKey        string        `env:"SECRET_KEY"`
	WebhookSecret    string        `env:"WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
}

func (s Stripe) Enabled() bool {
	return s.SecretKey != ""
}

type Admin struct {
	APIKey    string        `env:"API_KEY"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
}

type Activation struct {
	CodePrefix string `env:"CODE_PREFIX" envDefault:"OCUS"`
	DailyLimit int    `env:"DAILY_LIMIT" envDefault:"100"`
}

type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"mysql"`
	URL    string `env:"DATABASE_URL"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

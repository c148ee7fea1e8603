package model

import "time"

const (
	ProviderStripe    = "stripe"
	ProviderPaypal    = "paypal"
	ProviderBraintree = "braintree"
)

type WebhookEvent struct {
	ID          uint      `gorm:"primaryKey"`
	Provider    string    `gorm:"size:20;not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	EventID     string    `gorm:"size:128;not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	EventType   string    `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

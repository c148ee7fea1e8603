package model

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Product{},
		&Coupon{},
		&Customer{},
		&User{},
		&Order{},
		&ActivationCode{},
		&ActivationValidation{},
		&Invoice{},
		&InvoiceItem{},
		&WebhookEvent{},
		&Setting{},
	}
}

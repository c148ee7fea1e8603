package model

// Wire shapes for the PayPal Orders v2 API and PayPal webhook events.

type Payer struct {
	PayerID string `json:"payer_id"`
	Email   string `json:"email_address"`
	Name    struct {
		GivenName string `json:"given_name"`
		Surname   string `json:"surname"`
	} `json:"name"`
}

type PaypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type Amount struct {
	Currency string `json:"currency_code"`
	Value    string `json:"value"`
}

type Capture struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	CustomID string `json:"custom_id"`
	Amount   Amount `json:"amount"`
}

type Payments struct {
	Captures []Capture `json:"captures"`
}

type PurchaseUnit struct {
	ReferenceID string   `json:"reference_id"`
	CustomID    string   `json:"custom_id"`
	Payments    Payments `json:"payments"`
}

// PaypalOrderResult is the body returned by create and capture order calls.
type PaypalOrderResult struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Links         []PaypalLink   `json:"links"`
	Payer         Payer          `json:"payer"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// CompletedCapture returns the first completed capture, if any.
func (r *PaypalOrderResult) CompletedCapture() (*Capture, bool) {
	for _, unit := range r.PurchaseUnits {
		for i := range unit.Payments.Captures {
			if unit.Payments.Captures[i].Status == "COMPLETED" {
				return &unit.Payments.Captures[i], true
			}
		}
	}
	return nil, false
}

type RelatedIDs struct {
	OrderID string `json:"order_id"`
}

type SupplementaryData struct {
	RelatedIDs RelatedIDs `json:"related_ids"`
}

type PaypalResource struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	CustomID          string            `json:"custom_id"`
	Amount            Amount            `json:"amount"`
	SupplementaryData SupplementaryData `json:"supplementary_data"`
}

type PayPalWebhookEvent struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	CreateTime string         `json:"create_time"`
	Resource   PaypalResource `json:"resource"`
}

package models

import "time"

// WebhookPayload is the Flutterwave webhook envelope.
type WebhookPayload struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	ID       int64   `json:"id"`
	TxRef    string  `json:"tx_ref"`
	FlwRef   string  `json:"flw_ref"`
	Amount   float64 `json:"amount"`
	Status   string  `json:"status"`
	Currency string  `json:"currency"`
}

const EventChargeCompleted = "charge.completed"

// Payment event types published after reconciliation.
const (
	PaymentSucceededEvent = "payment_succeeded"
	PaymentFailedEvent    = "payment_failed"
)

type PaymentEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Reference string    `json:"reference"`
	Amount    float64   `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Source    string    `json:"source"` // "verify" | "webhook"
	Timestamp time.Time `json:"timestamp"`
}

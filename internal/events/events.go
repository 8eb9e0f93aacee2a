package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPaid        = "OrderPaid"
	EventOrderCancelled   = "OrderCancelled"
	EventRechargeResolved = "RechargeResolved"
)

const (
	TopicOrderPaid        = "shop.order.paid"
	TopicOrderCancelled   = "shop.order.cancelled"
	TopicRechargeResolved = "shop.wallet.recharge.resolved"
)

// PartitionKey keeps all events for one aggregate on one partition so
// consumers see them in order.
func PartitionKey(id string) []byte { return []byte(id) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderLine struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

type OrderPaidPayload struct {
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	Lines      []OrderLine `json:"lines"`
	TotalCents int64       `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

type RechargeResolvedPayload struct {
	RequestID   string `json:"request_id"`
	UserID      string `json:"user_id"`
	Decision    string `json:"decision"`
	AmountCents int64  `json:"amount_cents"`
}

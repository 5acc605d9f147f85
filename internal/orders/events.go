package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCompleted = "OrderCompleted"
	EventOrderExpired   = "OrderExpired"
)

const (
	TopicOrderCreated   = "order.created"
	TopicOrderCompleted = "order.completed"
	TopicOrderExpired   = "order.expired"
)

// PartitionKey keys kafka messages by order id so all events of one
// order keep their relative order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	OrderID      string          `json:"order_id"`
	Payload      json.RawMessage `json:"payload"`
}

type LineQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID string    `json:"order_id"`
	Lines   []LineQty `json:"lines"`
	Total   float64   `json:"total"`
}

type OrderCompletedPayload struct {
	OrderID string    `json:"order_id"`
	Lines   []LineQty `json:"lines"`
}

type OrderExpiredPayload struct {
	OrderID string    `json:"order_id"`
	Lines   []LineQty `json:"lines"`
}

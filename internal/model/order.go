package model

import (
	"time"
)

// EventNewOrder is the event name the host relays for a placed order.
const EventNewOrder = "newOrder"

// OrderStatusProcessing is the status of a freshly recorded order.
const OrderStatusProcessing = "Обработка"

// OrderEvent is the message a session sends through the host data channel.
// Wire form: {"event":"newOrder","data":{"items":[...],"total_amount":N}}.
type OrderEvent struct {
	Event string    `json:"event"`
	Data  OrderData `json:"data"`
}

// OrderData is the order payload: a cart snapshot and its total.
type OrderData struct {
	Items       []CartLine `json:"items"`
	TotalAmount Amount     `json:"total_amount"`
}

// NewOrderEvent snapshots a cart into an order event.
func NewOrderEvent(c Cart) OrderEvent {
	return OrderEvent{
		Event: EventNewOrder,
		Data: OrderData{
			Items:       c.Clone(),
			TotalAmount: c.Total(),
		},
	}
}

// Order is an order recorded by the order intake.
type Order struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Items       []CartLine `json:"items"`
	TotalAmount Amount     `json:"total_amount"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UserIDHeader carries the chat user ID of an order posted over HTTP.
const UserIDHeader = "X-Telegram-User-Id"

// MetadataUserID is the message metadata key carrying the chat user ID.
const MetadataUserID = "user_id"

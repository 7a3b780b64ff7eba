// Package orders turns newOrder events relayed from a storefront host into
// recorded orders and the confirmation text sent back to the buyer.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// Store records orders. inventory.Repository implements it.
type Store interface {
	CreateOrder(ctx context.Context, userID int64, data model.OrderData) (*model.Order, error)
	RecentOrders(ctx context.Context, userID int64, limit int) ([]model.Order, error)
}

// RecentLimit is how many orders History returns.
const RecentLimit = 5

// Processor handles incoming order events.
type Processor struct {
	store  Store
	logger *slog.Logger
}

// NewProcessor creates a processor recording orders in store.
func NewProcessor(store Store, logger *slog.Logger) *Processor {
	return &Processor{store: store, logger: logger}
}

// Result is the outcome of a processed event. Order is nil when the event was
// ignored (not a newOrder event, or no items).
type Result struct {
	Order    *model.Order
	Caption  string
	PhotoURL string
}

// Handle parses a host payload and records the order it carries.
// Events other than newOrder and orders without items are ignored. Stock
// shortfalls return an error wrapping model.ErrInsufficientStock.
func (p *Processor) Handle(ctx context.Context, userID int64, payload []byte) (*Result, error) {
	var event model.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, model.NewValidationError("body", "invalid order payload")
	}

	if event.Event != model.EventNewOrder {
		p.logger.Debug("ignoring host event", slog.String("event", event.Event))
		return &Result{}, nil
	}
	if len(event.Data.Items) == 0 {
		p.logger.Warn("empty order received", slog.Int64("user_id", userID))
		return &Result{}, nil
	}

	order, err := p.store.CreateOrder(ctx, userID, event.Data)
	if err != nil {
		p.logger.Warn("order rejected",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating order: %w", err)
	}

	p.logger.Info("order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", userID),
		slog.String("total", order.TotalAmount.String()))

	caption, photo := FormatConfirmation(order)
	return &Result{Order: order, Caption: caption, PhotoURL: photo}, nil
}

// Consume adapts Handle to relay.OrderHandler, logging the confirmation.
func (p *Processor) Consume(ctx context.Context, userID int64, payload []byte) error {
	res, err := p.Handle(ctx, userID, payload)
	if err != nil {
		return err
	}
	if res.Order != nil {
		p.logger.Debug("order confirmation", slog.String("caption", res.Caption))
	}
	return nil
}

// History returns the user's recent orders.
func (p *Processor) History(ctx context.Context, userID int64) ([]model.Order, error) {
	orders, err := p.store.RecentOrders(ctx, userID, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("loading order history: %w", err)
	}
	return orders, nil
}

package event

import (
	"context"
	"time"
)

type Type string

const (
	StockChanged       Type = "stock.changed"
	StockLow           Type = "stock.low"
	ReservationExpired Type = "reservation.expired"
	OrderFinalized     Type = "order.finalized"
)

// Event is published after the transaction that produced it committed.
type Event struct {
	Type Type
	// Key picks the partition; per-product events use the product id.
	Key     string
	Payload any
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// ---- payloads ----

type StockChangedPayload struct {
	ProductID      int64  `json:"product_id"`
	ChangeType     string `json:"change_type"`
	QuantityChange int64  `json:"quantity_change"`
	StockBefore    int64  `json:"stock_before"`
	StockAfter     int64  `json:"stock_after"`
	StockHistoryID int64  `json:"stock_history_id"`
}

type StockLowPayload struct {
	ProductID int64 `json:"product_id"`
	Stock     int64 `json:"stock"`
	Threshold int64 `json:"threshold"`
}

type ReservationExpiredPayload struct {
	Count int64     `json:"count"`
	At    time.Time `json:"at"`
}

type OrderFinalizedPayload struct {
	UserID     int64   `json:"user_id"`
	PaymentRef string  `json:"payment_ref"`
	OrderIDs   []int64 `json:"order_ids"`
}

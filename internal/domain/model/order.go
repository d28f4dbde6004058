package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Stock was already returned (or never left) once an order reaches one of these.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// One order row per product line. Created only after the stock decrement succeeded.
type Order struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64           `gorm:"not null;index" json:"user_id"`
	ProductID      int64           `gorm:"not null;index;uniqueIndex:idx_orders_payment_ref_product" json:"product_id"`
	Quantity       int64           `gorm:"not null;check:chk_orders_quantity_positive,quantity > 0" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Status         OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentRef     string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_payment_ref_product" json:"payment_ref"`
	CheckoutRef    string          `gorm:"type:varchar(64);index" json:"checkout_ref,omitempty"`
	ReservationID  *int64          `gorm:"index" json:"reservation_id,omitempty"`
	StockHistoryID *int64          `json:"stock_history_id,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

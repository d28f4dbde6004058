package model

import "time"

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationExpired   ReservationStatus = "expired"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Terminal states never change again.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationExpired || s == ReservationCancelled
}

// A time-boxed hold on product quantity.
// At most one active row per (user, product); the partial unique index enforces it.
type StockReservation struct {
	ID             int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID      int64             `gorm:"not null;index;uniqueIndex:idx_stock_reservations_active_hold,where:status = 'active'" json:"product_id"`
	UserID         int64             `gorm:"not null;index;uniqueIndex:idx_stock_reservations_active_hold,where:status = 'active'" json:"user_id"`
	Quantity       int64             `gorm:"not null;check:chk_stock_reservations_quantity_positive,quantity > 0" json:"quantity"`
	Status         ReservationStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ExpiresAt      time.Time         `gorm:"not null;index" json:"expires_at"`
	CheckoutRef    string            `gorm:"type:varchar(64);index" json:"checkout_ref,omitempty"`
	OrderID        *int64            `gorm:"index" json:"order_id,omitempty"`
	StockHistoryID *int64            `json:"stock_history_id,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null" json:"updated_at"`
}

// Live reports whether the hold still counts against availability at now.
func (r StockReservation) Live(now time.Time) bool {
	return r.Status == ReservationActive && r.ExpiresAt.After(now)
}

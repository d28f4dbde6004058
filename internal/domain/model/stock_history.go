package model

import "time"

type StockChangeType string

const (
	StockChangeInitial             StockChangeType = "initial"
	StockChangeRestock             StockChangeType = "restock"
	StockChangeSale                StockChangeType = "sale"
	StockChangeReturn              StockChangeType = "return"
	StockChangeAdjustment          StockChangeType = "adjustment"
	StockChangeReservation         StockChangeType = "reservation"
	StockChangeReservationReleased StockChangeType = "reservation_released"
	StockChangeDamaged             StockChangeType = "damaged"
)

func (t StockChangeType) Valid() bool {
	switch t {
	case StockChangeInitial, StockChangeRestock, StockChangeSale, StockChangeReturn,
		StockChangeAdjustment, StockChangeReservation, StockChangeReservationReleased, StockChangeDamaged:
		return true
	}
	return false
}

// Append-only ledger row. StockAfter equals the product stock at the moment the row was written.
type StockHistory struct {
	ID             int64           `gorm:"primaryKey;autoIncrement;index:idx_stock_histories_product_id_id,priority:2" json:"id"`
	ProductID      int64           `gorm:"not null;index:idx_stock_histories_product_id_id,priority:1" json:"product_id"`
	ChangeType     StockChangeType `gorm:"type:varchar(30);not null;index" json:"change_type"`
	QuantityChange int64           `gorm:"not null" json:"quantity_change"`
	StockBefore    int64           `gorm:"not null" json:"stock_before"`
	StockAfter     int64           `gorm:"not null" json:"stock_after"`
	Reason         string          `gorm:"type:varchar(255)" json:"reason,omitempty"`
	ActorID        *int64          `gorm:"index" json:"actor_id,omitempty"`
	OrderID        *int64          `gorm:"index" json:"order_id,omitempty"`
	ReservationID  *int64          `gorm:"index" json:"reservation_id,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;index" json:"created_at"`
}

func (StockHistory) TableName() string {
	return "stock_histories"
}

package repository

import (
	"context"
	"time"

	"marketstock/internal/domain/model"
)

type ReservationTransition struct {
	ID      int64
	To      model.ReservationStatus
	OrderID *int64
	// StockHistoryID links a completed hold to the ledger entry of its sale.
	StockHistoryID *int64
	At             time.Time
}

// ReservationRenewal overwrites a live hold. An empty CheckoutRef keeps the current one.
type ReservationRenewal struct {
	ID          int64
	Quantity    int64
	ExpiresAt   time.Time
	CheckoutRef string
	At          time.Time
}

type ReservationRepository interface {
	FindByID(ctx context.Context, id int64) (model.StockReservation, error)

	// FindActive returns the active hold of a user on a product, locked for update.
	FindActive(ctx context.Context, userID, productID int64) (model.StockReservation, bool, error)

	ListActiveByUser(ctx context.Context, userID int64) ([]model.StockReservation, error)

	// Create fails with ErrDuplicate when an active hold already exists for (user, product).
	Create(ctx context.Context, r model.StockReservation) (model.StockReservation, error)

	// Renew overwrites quantity, expiry and checkout ref of an active hold; ErrNotFound if it is no longer active.
	Renew(ctx context.Context, rn ReservationRenewal) error

	// SumLive totals quantity over active holds with expires_at > now.
	// excludeUserID > 0 leaves that user's hold out of the sum.
	SumLive(ctx context.Context, productID int64, now time.Time, excludeUserID int64) (int64, error)

	// ExpireStale moves every active hold with expires_at <= now to expired.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	// Transition moves an active hold to a terminal status. false means it was already terminal.
	Transition(ctx context.Context, t ReservationTransition) (bool, error)
}

package repository

import (
	"context"

	"marketstock/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	// FindByIDForUpdate locks the order row for a status change.
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	// Create fails with ErrDuplicate when (payment_ref, product_id) already exists.
	Create(ctx context.Context, order model.Order) (model.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	// same payment ref returns the same orders
	ListByPaymentRef(ctx context.Context, userID int64, paymentRef string) ([]model.Order, error)
}

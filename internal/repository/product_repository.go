package repository

import (
	"context"
	"errors"

	"marketstock/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint rejected the write.
var ErrDuplicate = errors.New("duplicate")

type LowStockQuery struct {
	Threshold int64
	Limit     int
}

// Product persistence. Stock is written only through UpdateStock by the stock mutator.
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)

	// FindByIDForUpdate reads the row and holds a row lock until the transaction ends.
	FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	UpdateStock(ctx context.Context, id int64, stock int64) error
	UpdateStatus(ctx context.Context, id int64, status model.ProductStatus, approval model.ApprovalStatus) error

	// sellable products with 0 < stock <= threshold, lowest stock first
	ListLowStock(ctx context.Context, q LowStockQuery) ([]model.Product, error)
}

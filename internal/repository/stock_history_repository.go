package repository

import (
	"context"
	"time"

	"marketstock/internal/domain/model"
)

// Keyset page over a product's ledger, newest first.
type StockHistoryQuery struct {
	ProductID int64
	Since     *time.Time
	BeforeID  int64 // 0 = from the newest entry
	Limit     int
}

type StockHistoryAggregate struct {
	EntryCount   int64
	TotalAdded   int64
	TotalRemoved int64
	// stock_before of the oldest entry; zero when there are no entries
	FirstStockBefore int64
}

// Append-only: there is no update or delete.
type StockHistoryRepository interface {
	Create(ctx context.Context, h model.StockHistory) (model.StockHistory, error)
	ListByProduct(ctx context.Context, q StockHistoryQuery) ([]model.StockHistory, error)
	Aggregate(ctx context.Context, productID int64) (StockHistoryAggregate, error)
}

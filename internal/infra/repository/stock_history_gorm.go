package repository

import (
	"context"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"gorm.io/gorm"
)

type StockHistoryGormRepository struct {
	db *gorm.DB
}

func NewStockHistoryGormRepository(db *gorm.DB) *StockHistoryGormRepository {
	return &StockHistoryGormRepository{db: db}
}

// append only
func (r *StockHistoryGormRepository) Create(ctx context.Context, h model.StockHistory) (model.StockHistory, error) {
	if err := r.db.WithContext(ctx).Create(&h).Error; err != nil {
		return model.StockHistory{}, err
	}
	return h, nil
}

func (r *StockHistoryGormRepository) ListByProduct(ctx context.Context, q repo.StockHistoryQuery) ([]model.StockHistory, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	tx := r.db.WithContext(ctx).
		Model(&model.StockHistory{}).
		Where("product_id = ?", q.ProductID)

	if q.Since != nil {
		tx = tx.Where("created_at >= ?", *q.Since)
	}
	if q.BeforeID > 0 {
		tx = tx.Where("id < ?", q.BeforeID)
	}

	var entries []model.StockHistory
	if err := tx.Order("id desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *StockHistoryGormRepository) Aggregate(ctx context.Context, productID int64) (repo.StockHistoryAggregate, error) {
	var row struct {
		EntryCount   int64
		TotalAdded   int64
		TotalRemoved int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.StockHistory{}).
		Select(`COUNT(*) AS entry_count,
			COALESCE(SUM(CASE WHEN quantity_change > 0 THEN quantity_change ELSE 0 END), 0) AS total_added,
			COALESCE(SUM(CASE WHEN quantity_change < 0 THEN -quantity_change ELSE 0 END), 0) AS total_removed`).
		Where("product_id = ?", productID).
		Scan(&row).Error
	if err != nil {
		return repo.StockHistoryAggregate{}, err
	}

	agg := repo.StockHistoryAggregate{
		EntryCount:   row.EntryCount,
		TotalAdded:   row.TotalAdded,
		TotalRemoved: row.TotalRemoved,
	}
	if agg.EntryCount == 0 {
		return agg, nil
	}

	// the oldest entry anchors reconciliation
	var first model.StockHistory
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id asc").
		First(&first).Error; err != nil {
		return repo.StockHistoryAggregate{}, err
	}
	agg.FirstStockBefore = first.StockBefore

	return agg, nil
}

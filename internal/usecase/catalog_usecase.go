package usecase

import (
	"context"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"go.uber.org/zap"
)

// CatalogUsecase serves read-only stock views for the storefront and staff.
type CatalogUsecase struct {
	d                 Deps
	reservations      *ReservationManager
	lowStockThreshold int64
}

func NewCatalogUsecase(d Deps, reservations *ReservationManager, lowStockThreshold int64) *CatalogUsecase {
	return &CatalogUsecase{d: d.withDefaults(), reservations: reservations, lowStockThreshold: lowStockThreshold}
}

// Availability is the cached view behind "Add to Cart". Reservations and
// finalization always recompute under lock and never read this.
func (u *CatalogUsecase) Availability(ctx context.Context, productID int64) (model.Availability, error) {
	if productID <= 0 {
		return model.Availability{}, apperr.NewInvalidArgument("product_id", "must be positive", productID)
	}

	a, hit, err := u.d.Cache.Get(ctx, productID)
	if err != nil {
		u.d.Log.Warn("availability cache read failed", zap.Int64("product_id", productID), zap.Error(err))
	}
	if hit {
		return a, nil
	}

	a, err = u.reservations.Availability(ctx, productID)
	if err != nil {
		return model.Availability{}, err
	}
	if err := u.d.Cache.Set(ctx, a); err != nil {
		u.d.Log.Warn("availability cache write failed", zap.Int64("product_id", productID), zap.Error(err))
	}
	return a, nil
}

func (u *CatalogUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, apperr.NewInvalidArgument("product_id", "must be positive", productID)
	}
	var p model.Product
	err := u.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Products().FindByID(ctx, productID)
		return notFoundOr(err, "product", productID)
	})
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// LowStock lists sellable products with 0 < stock <= threshold.
// threshold 0 uses the configured default.
func (u *CatalogUsecase) LowStock(ctx context.Context, threshold int64, limit int) ([]model.Product, error) {
	if threshold < 0 {
		return nil, apperr.NewInvalidArgument("threshold", "must be non-negative", threshold)
	}
	if threshold == 0 {
		threshold = u.lowStockThreshold
	}
	if limit < 0 || limit > 500 {
		return nil, apperr.NewInvalidArgument("limit", "must be within 0..500", limit)
	}

	var out []model.Product
	err := u.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = r.Products().ListLowStock(ctx, repo.LowStockQuery{Threshold: threshold, Limit: limit})
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Product{}
	}
	return out, nil
}

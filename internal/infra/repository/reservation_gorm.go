package repository

import (
	"context"
	"time"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReservationGormRepository struct {
	db *gorm.DB
}

func NewReservationGormRepository(db *gorm.DB) *ReservationGormRepository {
	return &ReservationGormRepository{db: db}
}

func (r *ReservationGormRepository) FindByID(ctx context.Context, id int64) (model.StockReservation, error) {
	var res model.StockReservation
	err := r.db.WithContext(ctx).First(&res, id).Error
	if isNotFound(err) {
		return model.StockReservation{}, repo.ErrNotFound
	}
	if err != nil {
		return model.StockReservation{}, err
	}
	return res, nil
}

func (r *ReservationGormRepository) FindActive(ctx context.Context, userID, productID int64) (model.StockReservation, bool, error) {
	var res model.StockReservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND product_id = ? AND status = ?", userID, productID, model.ReservationActive).
		First(&res).Error
	if isNotFound(err) {
		return model.StockReservation{}, false, nil
	}
	if err != nil {
		return model.StockReservation{}, false, err
	}
	return res, true, nil
}

func (r *ReservationGormRepository) ListActiveByUser(ctx context.Context, userID int64) ([]model.StockReservation, error) {
	var list []model.StockReservation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.ReservationActive).
		Order("product_id asc").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ReservationGormRepository) Create(ctx context.Context, res model.StockReservation) (model.StockReservation, error) {
	if err := r.db.WithContext(ctx).Create(&res).Error; err != nil {
		if isUniqueViolation(err) {
			return model.StockReservation{}, repo.ErrDuplicate
		}
		return model.StockReservation{}, err
	}
	return res, nil
}

func (r *ReservationGormRepository) Renew(ctx context.Context, rn repo.ReservationRenewal) error {
	cols := map[string]interface{}{
		"quantity":   rn.Quantity,
		"expires_at": rn.ExpiresAt,
		"updated_at": rn.At,
	}
	if rn.CheckoutRef != "" {
		cols["checkout_ref"] = rn.CheckoutRef
	}
	res := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("id = ? AND status = ?", rn.ID, model.ReservationActive).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ReservationGormRepository) SumLive(ctx context.Context, productID int64, now time.Time, excludeUserID int64) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND status = ? AND expires_at > ?", productID, model.ReservationActive, now)
	if excludeUserID > 0 {
		q = q.Where("user_id <> ?", excludeUserID)
	}

	var total int64
	if err := q.Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// The status guard makes this safe against itself and against concurrent complete/cancel.
func (r *ReservationGormRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("status = ? AND expires_at <= ?", model.ReservationActive, now).
		Updates(map[string]interface{}{
			"status":     model.ReservationExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *ReservationGormRepository) Transition(ctx context.Context, t repo.ReservationTransition) (bool, error) {
	values := map[string]interface{}{
		"status":     t.To,
		"updated_at": t.At,
	}
	if t.OrderID != nil {
		values["order_id"] = *t.OrderID
	}
	if t.StockHistoryID != nil {
		values["stock_history_id"] = *t.StockHistoryID
	}

	res := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("id = ? AND status = ?", t.ID, model.ReservationActive).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// either terminal already or missing
	if _, err := r.FindByID(ctx, t.ID); err != nil {
		return false, err
	}
	return false, nil
}

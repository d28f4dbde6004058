package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

type reservationRepo struct {
	st *state
}

func (r *reservationRepo) FindByID(_ context.Context, id int64) (model.StockReservation, error) {
	res, ok := r.st.reservations[id]
	if !ok {
		return model.StockReservation{}, repo.ErrNotFound
	}
	return res, nil
}

func (r *reservationRepo) FindActive(_ context.Context, userID, productID int64) (model.StockReservation, bool, error) {
	for _, res := range r.st.reservations {
		if res.UserID == userID && res.ProductID == productID && res.Status == model.ReservationActive {
			return res, true, nil
		}
	}
	return model.StockReservation{}, false, nil
}

func (r *reservationRepo) ListActiveByUser(_ context.Context, userID int64) ([]model.StockReservation, error) {
	var out []model.StockReservation
	for _, res := range r.st.reservations {
		if res.UserID == userID && res.Status == model.ReservationActive {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *reservationRepo) Create(ctx context.Context, res model.StockReservation) (model.StockReservation, error) {
	if res.Quantity <= 0 {
		return model.StockReservation{}, fmt.Errorf("reservation quantity %d: %w", res.Quantity, errCheckViolation)
	}
	if res.Status == model.ReservationActive {
		if _, found, _ := r.FindActive(ctx, res.UserID, res.ProductID); found {
			return model.StockReservation{}, repo.ErrDuplicate
		}
	}
	r.st.reservationSeq++
	res.ID = r.st.reservationSeq
	r.st.reservations[res.ID] = res
	return res, nil
}

func (r *reservationRepo) Renew(_ context.Context, rn repo.ReservationRenewal) error {
	res, ok := r.st.reservations[rn.ID]
	if !ok || res.Status != model.ReservationActive {
		return repo.ErrNotFound
	}
	if rn.Quantity <= 0 {
		return fmt.Errorf("reservation quantity %d: %w", rn.Quantity, errCheckViolation)
	}
	res.Quantity = rn.Quantity
	res.ExpiresAt = rn.ExpiresAt
	res.UpdatedAt = rn.At
	if rn.CheckoutRef != "" {
		res.CheckoutRef = rn.CheckoutRef
	}
	r.st.reservations[rn.ID] = res
	return nil
}

func (r *reservationRepo) SumLive(_ context.Context, productID int64, now time.Time, excludeUserID int64) (int64, error) {
	var total int64
	for _, res := range r.st.reservations {
		if res.ProductID != productID || !res.Live(now) {
			continue
		}
		if excludeUserID > 0 && res.UserID == excludeUserID {
			continue
		}
		total += res.Quantity
	}
	return total, nil
}

func (r *reservationRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, res := range r.st.reservations {
		if res.Status == model.ReservationActive && !res.ExpiresAt.After(now) {
			res.Status = model.ReservationExpired
			res.UpdatedAt = now
			r.st.reservations[id] = res
			n++
		}
	}
	return n, nil
}

func (r *reservationRepo) Transition(_ context.Context, t repo.ReservationTransition) (bool, error) {
	res, ok := r.st.reservations[t.ID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if res.Status != model.ReservationActive {
		return false, nil
	}
	res.Status = t.To
	res.UpdatedAt = t.At
	if t.OrderID != nil {
		res.OrderID = t.OrderID
	}
	if t.StockHistoryID != nil {
		res.StockHistoryID = t.StockHistoryID
	}
	r.st.reservations[t.ID] = res
	return true, nil
}

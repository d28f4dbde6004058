package memory

import (
	"context"
	"sort"
	"time"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

type orderRepo struct {
	st  *state
	now func() time.Time
}

func (r *orderRepo) FindByID(_ context.Context, orderID int64) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) ListByUserID(_ context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range r.st.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	offset := (page - 1) * limit
	if offset < 0 || offset >= len(all) {
		return []model.Order{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *orderRepo) Create(_ context.Context, order model.Order) (model.Order, error) {
	for _, o := range r.st.orders {
		if o.PaymentRef == order.PaymentRef && o.ProductID == order.ProductID {
			return model.Order{}, repo.ErrDuplicate
		}
	}
	r.st.orderSeq++
	order.ID = r.st.orderSeq
	now := r.now()
	order.CreatedAt, order.UpdatedAt = now, now
	r.st.orders[order.ID] = order
	return order, nil
}

func (r *orderRepo) UpdateStatus(_ context.Context, orderID int64, status model.OrderStatus) error {
	o, ok := r.st.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = r.now()
	r.st.orders[orderID] = o
	return nil
}

func (r *orderRepo) ListByPaymentRef(_ context.Context, userID int64, paymentRef string) ([]model.Order, error) {
	var out []model.Order
	for _, o := range r.st.orders {
		if o.UserID == userID && o.PaymentRef == paymentRef {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

package usecase

import (
	"context"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

type OrderUsecase struct {
	d Deps
}

func NewOrderUsecase(d Deps) *OrderUsecase {
	return &OrderUsecase{d: d.withDefaults()}
}

type OrderPage struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, limit int) (OrderPage, error) {
	if userID <= 0 {
		return OrderPage{}, apperr.NewInvalidArgument("user_id", "must be positive", userID)
	}
	if page < 1 {
		return OrderPage{}, apperr.NewInvalidArgument("page", "must be at least 1", page)
	}
	if limit < 1 || limit > 100 {
		return OrderPage{}, apperr.NewInvalidArgument("limit", "must be within 1..100", limit)
	}

	out := OrderPage{Page: page, Limit: limit}
	err := u.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out.Items, out.Total, err = r.Orders().ListByUserID(ctx, userID, page, limit)
		return err
	})
	if err != nil {
		return OrderPage{}, err
	}
	if out.Items == nil {
		out.Items = []model.Order{}
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, apperr.NewInvalidArgument("order_id", "must be positive", orderID)
	}
	var o model.Order
	err := u.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		o, err = r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "order", orderID)
		}
		// someone else's order does not exist for this user
		if o.UserID != userID {
			return apperr.NewNotFound("order", orderID)
		}
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

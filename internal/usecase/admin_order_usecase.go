package usecase

import (
	"context"
	"strings"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	d       Deps
	mutator *StockMutator
}

func NewAdminOrderUsecase(d Deps, mutator *StockMutator) *AdminOrderUsecase {
	return &AdminOrderUsecase{d: d.withDefaults(), mutator: mutator}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

var orderStatusRank = map[model.OrderStatus]int{
	model.OrderStatusPending:    0,
	model.OrderStatusProcessing: 1,
	model.OrderStatusShipped:    2,
	model.OrderStatusDelivered:  3,
}

// UpdateStatus moves an order forward. Cancelling returns its quantity to stock
// with a return ledger entry in the same transaction.
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, apperr.NewInvalidArgument("actor_id", "must be positive", actorAdminUserID)
	}
	if orderID <= 0 {
		return model.Order{}, apperr.NewInvalidArgument("order_id", "must be positive", orderID)
	}
	newStatus := model.OrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !newStatus.Valid() {
		return model.Order{}, apperr.NewInvalidArgument("status", "unknown status", in.Status)
	}

	var (
		out model.Order
		mut *stockMutation
	)
	err := u.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "order", orderID)
		}

		// same status is a no-op
		if o.Status == newStatus {
			out = o
			return nil
		}
		if o.Status.Terminal() {
			return apperr.NewInvalidState("order", o.ID, string(o.Status), "order is closed")
		}
		if newStatus == model.OrderStatusCancelled {
			if o.Status == model.OrderStatusShipped {
				return apperr.NewInvalidState("order", o.ID, string(o.Status), "shipped order cannot be cancelled")
			}
			m, err := u.mutator.returnTx(ctx, r, IncreaseInput{
				ProductID: o.ProductID,
				Quantity:  o.Quantity,
				Reason:    "order cancelled",
				ActorID:   &actorAdminUserID,
			}, o.ID)
			if err != nil {
				return err
			}
			mut = &m
		} else if orderStatusRank[newStatus] < orderStatusRank[o.Status] {
			return apperr.NewInvalidState("order", o.ID, string(o.Status), "status cannot move backwards")
		}

		if err := r.Orders().UpdateStatus(ctx, o.ID, newStatus); err != nil {
			return notFoundOr(err, "order", o.ID)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   `{"status":"` + string(o.Status) + `"}`,
			AfterJSON:    `{"status":"` + string(newStatus) + `"}`,
			CreatedAt:    u.d.Clock.Now(),
		}); err != nil {
			return err
		}

		o.Status = newStatus
		out = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	if mut != nil {
		u.mutator.afterCommit(ctx, *mut)
	}
	u.d.Log.Info("order status updated",
		zap.Int64("order_id", out.ID),
		zap.String("status", string(out.Status)),
		zap.Int64("actor_id", actorAdminUserID))
	return out, nil
}

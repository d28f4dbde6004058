package usecase

import (
	"context"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

type AuditUsecase struct {
	d Deps
}

func NewAuditUsecase(d Deps) *AuditUsecase {
	return &AuditUsecase{d: d.withDefaults()}
}

func (u *AuditUsecase) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	if f.Limit < 0 || f.Limit > repo.AuditPageMax {
		return nil, apperr.NewInvalidArgument("limit", "must be within 0..200", f.Limit)
	}
	if f.BeforeID < 0 {
		return nil, apperr.NewInvalidArgument("before_id", "must be non-negative", f.BeforeID)
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return nil, apperr.NewInvalidArgument("from", "must not be after to", f.CreatedFrom)
	}

	var out []model.AuditLog
	err := u.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = r.AuditLogs().List(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.AuditLog{}
	}
	return out, nil
}

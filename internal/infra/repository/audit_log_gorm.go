package repository

import (
	"context"
	"fmt"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"gorm.io/gorm"
)

type auditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) repo.AuditLogRepository {
	return &auditLogGormRepository{db: db}
}

func (r *auditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("insert audit log %s: %w", log.Action, err)
	}
	return nil
}

func (r *auditLogGormRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := r.db.WithContext(ctx).
		Model(&model.AuditLog{}).
		Scopes(auditFilterScope(f)).
		Order("id DESC").
		Limit(f.PageSize()).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func auditFilterScope(f repo.AuditLogFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		conds := []struct {
			set   bool
			query string
			arg   func() any
		}{
			{f.ActorUserID != nil, "actor_user_id = ?", func() any { return *f.ActorUserID }},
			{f.Action != nil, "action = ?", func() any { return *f.Action }},
			{f.ResourceType != nil, "resource_type = ?", func() any { return *f.ResourceType }},
			{f.ResourceID != nil, "resource_id = ?", func() any { return *f.ResourceID }},
			{f.CreatedFrom != nil, "created_at >= ?", func() any { return *f.CreatedFrom }},
			{f.CreatedTo != nil, "created_at <= ?", func() any { return *f.CreatedTo }},
			{f.BeforeID > 0, "id < ?", func() any { return f.BeforeID }},
		}
		for _, c := range conds {
			if c.set {
				q = q.Where(c.query, c.arg())
			}
		}
		return q
	}
}

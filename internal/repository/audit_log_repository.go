package repository

import (
	"context"
	"time"

	"marketstock/internal/domain/model"
)

const (
	AuditPageDefault = 50
	AuditPageMax     = 200
)

// AuditLogFilter narrows a staff audit query. Nil fields match everything.
// Pages are keyset: pass the last ID seen as BeforeID.
type AuditLogFilter struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	BeforeID     int64
	Limit        int
}

// PageSize clamps Limit into 1..AuditPageMax.
func (f AuditLogFilter) PageSize() int {
	if f.Limit <= 0 || f.Limit > AuditPageMax {
		return AuditPageDefault
	}
	return f.Limit
}

type AuditLogRepository interface {
	// append only
	Create(ctx context.Context, log model.AuditLog) error

	// newest first
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}

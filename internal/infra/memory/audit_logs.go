package memory

import (
	"context"
	"time"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

type auditLogRepo struct {
	st  *state
	now func() time.Time
}

func (r *auditLogRepo) Create(_ context.Context, log model.AuditLog) error {
	r.st.auditSeq++
	log.ID = r.st.auditSeq
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}
	r.st.auditLogs = append(r.st.auditLogs, log)
	return nil
}

func (r *auditLogRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	limit := f.PageSize()
	out := []model.AuditLog{}
	// appended in ID order, so walking backwards is newest first
	for i := len(r.st.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		if l := r.st.auditLogs[i]; matchAudit(l, f) {
			out = append(out, l)
		}
	}
	return out, nil
}

func matchAudit(l model.AuditLog, f repo.AuditLogFilter) bool {
	switch {
	case f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID:
		return false
	case f.Action != nil && l.Action != *f.Action:
		return false
	case f.ResourceType != nil && l.ResourceType != *f.ResourceType:
		return false
	case f.ResourceID != nil && l.ResourceID != *f.ResourceID:
		return false
	case f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom):
		return false
	case f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo):
		return false
	case f.BeforeID > 0 && l.ID >= f.BeforeID:
		return false
	}
	return true
}

package model

import "time"

type AuditAction string

const (
	AuditActionMarkSoldOut         AuditAction = "MARK_SOLD_OUT"
	AuditActionUpdateProductStatus AuditAction = "UPDATE_PRODUCT_STATUS"
	AuditActionUpdateOrderStatus   AuditAction = "UPDATE_ORDER_STATUS"
	AuditActionCancelReservation   AuditAction = "CANCEL_RESERVATION"
)

type AuditResourceType string

const (
	AuditResourceProduct     AuditResourceType = "product"
	AuditResourceOrder       AuditResourceType = "order"
	AuditResourceReservation AuditResourceType = "reservation"
)

// Staff action log: who changed what, on which resource, from what to what.
// Stock quantity changes live in the stock ledger, not here.
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`
	BeforeJSON   string            `gorm:"type:text" json:"before_json"`
	AfterJSON    string            `gorm:"type:text" json:"after_json"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}

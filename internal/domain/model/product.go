package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle of a listing.
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusSold     ProductStatus = "sold"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusActive, ProductStatusInactive, ProductStatusSold:
		return true
	}
	return false
}

// Moderation state set by staff.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// Stock is only ever written by the stock mutator.
type Product struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID       int64           `gorm:"not null;index" json:"seller_id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock          int64           `gorm:"not null;default:0;check:chk_products_stock_non_negative,stock >= 0" json:"stock"`
	Status         ProductStatus   `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	ApprovalStatus ApprovalStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"approval_status"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// Sellable reports whether the product may be reserved or sold.
func (p Product) Sellable() bool {
	return p.Status == ProductStatusActive && p.ApprovalStatus == ApprovalApproved
}

func (p Product) IsInStock() bool {
	return p.Stock > 0 && p.Status == ProductStatusActive
}

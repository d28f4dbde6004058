package repository

import (
	"context"

	repo "marketstock/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	products     repo.ProductRepository
	reservations repo.ReservationRepository
	history      repo.StockHistoryRepository
	orders       repo.OrderRepository
	auditLogs    repo.AuditLogRepository
}

func (r *txReposGorm) Products() repo.ProductRepository          { return r.products }
func (r *txReposGorm) Reservations() repo.ReservationRepository  { return r.reservations }
func (r *txReposGorm) StockHistory() repo.StockHistoryRepository { return r.history }
func (r *txReposGorm) Orders() repo.OrderRepository              { return r.orders }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository        { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

var _ repo.TransactionManager = (*TxManagerGorm)(nil)

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// repos are rebuilt on the tx handle
		r := &txReposGorm{
			products:     NewProductGormRepository(tx),
			reservations: NewReservationGormRepository(tx),
			history:      NewStockHistoryGormRepository(tx),
			orders:       NewOrderGormRepository(tx),
			auditLogs:    NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}

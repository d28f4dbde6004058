package repository

import "context"

// Repositories bound to one transaction.
type TxRepos interface {
	Products() ProductRepository
	Reservations() ReservationRepository
	StockHistory() StockHistoryRepository
	Orders() OrderRepository
	AuditLogs() AuditLogRepository
}

// Hides begin/commit/rollback from the usecases. fn returning an error rolls everything back.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

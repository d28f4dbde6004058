// Package memory is a process-local implementation of every repository.
// Transactions are serialized by one mutex and rolled back from a snapshot,
// which gives the same observable isolation as row locks on a single product.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

var errCheckViolation = errors.New("check constraint violated")

type state struct {
	products     map[int64]model.Product
	reservations map[int64]model.StockReservation
	history      []model.StockHistory // id order
	orders       map[int64]model.Order
	auditLogs    []model.AuditLog // id order

	productSeq     int64
	reservationSeq int64
	historySeq     int64
	orderSeq       int64
	auditSeq       int64
}

func newState() *state {
	return &state{
		products:     make(map[int64]model.Product),
		reservations: make(map[int64]model.StockReservation),
		orders:       make(map[int64]model.Order),
	}
}

func (s *state) clone() *state {
	c := *s
	c.products = make(map[int64]model.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.reservations = make(map[int64]model.StockReservation, len(s.reservations))
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	c.orders = make(map[int64]model.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.history = append([]model.StockHistory(nil), s.history...)
	c.auditLogs = append([]model.AuditLog(nil), s.auditLogs...)
	return &c
}

// Store is a thread-safe in-memory TransactionManager.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

var _ repo.TransactionManager = (*Store)(nil)

type txRepos struct {
	products     *productRepo
	reservations *reservationRepo
	history      *stockHistoryRepo
	orders       *orderRepo
	auditLogs    *auditLogRepo
}

func (r *txRepos) Products() repo.ProductRepository          { return r.products }
func (r *txRepos) Reservations() repo.ReservationRepository  { return r.reservations }
func (r *txRepos) StockHistory() repo.StockHistoryRepository { return r.history }
func (r *txRepos) Orders() repo.OrderRepository              { return r.orders }
func (r *txRepos) AuditLogs() repo.AuditLogRepository        { return r.auditLogs }

// WithinTx runs fn with exclusive access. Any error restores the state fn started from.
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) (err error) {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	st := s.st
	return fn(&txRepos{
		products:     &productRepo{st: st, now: s.now},
		reservations: &reservationRepo{st: st},
		history:      &stockHistoryRepo{st: st, now: s.now},
		orders:       &orderRepo{st: st, now: s.now},
		auditLogs:    &auditLogRepo{st: st, now: s.now},
	})
}

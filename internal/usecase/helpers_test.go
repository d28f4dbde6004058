package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketstock/internal/domain/event"
	"marketstock/internal/domain/model"
	"marketstock/internal/infra/memory"
	repo "marketstock/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(t event.Type) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fixture wires every usecase on one memory store.
type fixture struct {
	store        *memory.Store
	clock        *fakeClock
	events       *recordingPublisher
	deps         Deps
	ledger       *Ledger
	mutator      *StockMutator
	reservations *ReservationManager
	checkout     *CheckoutCoordinator
	catalog      *CatalogUsecase
	orders       *OrderUsecase
	adminOrders  *AdminOrderUsecase
	audit        *AuditUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithTx(t, memory.NewStore())
}

func newFixtureWithTx(t *testing.T, store *memory.Store, wrap ...func(repo.TransactionManager) repo.TransactionManager) *fixture {
	t.Helper()
	f := &fixture{store: store, clock: newFakeClock(), events: &recordingPublisher{}}

	var tx repo.TransactionManager = store
	for _, w := range wrap {
		tx = w(tx)
	}
	f.deps = Deps{Tx: tx, Clock: f.clock, Events: f.events}
	f.ledger = NewLedger(f.deps)
	f.mutator = NewStockMutator(f.deps, f.ledger, 5)
	f.reservations = NewReservationManager(f.deps, 15*time.Minute, time.Hour)
	f.checkout = NewCheckoutCoordinator(f.deps, f.mutator, f.reservations)
	f.catalog = NewCatalogUsecase(f.deps, f.reservations, 5)
	f.orders = NewOrderUsecase(f.deps)
	f.adminOrders = NewAdminOrderUsecase(f.deps, f.mutator)
	f.audit = NewAuditUsecase(f.deps)
	return f
}

// product creates an active, approved product with its initial ledger entry.
func (f *fixture) product(t *testing.T, stock int64) model.Product {
	t.Helper()
	ch, err := f.mutator.CreateProduct(context.Background(), CreateProductInput{
		SellerID:       1,
		Name:           "notebook",
		Price:          decimal.RequireFromString("12.50"),
		InitialStock:   stock,
		Status:         model.ProductStatusActive,
		ApprovalStatus: model.ApprovalApproved,
	})
	require.NoError(t, err)
	return ch.Product
}

func (f *fixture) stockOf(t *testing.T, productID int64) int64 {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) history(t *testing.T, productID int64) []model.StockHistory {
	t.Helper()
	var out []model.StockHistory
	for h, err := range f.ledger.HistoryFor(context.Background(), productID, nil) {
		require.NoError(t, err)
		out = append(out, h)
	}
	return out
}

func (f *fixture) reservation(t *testing.T, id int64) model.StockReservation {
	t.Helper()
	var res model.StockReservation
	require.NoError(t, f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		res, err = r.Reservations().FindByID(context.Background(), id)
		return err
	}))
	return res
}

// assertLedgerReconciles checks sum(deltas) == current - initial.
func (f *fixture) assertLedgerReconciles(t *testing.T, productID int64) {
	t.Helper()
	s, err := f.ledger.SummaryFor(context.Background(), productID)
	require.NoError(t, err)
	assert.True(t, s.Reconciled, "ledger does not reconcile: %+v", s)

	entries := f.history(t, productID)
	var sum int64
	for _, h := range entries {
		sum += h.QuantityChange
	}
	if len(entries) > 0 {
		oldest := entries[len(entries)-1]
		newest := entries[0]
		assert.Equal(t, newest.StockAfter, f.stockOf(t, productID))
		assert.Equal(t, f.stockOf(t, productID)-oldest.StockBefore, sum)
	}
}

func assertErrContains(t *testing.T, err error, want string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), want)
	}
}

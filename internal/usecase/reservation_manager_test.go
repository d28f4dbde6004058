package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/event"
	"marketstock/internal/domain/model"
	"marketstock/internal/infra/memory"
	repo "marketstock/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dupOnce makes the first reservation insert lose a simulated unique-index race.
type dupOnceReservations struct {
	repo.ReservationRepository
	fired *bool
}

func (r dupOnceReservations) Create(ctx context.Context, res model.StockReservation) (model.StockReservation, error) {
	if !*r.fired {
		*r.fired = true
		return model.StockReservation{}, repo.ErrDuplicate
	}
	return r.ReservationRepository.Create(ctx, res)
}

type dupOnceRepos struct {
	repo.TxRepos
	fired *bool
}

func (r dupOnceRepos) Reservations() repo.ReservationRepository {
	return dupOnceReservations{ReservationRepository: r.TxRepos.Reservations(), fired: r.fired}
}

type dupOnceTx struct {
	inner repo.TransactionManager
	fired bool
	calls int
}

func (tx *dupOnceTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	tx.calls++
	return tx.inner.WithinTx(ctx, func(r repo.TxRepos) error {
		return fn(dupOnceRepos{TxRepos: r, fired: &tx.fired})
	})
}

func TestCreateOrRenew_CreatesThenRenews(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 10)
	ctx := context.Background()

	res, created, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.ReservationActive, res.Status)
	assert.Equal(t, f.clock.Now().Add(time.Minute), res.ExpiresAt)

	f.clock.Advance(30 * time.Second)

	// renew replaces the quantity
	again, created, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, res.ID, again.ID)
	assert.Equal(t, int64(2), again.Quantity)
	assert.Equal(t, f.clock.Now().Add(time.Minute), again.ExpiresAt)

	active, err := f.reservations.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].Quantity)

	reserved, err := f.reservations.GetReservedQuantity(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reserved)
}

func TestCreateOrRenew_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 10)
	ctx := context.Background()

	_, _, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 0, time.Minute)
	assert.True(t, apperr.IsInvalidArgument(err))
	_, _, err = f.reservations.CreateOrRenew(ctx, 1, p.ID, 1, 0)
	assert.True(t, apperr.IsInvalidArgument(err))
	_, _, err = f.reservations.CreateOrRenew(ctx, 0, p.ID, 1, time.Minute)
	assert.True(t, apperr.IsInvalidArgument(err))
	_, _, err = f.reservations.CreateOrRenew(ctx, 1, 404, 1, time.Minute)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateOrRenew_RetriesLostInsertRace(t *testing.T) {
	store := memory.NewStore()
	var dup *dupOnceTx
	f := newFixtureWithTx(t, store, func(inner repo.TransactionManager) repo.TransactionManager {
		dup = &dupOnceTx{inner: inner}
		return dup
	})
	p := f.product(t, 10)
	calls := dup.calls

	res, created, err := f.reservations.CreateOrRenew(context.Background(), 1, p.ID, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2), res.Quantity)
	assert.Equal(t, 2, dup.calls-calls)
}

func TestCreateOrRenew_ConcurrentSamePairKeepsOneActive(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 100)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(q int64) {
			defer wg.Done()
			_, _, err := f.reservations.CreateOrRenew(context.Background(), 7, p.ID, q, time.Minute)
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	active, err := f.reservations.ListActive(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestExpireStale_ReleasesAvailability(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5)
	ctx := context.Background()

	_, _, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 5, time.Second)
	require.NoError(t, err)

	avail, err := f.reservations.GetAvailableStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), avail)

	f.clock.Advance(2 * time.Second)

	// already excluded before the sweep runs
	avail, err = f.reservations.GetAvailableStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), avail)

	n, err := f.reservations.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	avail, err = f.reservations.GetAvailableStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), avail)

	expired := f.events.ofType(event.ReservationExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, int64(1), expired[0].Payload.(event.ReservationExpiredPayload).Count)
}

func TestExpireStale_Idempotent(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5)
	ctx := context.Background()

	res, _, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 1, time.Second)
	require.NoError(t, err)
	f.clock.Advance(time.Second)

	n, err := f.reservations.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	first := f.reservation(t, res.ID)

	n, err = f.reservations.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, first, f.reservation(t, res.ID))
	assert.Len(t, f.events.ofType(event.ReservationExpired), 1)
}

func TestAvailability_NeverNegative(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 4)
	ctx := context.Background()

	// holds do not check availability themselves
	_, _, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 3, time.Minute)
	require.NoError(t, err)
	_, _, err = f.reservations.CreateOrRenew(ctx, 2, p.ID, 3, time.Minute)
	require.NoError(t, err)

	a, err := f.reservations.Availability(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), a.Reserved)
	assert.Equal(t, int64(0), a.Available)
	assert.LessOrEqual(t, a.Available, a.Stock)
	assert.True(t, a.InStock)
}

func TestIsInStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 1)
	ctx := context.Background()

	ok, err := f.reservations.IsInStock(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.mutator.Reduce(ctx, ReduceInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	ok, err = f.reservations.IsInStock(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkCompleted_AlreadyTerminalIsNoop(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5)
	ctx := context.Background()

	res, _, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 1, time.Minute)
	require.NoError(t, err)

	out, err := f.reservations.MarkCompleted(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, model.ReservationCompleted, out.Reservation.Status)
	before := f.reservation(t, res.ID)

	out, err = f.reservations.MarkCompleted(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.True(t, out.AlreadyTerminal)
	assert.Equal(t, before, f.reservation(t, res.ID))

	out, err = f.reservations.MarkCancelled(ctx, res.ID, 1, 1)
	require.NoError(t, err)
	assert.True(t, out.AlreadyTerminal)
	assert.Equal(t, model.ReservationCompleted, f.reservation(t, res.ID).Status)
}

func TestMarkCancelled_OwnerOnlyAndAudited(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5)
	ctx := context.Background()

	res, _, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 2, time.Minute)
	require.NoError(t, err)

	_, err = f.reservations.MarkCancelled(ctx, res.ID, 2, 2)
	assert.True(t, apperr.IsNotFound(err))

	out, err := f.reservations.MarkCancelled(ctx, res.ID, 1, 1)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	avail, err := f.reservations.GetAvailableStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), avail)

	logs, err := f.audit.List(ctx, repo.AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionCancelReservation, logs[0].Action)

	_, err = f.reservations.MarkCancelled(ctx, 404, 1, 1)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateOrRenew_TTLCeiling(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 10)
	ctx := context.Background()

	_, _, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 1, f.reservations.MaxTTL()+time.Second)
	assert.True(t, apperr.IsInvalidArgument(err))
	_, _, err = f.reservations.CreateOrRenew(ctx, 1, p.ID, 1, time.Duration(math.MaxInt64))
	assert.True(t, apperr.IsInvalidArgument(err))

	assert.Equal(t, DefaultMaxReservationTTL, NewReservationManager(f.deps, time.Minute, 0).MaxTTL())
}

func TestCreateOrRenew_RenewTakesNewCheckoutRef(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 10)
	ctx := context.Background()

	var res model.StockReservation
	err := f.store.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		res, _, err = f.reservations.createOrRenewTx(ctx, r, holdRequest{UserID: 1, ProductID: p.ID, Quantity: 1, TTL: time.Minute, CheckoutRef: "old"})
		return err
	})
	require.NoError(t, err)

	// no ref keeps the current one
	_, _, err = f.reservations.CreateOrRenew(ctx, 1, p.ID, 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "old", f.reservation(t, res.ID).CheckoutRef)

	err = f.store.WithinTx(ctx, func(r repo.TxRepos) error {
		got, created, err := f.reservations.createOrRenewTx(ctx, r, holdRequest{UserID: 1, ProductID: p.ID, Quantity: 3, TTL: time.Minute, CheckoutRef: "new"})
		assert.False(t, created)
		assert.Equal(t, "new", got.CheckoutRef)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "new", f.reservation(t, res.ID).CheckoutRef)
}

func TestMarkCancelled_StaffCancelRecordsActor(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5)
	ctx := context.Background()

	res, _, err := f.reservations.CreateOrRenew(ctx, 1, p.ID, 2, time.Minute)
	require.NoError(t, err)

	_, err = f.reservations.MarkCancelled(ctx, res.ID, 0, 0)
	assert.True(t, apperr.IsInvalidArgument(err))

	out, err := f.reservations.MarkCancelled(ctx, res.ID, 0, 99)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	logs, err := f.audit.List(ctx, repo.AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(99), logs[0].ActorUserID)
	assert.Equal(t, res.ID, logs[0].ResourceID)
}

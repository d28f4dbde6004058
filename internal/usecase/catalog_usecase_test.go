package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cacheMock struct {
	mock.Mock
}

func (m *cacheMock) Get(ctx context.Context, productID int64) (model.Availability, bool, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(model.Availability), args.Bool(1), args.Error(2)
}

func (m *cacheMock) Set(ctx context.Context, a model.Availability) error {
	return m.Called(ctx, a).Error(0)
}

func (m *cacheMock) Invalidate(ctx context.Context, productIDs ...int64) error {
	return m.Called(ctx, productIDs).Error(0)
}

func TestCatalogAvailability_CacheHit(t *testing.T) {
	f := newFixture(t)
	cache := &cacheMock{}
	cached := model.Availability{ProductID: 3, Stock: 9, Available: 9, InStock: true}
	cache.On("Get", mock.Anything, int64(3)).Return(cached, true, nil).Once()

	d := f.deps
	d.Cache = cache
	catalog := NewCatalogUsecase(d, NewReservationManager(d, time.Minute, 0), 5)

	got, err := catalog.Availability(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	cache.AssertExpectations(t)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestCatalogAvailability_MissComputesAndStores(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 6)
	_, _, err := f.reservations.CreateOrRenew(context.Background(), 1, p.ID, 2, time.Minute)
	require.NoError(t, err)

	cache := &cacheMock{}
	want := model.Availability{ProductID: p.ID, Stock: 6, Reserved: 2, Available: 4, InStock: true}
	cache.On("Get", mock.Anything, p.ID).Return(model.Availability{}, false, errors.New("redis down")).Once()
	cache.On("Set", mock.Anything, want).Return(nil).Once()

	d := f.deps
	d.Cache = cache
	catalog := NewCatalogUsecase(d, NewReservationManager(d, time.Minute, 0), 5)

	got, err := catalog.Availability(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	cache.AssertExpectations(t)
}

func TestCatalog_WritersInvalidate(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 6)

	cache := &cacheMock{}
	cache.On("Invalidate", mock.Anything, []int64{p.ID}).Return(errors.New("redis down")).Twice()

	d := f.deps
	d.Cache = cache
	mutator := NewStockMutator(d, NewLedger(d), 5)
	reservations := NewReservationManager(d, time.Minute, 0)

	// a failing invalidate never fails the write
	_, err := mutator.Increase(context.Background(), IncreaseInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	_, _, err = reservations.CreateOrRenew(context.Background(), 1, p.ID, 1, time.Minute)
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestCatalogLowStock(t *testing.T) {
	f := newFixture(t)
	f.product(t, 0)
	low := f.product(t, 3)
	edge := f.product(t, 5)
	f.product(t, 6)
	ctx := context.Background()

	got, err := f.catalog.LowStock(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, low.ID, got[0].ID)
	assert.Equal(t, edge.ID, got[1].ID)

	got, err = f.catalog.LowStock(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = f.catalog.LowStock(ctx, -1, 0)
	assert.True(t, apperr.IsInvalidArgument(err))
	_, err = f.catalog.LowStock(ctx, 0, 501)
	assert.True(t, apperr.IsInvalidArgument(err))
}

func TestCatalogGetProduct(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 2)

	got, err := f.catalog.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.catalog.GetProduct(context.Background(), 404)
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.catalog.GetProduct(context.Background(), 0)
	assert.True(t, apperr.IsInvalidArgument(err))
}

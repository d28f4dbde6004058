package usecase

import (
	"context"
	"testing"
	"time"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_ClampsAtZero(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 2)
	ctx := context.Background()

	var entry model.StockHistory
	err := f.store.WithinTx(ctx, func(r repo.TxRepos) error {
		locked, err := r.Products().FindByIDForUpdate(ctx, p.ID)
		require.NoError(t, err)
		entry, err = f.ledger.record(ctx, r, locked, RecordInput{ChangeType: model.StockChangeAdjustment, QuantityChange: -5})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.StockBefore)
	assert.Equal(t, int64(0), entry.StockAfter)
}

func TestRecord_UnknownChangeType(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 2)
	ctx := context.Background()

	err := f.store.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := f.ledger.record(ctx, r, p, RecordInput{ChangeType: "gift", QuantityChange: 1})
		return err
	})
	assert.True(t, apperr.IsInvalidArgument(err))
}

func TestHistoryFor_PagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.ledger.pageSize = 2
	p := f.product(t, 0)
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		_, err := f.mutator.Increase(ctx, IncreaseInput{ProductID: p.ID, Quantity: i})
		require.NoError(t, err)
	}

	var deltas []int64
	for h, err := range f.ledger.HistoryFor(ctx, p.ID, nil) {
		require.NoError(t, err)
		deltas = append(deltas, h.QuantityChange)
	}
	// 4 restocks then the initial entry of 0
	assert.Equal(t, []int64{4, 3, 2, 1, 0}, deltas)
}

func TestHistoryFor_StopsEarlyAndSince(t *testing.T) {
	f := newFixture(t)
	f.ledger.pageSize = 2
	p := f.product(t, 0)
	ctx := context.Background()

	f.clock.Advance(time.Hour)
	since := f.clock.Now()
	for i := 0; i < 3; i++ {
		_, err := f.mutator.Increase(ctx, IncreaseInput{ProductID: p.ID, Quantity: 1})
		require.NoError(t, err)
	}

	n := 0
	for range f.ledger.HistoryFor(ctx, p.ID, nil) {
		n++
		if n == 1 {
			break
		}
	}
	assert.Equal(t, 1, n)

	n = 0
	for h, err := range f.ledger.HistoryFor(ctx, p.ID, &since) {
		require.NoError(t, err)
		assert.Equal(t, model.StockChangeRestock, h.ChangeType)
		n++
	}
	assert.Equal(t, 3, n)
}

func TestHistoryFor_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	var errs []error
	for _, err := range f.ledger.HistoryFor(context.Background(), 404, nil) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.True(t, apperr.IsNotFound(errs[0]))
}

func TestSummaryFor_Reconciles(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5)
	ctx := context.Background()

	_, err := f.mutator.Increase(ctx, IncreaseInput{ProductID: p.ID, Quantity: 10})
	require.NoError(t, err)
	_, err = f.mutator.Reduce(ctx, ReduceInput{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)
	_, err = f.mutator.Adjust(ctx, AdjustInput{ProductID: p.ID, NewStock: 11})
	require.NoError(t, err)

	s, err := f.ledger.SummaryFor(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, LedgerSummary{
		ProductID:    p.ID,
		EntryCount:   4,
		TotalAdded:   15,
		TotalRemoved: 4,
		NetChange:    11,
		InitialStock: 0,
		CurrentStock: 11,
		Reconciled:   true,
	}, s)

	_, err = f.ledger.SummaryFor(ctx, 404)
	assert.True(t, apperr.IsNotFound(err))
}

func TestPage_Keyset(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.mutator.Increase(ctx, IncreaseInput{ProductID: p.ID, Quantity: 1})
		require.NoError(t, err)
	}

	first, err := f.ledger.Page(ctx, repo.StockHistoryQuery{ProductID: p.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := f.ledger.Page(ctx, repo.StockHistoryQuery{ProductID: p.ID, Limit: 2, BeforeID: first[1].ID})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, model.StockChangeInitial, rest[1].ChangeType)
}

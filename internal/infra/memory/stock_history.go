package memory

import (
	"context"
	"time"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

type stockHistoryRepo struct {
	st  *state
	now func() time.Time
}

func (r *stockHistoryRepo) Create(_ context.Context, h model.StockHistory) (model.StockHistory, error) {
	r.st.historySeq++
	h.ID = r.st.historySeq
	if h.CreatedAt.IsZero() {
		h.CreatedAt = r.now()
	}
	r.st.history = append(r.st.history, h)
	return h, nil
}

func (r *stockHistoryRepo) ListByProduct(_ context.Context, q repo.StockHistoryQuery) ([]model.StockHistory, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var out []model.StockHistory
	for i := len(r.st.history) - 1; i >= 0 && len(out) < limit; i-- {
		h := r.st.history[i]
		if h.ProductID != q.ProductID {
			continue
		}
		if q.BeforeID > 0 && h.ID >= q.BeforeID {
			continue
		}
		if q.Since != nil && h.CreatedAt.Before(*q.Since) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (r *stockHistoryRepo) Aggregate(_ context.Context, productID int64) (repo.StockHistoryAggregate, error) {
	var agg repo.StockHistoryAggregate
	for _, h := range r.st.history {
		if h.ProductID != productID {
			continue
		}
		if agg.EntryCount == 0 {
			agg.FirstStockBefore = h.StockBefore
		}
		agg.EntryCount++
		if h.QuantityChange > 0 {
			agg.TotalAdded += h.QuantityChange
		} else {
			agg.TotalRemoved -= h.QuantityChange
		}
	}
	return agg, nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

type productRepo struct {
	st  *state
	now func() time.Time
}

func (r *productRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

// The store mutex already serializes transactions.
func (r *productRepo) FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *productRepo) Create(_ context.Context, p model.Product) (model.Product, error) {
	if p.Stock < 0 {
		return model.Product{}, fmt.Errorf("product stock %d: %w", p.Stock, errCheckViolation)
	}
	if p.Status == "" {
		p.Status = model.ProductStatusDraft
	}
	if p.ApprovalStatus == "" {
		p.ApprovalStatus = model.ApprovalPending
	}
	r.st.productSeq++
	p.ID = r.st.productSeq
	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.st.products[p.ID] = p
	return p, nil
}

func (r *productRepo) UpdateStock(_ context.Context, id int64, stock int64) error {
	p, ok := r.st.products[id]
	if !ok {
		return repo.ErrNotFound
	}
	if stock < 0 {
		return fmt.Errorf("product stock %d: %w", stock, errCheckViolation)
	}
	p.Stock = stock
	p.UpdatedAt = r.now()
	r.st.products[id] = p
	return nil
}

func (r *productRepo) UpdateStatus(_ context.Context, id int64, status model.ProductStatus, approval model.ApprovalStatus) error {
	p, ok := r.st.products[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.Status = status
	p.ApprovalStatus = approval
	p.UpdatedAt = r.now()
	r.st.products[id] = p
	return nil
}

func (r *productRepo) ListLowStock(_ context.Context, q repo.LowStockQuery) ([]model.Product, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var out []model.Product
	for _, p := range r.st.products {
		if p.Stock > 0 && p.Stock <= q.Threshold && p.Sellable() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

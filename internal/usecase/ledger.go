package usecase

import (
	"context"
	"fmt"
	"iter"
	"time"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"
)

const historyPageSize = 100

// Ledger is the append-only stock history. Writes happen only through
// record, inside the transaction of the mutation they describe.
type Ledger struct {
	d        Deps
	pageSize int
}

func NewLedger(d Deps) *Ledger {
	return &Ledger{d: d.withDefaults(), pageSize: historyPageSize}
}

type RecordInput struct {
	ChangeType     model.StockChangeType
	QuantityChange int64
	Reason         string
	ActorID        *int64
	OrderID        *int64
	ReservationID  *int64
}

// record appends one entry for p. p must be the locked row as read in the
// current transaction; the caller then writes entry.StockAfter to the product.
func (l *Ledger) record(ctx context.Context, r repo.TxRepos, p model.Product, in RecordInput) (model.StockHistory, error) {
	if !in.ChangeType.Valid() {
		return model.StockHistory{}, apperr.NewInvalidArgument("change_type", "unknown change type", in.ChangeType)
	}

	after := p.Stock + in.QuantityChange
	if after < 0 {
		after = 0
	}

	entry, err := r.StockHistory().Create(ctx, model.StockHistory{
		ProductID:      p.ID,
		ChangeType:     in.ChangeType,
		QuantityChange: in.QuantityChange,
		StockBefore:    p.Stock,
		StockAfter:     after,
		Reason:         in.Reason,
		ActorID:        in.ActorID,
		OrderID:        in.OrderID,
		ReservationID:  in.ReservationID,
		CreatedAt:      l.d.Clock.Now(),
	})
	if err != nil {
		return model.StockHistory{}, fmt.Errorf("record stock history: %w", err)
	}
	return entry, nil
}

// HistoryFor yields the product's entries newest first, optionally stopping at since.
// Pages are fetched lazily; breaking out of the loop stops fetching.
func (l *Ledger) HistoryFor(ctx context.Context, productID int64, since *time.Time) iter.Seq2[model.StockHistory, error] {
	return func(yield func(model.StockHistory, error) bool) {
		var beforeID int64
		first := true
		for {
			var page []model.StockHistory
			err := l.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
				if first {
					if _, err := r.Products().FindByID(ctx, productID); err != nil {
						return notFoundOr(err, "product", productID)
					}
				}
				var err error
				page, err = r.StockHistory().ListByProduct(ctx, repo.StockHistoryQuery{
					ProductID: productID,
					Since:     since,
					BeforeID:  beforeID,
					Limit:     l.pageSize,
				})
				return err
			})
			if err != nil {
				yield(model.StockHistory{}, err)
				return
			}
			first = false

			for _, h := range page {
				if !yield(h, nil) {
					return
				}
			}
			if len(page) < l.pageSize {
				return
			}
			beforeID = page[len(page)-1].ID
		}
	}
}

// Page reads one keyset page; the HTTP and CLI listings use it directly.
func (l *Ledger) Page(ctx context.Context, q repo.StockHistoryQuery) ([]model.StockHistory, error) {
	var page []model.StockHistory
	err := l.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, q.ProductID); err != nil {
			return notFoundOr(err, "product", q.ProductID)
		}
		var err error
		page, err = r.StockHistory().ListByProduct(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

type LedgerSummary struct {
	ProductID    int64 `json:"product_id"`
	EntryCount   int64 `json:"entry_count"`
	TotalAdded   int64 `json:"total_added"`
	TotalRemoved int64 `json:"total_removed"`
	NetChange    int64 `json:"net_change"`
	InitialStock int64 `json:"initial_stock"`
	CurrentStock int64 `json:"current_stock"`
	// InitialStock + NetChange == CurrentStock
	Reconciled bool `json:"reconciled"`
}

func (l *Ledger) SummaryFor(ctx context.Context, productID int64) (LedgerSummary, error) {
	var out LedgerSummary
	err := l.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return notFoundOr(err, "product", productID)
		}
		agg, err := r.StockHistory().Aggregate(ctx, productID)
		if err != nil {
			return err
		}

		out = LedgerSummary{
			ProductID:    productID,
			EntryCount:   agg.EntryCount,
			TotalAdded:   agg.TotalAdded,
			TotalRemoved: agg.TotalRemoved,
			NetChange:    agg.TotalAdded - agg.TotalRemoved,
			InitialStock: agg.FirstStockBefore,
			CurrentStock: p.Stock,
		}
		if agg.EntryCount == 0 {
			out.InitialStock = p.Stock
		}
		out.Reconciled = out.InitialStock+out.NetChange == out.CurrentStock
		return nil
	})
	if err != nil {
		return LedgerSummary{}, err
	}
	return out, nil
}

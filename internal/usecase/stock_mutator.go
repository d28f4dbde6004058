package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/event"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockMutator is the only writer of Product.Stock. Every change is
// row-locked, ledgered and persisted in one transaction.
type StockMutator struct {
	d                 Deps
	ledger            *Ledger
	lowStockThreshold int64
}

func NewStockMutator(d Deps, ledger *Ledger, lowStockThreshold int64) *StockMutator {
	return &StockMutator{d: d.withDefaults(), ledger: ledger, lowStockThreshold: lowStockThreshold}
}

type ReduceInput struct {
	ProductID     int64
	Quantity      int64
	Reason        string
	ActorID       *int64
	OrderID       *int64
	ReservationID *int64
}

type IncreaseInput struct {
	ProductID int64
	Quantity  int64
	Reason    string
	ActorID   *int64
}

// AdjustInput sets stock to an absolute count (staff stock-take).
type AdjustInput struct {
	ProductID int64
	NewStock  int64
	Reason    string
	ActorID   *int64
}

type CreateProductInput struct {
	SellerID       int64
	Name           string
	Price          decimal.Decimal
	InitialStock   int64
	Status         model.ProductStatus
	ApprovalStatus model.ApprovalStatus
	ActorID        *int64
}

type SetStatusInput struct {
	ProductID      int64
	Status         model.ProductStatus
	ApprovalStatus model.ApprovalStatus // empty keeps the current one
	ActorID        int64
}

// StockChange is one applied mutation.
type StockChange struct {
	Product model.Product      `json:"product"`
	Entry   model.StockHistory `json:"entry"`
}

func (m *StockMutator) Reduce(ctx context.Context, in ReduceInput) (StockChange, error) {
	if err := validateQuantity(in.Quantity, 1); err != nil {
		return StockChange{}, err
	}
	return m.apply(ctx, func(r repo.TxRepos) (stockMutation, error) {
		return m.reduceTx(ctx, r, in)
	})
}

func (m *StockMutator) Increase(ctx context.Context, in IncreaseInput) (StockChange, error) {
	if err := validateQuantity(in.Quantity, 0); err != nil {
		return StockChange{}, err
	}
	return m.apply(ctx, func(r repo.TxRepos) (stockMutation, error) {
		return m.mutateTx(ctx, r, in.ProductID, func(p model.Product) (RecordInput, error) {
			return RecordInput{
				ChangeType:     model.StockChangeRestock,
				QuantityChange: in.Quantity,
				Reason:         in.Reason,
				ActorID:        in.ActorID,
			}, nil
		})
	})
}

// Return puts units back on hand, e.g. for a cancelled order.
func (m *StockMutator) Return(ctx context.Context, in IncreaseInput, orderID int64) (StockChange, error) {
	if err := validateQuantity(in.Quantity, 1); err != nil {
		return StockChange{}, err
	}
	return m.apply(ctx, func(r repo.TxRepos) (stockMutation, error) {
		return m.returnTx(ctx, r, in, orderID)
	})
}

// WriteOff removes damaged or lost units. Unlike Reduce it works on any status.
func (m *StockMutator) WriteOff(ctx context.Context, in ReduceInput) (StockChange, error) {
	if err := validateQuantity(in.Quantity, 1); err != nil {
		return StockChange{}, err
	}
	return m.apply(ctx, func(r repo.TxRepos) (stockMutation, error) {
		return m.mutateTx(ctx, r, in.ProductID, func(p model.Product) (RecordInput, error) {
			if in.Quantity > p.Stock {
				return RecordInput{}, apperr.NewInsufficientStock(p.ID, in.Quantity, p.Stock)
			}
			return RecordInput{
				ChangeType:     model.StockChangeDamaged,
				QuantityChange: -in.Quantity,
				Reason:         in.Reason,
				ActorID:        in.ActorID,
			}, nil
		})
	})
}

func (m *StockMutator) Adjust(ctx context.Context, in AdjustInput) (StockChange, error) {
	if in.NewStock < 0 {
		return StockChange{}, apperr.NewInvalidArgument("new_stock", "must be non-negative", in.NewStock)
	}
	return m.apply(ctx, func(r repo.TxRepos) (stockMutation, error) {
		return m.mutateTx(ctx, r, in.ProductID, func(p model.Product) (RecordInput, error) {
			return RecordInput{
				ChangeType:     model.StockChangeAdjustment,
				QuantityChange: in.NewStock - p.Stock,
				Reason:         in.Reason,
				ActorID:        in.ActorID,
			}, nil
		})
	})
}

// MarkSoldOut forces status sold and stock 0. The drop is ledgered as an
// adjustment so the history still reconciles.
func (m *StockMutator) MarkSoldOut(ctx context.Context, productID int64, actorID int64) (StockChange, error) {
	return m.apply(ctx, func(r repo.TxRepos) (stockMutation, error) {
		mut, err := m.mutateTx(ctx, r, productID, func(p model.Product) (RecordInput, error) {
			return RecordInput{
				ChangeType:     model.StockChangeAdjustment,
				QuantityChange: -p.Stock,
				Reason:         "marked as sold",
				ActorID:        int64Ptr(actorID),
			}, nil
		})
		if err != nil {
			return stockMutation{}, err
		}

		if err := r.Products().UpdateStatus(ctx, productID, model.ProductStatusSold, mut.before.ApprovalStatus); err != nil {
			return stockMutation{}, err
		}
		mut.after.Status = model.ProductStatusSold

		if actorID > 0 {
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actorID,
				Action:       model.AuditActionMarkSoldOut,
				ResourceType: model.AuditResourceProduct,
				ResourceID:   productID,
				BeforeJSON:   productStateJSON(mut.before),
				AfterJSON:    productStateJSON(mut.after),
				CreatedAt:    m.d.Clock.Now(),
			}); err != nil {
				return stockMutation{}, err
			}
		}
		return mut, nil
	})
}

// CreateProduct inserts a listing and opens its ledger with an initial entry.
func (m *StockMutator) CreateProduct(ctx context.Context, in CreateProductInput) (StockChange, error) {
	if strings.TrimSpace(in.Name) == "" {
		return StockChange{}, apperr.NewInvalidArgument("name", "cannot be empty", in.Name)
	}
	if in.Price.IsNegative() {
		return StockChange{}, apperr.NewInvalidArgument("price", "must be non-negative", in.Price.String())
	}
	if in.InitialStock < 0 {
		return StockChange{}, apperr.NewInvalidArgument("initial_stock", "must be non-negative", in.InitialStock)
	}
	if in.Status == "" {
		in.Status = model.ProductStatusDraft
	}
	if in.ApprovalStatus == "" {
		in.ApprovalStatus = model.ApprovalPending
	}
	if !in.Status.Valid() {
		return StockChange{}, apperr.NewInvalidArgument("status", "unknown status", in.Status)
	}
	if !in.ApprovalStatus.Valid() {
		return StockChange{}, apperr.NewInvalidArgument("approval_status", "unknown approval status", in.ApprovalStatus)
	}

	return m.apply(ctx, func(r repo.TxRepos) (stockMutation, error) {
		p, err := r.Products().Create(ctx, model.Product{
			SellerID:       in.SellerID,
			Name:           strings.TrimSpace(in.Name),
			Price:          in.Price,
			Stock:          0,
			Status:         in.Status,
			ApprovalStatus: in.ApprovalStatus,
		})
		if err != nil {
			return stockMutation{}, fmt.Errorf("create product: %w", err)
		}

		entry, err := m.ledger.record(ctx, r, p, RecordInput{
			ChangeType:     model.StockChangeInitial,
			QuantityChange: in.InitialStock,
			Reason:         "initial stock",
			ActorID:        in.ActorID,
		})
		if err != nil {
			return stockMutation{}, err
		}
		if err := r.Products().UpdateStock(ctx, p.ID, entry.StockAfter); err != nil {
			return stockMutation{}, err
		}

		after := p
		after.Stock = entry.StockAfter
		return stockMutation{before: p, after: after, entry: entry}, nil
	})
}

// SetStatus changes lifecycle/approval. Stock is untouched, so there is no ledger entry.
func (m *StockMutator) SetStatus(ctx context.Context, in SetStatusInput) (model.Product, error) {
	if !in.Status.Valid() {
		return model.Product{}, apperr.NewInvalidArgument("status", "unknown status", in.Status)
	}
	if in.ApprovalStatus != "" && !in.ApprovalStatus.Valid() {
		return model.Product{}, apperr.NewInvalidArgument("approval_status", "unknown approval status", in.ApprovalStatus)
	}

	var out model.Product
	err := m.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByIDForUpdate(ctx, in.ProductID)
		if err != nil {
			return notFoundOr(err, "product", in.ProductID)
		}

		after := p
		after.Status = in.Status
		if in.ApprovalStatus != "" {
			after.ApprovalStatus = in.ApprovalStatus
		}
		if after.Status == p.Status && after.ApprovalStatus == p.ApprovalStatus {
			out = p
			return nil
		}

		if err := r.Products().UpdateStatus(ctx, p.ID, after.Status, after.ApprovalStatus); err != nil {
			return err
		}
		if in.ActorID > 0 {
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  in.ActorID,
				Action:       model.AuditActionUpdateProductStatus,
				ResourceType: model.AuditResourceProduct,
				ResourceID:   p.ID,
				BeforeJSON:   productStateJSON(p),
				AfterJSON:    productStateJSON(after),
				CreatedAt:    m.d.Clock.Now(),
			}); err != nil {
				return err
			}
		}
		out = after
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}

	m.d.invalidate(ctx, out.ID)
	m.d.Log.Info("product status changed",
		zap.Int64("product_id", out.ID),
		zap.String("status", string(out.Status)),
		zap.String("approval_status", string(out.ApprovalStatus)))
	return out, nil
}

// ---- transaction-scoped building blocks ----

type stockMutation struct {
	before model.Product
	after  model.Product
	entry  model.StockHistory
}

// reduceTx is Reduce inside a caller's transaction (order finalization).
func (m *StockMutator) reduceTx(ctx context.Context, r repo.TxRepos, in ReduceInput) (stockMutation, error) {
	return m.mutateTx(ctx, r, in.ProductID, func(p model.Product) (RecordInput, error) {
		if p.Status != model.ProductStatusActive {
			return RecordInput{}, apperr.NewInvalidState("product", p.ID, string(p.Status), "stock can only be reduced on an active product")
		}
		if in.Quantity > p.Stock {
			return RecordInput{}, apperr.NewInsufficientStock(p.ID, in.Quantity, p.Stock)
		}
		return RecordInput{
			ChangeType:     model.StockChangeSale,
			QuantityChange: -in.Quantity,
			Reason:         in.Reason,
			ActorID:        in.ActorID,
			OrderID:        in.OrderID,
			ReservationID:  in.ReservationID,
		}, nil
	})
}

func (m *StockMutator) returnTx(ctx context.Context, r repo.TxRepos, in IncreaseInput, orderID int64) (stockMutation, error) {
	return m.mutateTx(ctx, r, in.ProductID, func(p model.Product) (RecordInput, error) {
		return RecordInput{
			ChangeType:     model.StockChangeReturn,
			QuantityChange: in.Quantity,
			Reason:         in.Reason,
			ActorID:        in.ActorID,
			OrderID:        int64Ptr(orderID),
		}, nil
	})
}

// mutateTx locks the product, lets plan decide the ledger entry from the
// locked row, appends it and persists the resulting stock.
func (m *StockMutator) mutateTx(ctx context.Context, r repo.TxRepos, productID int64, plan func(p model.Product) (RecordInput, error)) (stockMutation, error) {
	p, err := r.Products().FindByIDForUpdate(ctx, productID)
	if err != nil {
		return stockMutation{}, notFoundOr(err, "product", productID)
	}

	in, err := plan(p)
	if err != nil {
		return stockMutation{}, err
	}

	entry, err := m.ledger.record(ctx, r, p, in)
	if err != nil {
		return stockMutation{}, err
	}
	if err := r.Products().UpdateStock(ctx, p.ID, entry.StockAfter); err != nil {
		return stockMutation{}, fmt.Errorf("update stock: %w", err)
	}

	after := p
	after.Stock = entry.StockAfter
	return stockMutation{before: p, after: after, entry: entry}, nil
}

func (m *StockMutator) apply(ctx context.Context, fn func(r repo.TxRepos) (stockMutation, error)) (StockChange, error) {
	var mut stockMutation
	err := m.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		mut, err = fn(r)
		return err
	})
	if err != nil {
		return StockChange{}, err
	}

	m.afterCommit(ctx, mut)
	return StockChange{Product: mut.after, Entry: mut.entry}, nil
}

// afterCommit runs once the mutation is durable.
func (m *StockMutator) afterCommit(ctx context.Context, muts ...stockMutation) {
	ids := make([]int64, 0, len(muts))
	for _, mut := range muts {
		ids = append(ids, mut.after.ID)
	}
	m.d.invalidate(ctx, ids...)

	for _, mut := range muts {
		m.d.Log.Info("stock changed",
			zap.Int64("product_id", mut.after.ID),
			zap.String("change_type", string(mut.entry.ChangeType)),
			zap.Int64("quantity_change", mut.entry.QuantityChange),
			zap.Int64("stock_after", mut.entry.StockAfter))

		key := productKey(mut.after.ID)
		m.d.publish(ctx, event.Event{
			Type: event.StockChanged,
			Key:  key,
			Payload: event.StockChangedPayload{
				ProductID:      mut.after.ID,
				ChangeType:     string(mut.entry.ChangeType),
				QuantityChange: mut.entry.QuantityChange,
				StockBefore:    mut.entry.StockBefore,
				StockAfter:     mut.entry.StockAfter,
				StockHistoryID: mut.entry.ID,
			},
		})

		if crossedLowStock(mut.entry.StockBefore, mut.entry.StockAfter, m.lowStockThreshold) {
			m.d.publish(ctx, event.Event{
				Type: event.StockLow,
				Key:  key,
				Payload: event.StockLowPayload{
					ProductID: mut.after.ID,
					Stock:     mut.entry.StockAfter,
					Threshold: m.lowStockThreshold,
				},
			})
		}
	}
}

func crossedLowStock(before, after, threshold int64) bool {
	return before > threshold && after <= threshold
}

func validateQuantity(q, least int64) error {
	if q < least {
		if least == 0 {
			return apperr.NewInvalidArgument("quantity", "must be non-negative", q)
		}
		return apperr.NewInvalidArgument("quantity", fmt.Sprintf("must be at least %d", least), q)
	}
	return nil
}

func productStateJSON(p model.Product) string {
	b, _ := json.Marshal(struct {
		Status         model.ProductStatus  `json:"status"`
		ApprovalStatus model.ApprovalStatus `json:"approval_status"`
		Stock          int64                `json:"stock"`
	}{p.Status, p.ApprovalStatus, p.Stock})
	return string(b)
}

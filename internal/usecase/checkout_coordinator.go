package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/event"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutCoordinator turns cart lines into holds, and paid holds into orders.
type CheckoutCoordinator struct {
	d            Deps
	mutator      *StockMutator
	reservations *ReservationManager
}

func NewCheckoutCoordinator(d Deps, mutator *StockMutator, reservations *ReservationManager) *CheckoutCoordinator {
	return &CheckoutCoordinator{d: d.withDefaults(), mutator: mutator, reservations: reservations}
}

type CheckoutLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type ReserveInput struct {
	UserID      int64
	Lines       []CheckoutLine
	TTL         time.Duration // 0 = default
	CheckoutRef string        // generated when empty
}

type ReserveResult struct {
	CheckoutRef  string                   `json:"checkout_ref"`
	Reservations []model.StockReservation `json:"reservations"`
}

// ReserveForCheckout holds every line or none. Lines on the same product are
// merged and products are locked in id order. Every failing line is reported
// in one *apperr.CheckoutError and nothing is kept.
func (c *CheckoutCoordinator) ReserveForCheckout(ctx context.Context, in ReserveInput) (ReserveResult, error) {
	ttl := in.TTL
	if ttl == 0 {
		ttl = c.reservations.DefaultTTL()
	}
	lines, err := mergeLines(in.Lines)
	if err != nil {
		return ReserveResult{}, err
	}
	if err := c.reservations.validateHold(in.UserID, 1, ttl); err != nil {
		return ReserveResult{}, err
	}
	ref := strings.TrimSpace(in.CheckoutRef)
	if ref == "" {
		ref = uuid.NewString()
	}

	var held []model.StockReservation
	err = withDuplicateRetry(func() error {
		held = held[:0]
		return c.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
			now := c.d.Clock.Now()
			failed := &apperr.CheckoutError{}

			for _, l := range lines {
				p, err := r.Products().FindByIDForUpdate(ctx, l.ProductID)
				if errors.Is(err, repo.ErrNotFound) {
					failed.Add(l.ProductID, apperr.NewNotFound("product", l.ProductID))
					continue
				}
				if err != nil {
					return err
				}
				if !p.Sellable() {
					failed.Add(p.ID, apperr.NewInvalidState("product", p.ID, string(p.Status), "product is not available for sale"))
					continue
				}

				// the buyer's own hold is replaced, not added to
				others, err := r.Reservations().SumLive(ctx, p.ID, now, in.UserID)
				if err != nil {
					return err
				}
				available := max(p.Stock-others, 0)
				if l.Quantity > available {
					failed.Add(p.ID, apperr.NewInsufficientStock(p.ID, l.Quantity, available))
					continue
				}
				if failed.OrNil() != nil {
					// the step fails anyway; keep collecting line errors only
					continue
				}

				res, _, err := c.reservations.createOrRenewTx(ctx, r, holdRequest{
					UserID:      in.UserID,
					ProductID:   p.ID,
					Quantity:    l.Quantity,
					TTL:         ttl,
					CheckoutRef: ref,
				})
				if err != nil {
					return err
				}
				held = append(held, res)
			}
			return failed.OrNil()
		})
	})
	if err != nil {
		var ce *apperr.CheckoutError
		if errors.As(err, &ce) {
			c.d.Log.Info("checkout reservation rejected",
				zap.Int64("user_id", in.UserID),
				zap.Int("failed_lines", len(ce.Lines)))
		}
		return ReserveResult{}, err
	}

	ids := make([]int64, 0, len(held))
	for _, res := range held {
		ids = append(ids, res.ProductID)
	}
	c.d.invalidate(ctx, ids...)
	c.d.Log.Info("checkout reserved",
		zap.Int64("user_id", in.UserID),
		zap.String("checkout_ref", ref),
		zap.Int("lines", len(held)))

	return ReserveResult{CheckoutRef: ref, Reservations: held}, nil
}

type FinalizeInput struct {
	UserID      int64
	PaymentRef  string
	CheckoutRef string
	// empty = every active hold of the user (narrowed by CheckoutRef when set)
	Lines []CheckoutLine
}

type FinalizeResult struct {
	Orders []model.Order      `json:"orders"`
	Failed []apperr.LineError `json:"-"`
	// orders that already existed for this payment ref
	Replayed int `json:"replayed"`
}

// FinalizeOrder converts a confirmed payment into orders. Each line commits on
// its own: lock product, check availability excluding the buyer's hold, reduce
// stock, create the order, complete the hold. A line that cannot be filled in
// full is cancelled (hold included) and reported; it is never shrunk.
//
// Replays with the same PaymentRef return the existing order of each line.
// When some lines failed, the result still carries the created orders and the
// error is a *apperr.CheckoutError listing the failed lines.
func (c *CheckoutCoordinator) FinalizeOrder(ctx context.Context, in FinalizeInput) (FinalizeResult, error) {
	if in.UserID <= 0 {
		return FinalizeResult{}, apperr.NewInvalidArgument("user_id", "must be positive", in.UserID)
	}
	ref := strings.TrimSpace(in.PaymentRef)
	if ref == "" || len(ref) > 255 {
		return FinalizeResult{}, apperr.NewInvalidArgument("payment_ref", "must be 1..255 chars", in.PaymentRef)
	}

	lines, existing, err := c.finalizePlan(ctx, in.UserID, ref, in.CheckoutRef, in.Lines)
	if err != nil {
		return FinalizeResult{}, err
	}

	out := FinalizeResult{Orders: []model.Order{}}
	failed := &apperr.CheckoutError{}
	var (
		muts     []stockMutation
		newOrder []int64
	)

	for _, l := range lines {
		if o, ok := existing[l.ProductID]; ok {
			out.Orders = append(out.Orders, o)
			out.Replayed++
			continue
		}

		o, mut, err := c.finalizeLine(ctx, in.UserID, ref, in.CheckoutRef, l)
		switch {
		case err == nil:
			out.Orders = append(out.Orders, o)
			muts = append(muts, mut)
			newOrder = append(newOrder, o.ID)
		case errors.Is(err, repo.ErrDuplicate):
			// a concurrent finalize of the same payment won this line
			o, lerr := c.orderFor(ctx, in.UserID, ref, l.ProductID)
			if lerr != nil {
				return out, lerr
			}
			out.Orders = append(out.Orders, o)
			out.Replayed++
		case isLineFailure(err):
			failed.Add(l.ProductID, err)
			if cerr := c.cancelHold(ctx, in.UserID, l.ProductID); cerr != nil {
				return out, cerr
			}
		default:
			c.mutator.afterCommit(ctx, muts...)
			return out, err
		}
	}

	c.mutator.afterCommit(ctx, muts...)
	if len(newOrder) > 0 {
		c.d.publish(ctx, event.Event{
			Type: event.OrderFinalized,
			Key:  ref,
			Payload: event.OrderFinalizedPayload{
				UserID:     in.UserID,
				PaymentRef: ref,
				OrderIDs:   newOrder,
			},
		})
	}

	out.Failed = failed.Lines
	if err := failed.OrNil(); err != nil {
		c.d.Log.Warn("order finalized partially",
			zap.Int64("user_id", in.UserID),
			zap.String("payment_ref", ref),
			zap.Int("orders", len(out.Orders)),
			zap.Int("failed_lines", len(failed.Lines)))
		return out, err
	}
	c.d.Log.Info("order finalized",
		zap.Int64("user_id", in.UserID),
		zap.String("payment_ref", ref),
		zap.Int("orders", len(out.Orders)))
	return out, nil
}

// finalizePlan resolves the lines to fill and the orders a previous attempt already created.
func (c *CheckoutCoordinator) finalizePlan(ctx context.Context, userID int64, paymentRef, checkoutRef string, given []CheckoutLine) ([]CheckoutLine, map[int64]model.Order, error) {
	var (
		lines    []CheckoutLine
		existing = map[int64]model.Order{}
	)
	err := c.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByPaymentRef(ctx, userID, paymentRef)
		if err != nil {
			return err
		}
		for _, o := range orders {
			existing[o.ProductID] = o
		}

		if len(given) > 0 {
			lines, err = mergeLines(given)
			return err
		}

		holds, err := r.Reservations().ListActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, h := range holds {
			if checkoutRef != "" && h.CheckoutRef != checkoutRef {
				continue
			}
			lines = append(lines, CheckoutLine{ProductID: h.ProductID, Quantity: h.Quantity})
		}
		// a replay after every hold completed still resolves to the existing orders
		for pid, o := range existing {
			if !containsLine(lines, pid) {
				lines = append(lines, CheckoutLine{ProductID: pid, Quantity: o.Quantity})
			}
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, apperr.NewInvalidArgument("lines", "no lines and no active reservations", 0)
	}
	return lines, existing, nil
}

func (c *CheckoutCoordinator) finalizeLine(ctx context.Context, userID int64, paymentRef, checkoutRef string, l CheckoutLine) (model.Order, stockMutation, error) {
	var (
		order model.Order
		mut   stockMutation
	)
	err := c.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := c.d.Clock.Now()

		p, err := r.Products().FindByIDForUpdate(ctx, l.ProductID)
		if err != nil {
			return notFoundOr(err, "product", l.ProductID)
		}
		if !p.Sellable() {
			return apperr.NewInvalidState("product", p.ID, string(p.Status), "product is not available for sale")
		}

		hold, found, err := r.Reservations().FindActive(ctx, userID, p.ID)
		if err != nil {
			return err
		}

		// an expired hold no longer protects the line; only what others leave counts
		others, err := r.Reservations().SumLive(ctx, p.ID, now, userID)
		if err != nil {
			return err
		}
		if available := max(p.Stock-others, 0); l.Quantity > available {
			return apperr.NewInsufficientStock(p.ID, l.Quantity, available)
		}

		var holdID *int64
		if found {
			holdID = &hold.ID
		}
		mut, err = c.mutator.reduceTx(ctx, r, ReduceInput{
			ProductID:     p.ID,
			Quantity:      l.Quantity,
			Reason:        "payment " + paymentRef,
			ReservationID: holdID,
		})
		if err != nil {
			return err
		}

		order, err = r.Orders().Create(ctx, model.Order{
			UserID:         userID,
			ProductID:      p.ID,
			Quantity:       l.Quantity,
			UnitPrice:      p.Price,
			TotalPrice:     p.Price.Mul(decimal.NewFromInt(l.Quantity)),
			Status:         model.OrderStatusPending,
			PaymentRef:     paymentRef,
			CheckoutRef:    checkoutRef,
			ReservationID:  holdID,
			StockHistoryID: &mut.entry.ID,
		})
		if err != nil {
			return err
		}

		if found {
			if _, err := r.Reservations().Transition(ctx, repo.ReservationTransition{
				ID:             hold.ID,
				To:             model.ReservationCompleted,
				OrderID:        &order.ID,
				StockHistoryID: &mut.entry.ID,
				At:             now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Order{}, stockMutation{}, err
	}
	return order, mut, nil
}

func (c *CheckoutCoordinator) orderFor(ctx context.Context, userID int64, paymentRef string, productID int64) (model.Order, error) {
	var out model.Order
	err := c.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByPaymentRef(ctx, userID, paymentRef)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if o.ProductID == productID {
				out = o
				return nil
			}
		}
		return apperr.NewNotFound("order", productID)
	})
	return out, err
}

func (c *CheckoutCoordinator) cancelHold(ctx context.Context, userID, productID int64) error {
	var cancelled bool
	err := c.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		hold, found, err := r.Reservations().FindActive(ctx, userID, productID)
		if err != nil || !found {
			return err
		}
		cancelled, err = r.Reservations().Transition(ctx, repo.ReservationTransition{
			ID: hold.ID, To: model.ReservationCancelled, At: c.d.Clock.Now(),
		})
		return err
	})
	if err != nil {
		return err
	}
	if cancelled {
		c.d.invalidate(ctx, productID)
	}
	return nil
}

// ReleaseCheckout cancels the user's active holds after a failed payment.
// productIDs narrows the release; empty releases every hold of the user.
func (c *CheckoutCoordinator) ReleaseCheckout(ctx context.Context, userID int64, productIDs []int64) (int, error) {
	if userID <= 0 {
		return 0, apperr.NewInvalidArgument("user_id", "must be positive", userID)
	}
	want := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}

	var released []int64
	err := c.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		released = released[:0]
		holds, err := r.Reservations().ListActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		now := c.d.Clock.Now()
		for _, h := range holds {
			if len(want) > 0 && !want[h.ProductID] {
				continue
			}
			ok, err := r.Reservations().Transition(ctx, repo.ReservationTransition{
				ID: h.ID, To: model.ReservationCancelled, At: now,
			})
			if err != nil {
				return err
			}
			if ok {
				released = append(released, h.ProductID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.d.invalidate(ctx, released...)
	c.d.Log.Info("checkout released",
		zap.Int64("user_id", userID),
		zap.Int("reservations", len(released)))
	return len(released), nil
}

func mergeLines(lines []CheckoutLine) ([]CheckoutLine, error) {
	if len(lines) == 0 {
		return nil, apperr.NewInvalidArgument("lines", "cannot be empty", 0)
	}
	qty := map[int64]int64{}
	for _, l := range lines {
		if l.ProductID <= 0 {
			return nil, apperr.NewInvalidArgument("product_id", "must be positive", l.ProductID)
		}
		if l.Quantity < 1 {
			return nil, apperr.NewInvalidArgument("quantity", "must be at least 1", l.Quantity)
		}
		qty[l.ProductID] += l.Quantity
	}

	out := make([]CheckoutLine, 0, len(qty))
	for pid, q := range qty {
		out = append(out, CheckoutLine{ProductID: pid, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func containsLine(lines []CheckoutLine, productID int64) bool {
	for _, l := range lines {
		if l.ProductID == productID {
			return true
		}
	}
	return false
}

func isLineFailure(err error) bool {
	return apperr.IsInsufficientStock(err) || apperr.IsInvalidState(err) || apperr.IsNotFound(err)
}

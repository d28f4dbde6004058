package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/event"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"go.uber.org/zap"
)

// ReservationManager owns time-boxed holds on product quantity.
// It has no timer of its own; ExpireStale is driven by the sweeper.
type ReservationManager struct {
	d          Deps
	defaultTTL time.Duration
	maxTTL     time.Duration
}

// DefaultMaxReservationTTL caps holds when no explicit limit is configured.
const DefaultMaxReservationTTL = 2 * time.Hour

// NewReservationManager takes the TTL used when a caller passes none and the
// longest TTL a caller may ask for (0 = DefaultMaxReservationTTL).
func NewReservationManager(d Deps, defaultTTL, maxTTL time.Duration) *ReservationManager {
	if maxTTL <= 0 {
		maxTTL = DefaultMaxReservationTTL
	}
	return &ReservationManager{d: d.withDefaults(), defaultTTL: defaultTTL, maxTTL: maxTTL}
}

// TransitionResult tells a caller whether its complete/cancel actually moved the hold.
type TransitionResult struct {
	Reservation     model.StockReservation `json:"reservation"`
	Applied         bool                   `json:"applied"`
	AlreadyTerminal bool                   `json:"already_terminal"`
}

func (m *ReservationManager) DefaultTTL() time.Duration { return m.defaultTTL }

func (m *ReservationManager) MaxTTL() time.Duration { return m.maxTTL }

// CreateOrRenew holds quantity of a product for a user. An existing active hold
// is overwritten (quantity and expiry), never added to. It does not check availability.
func (m *ReservationManager) CreateOrRenew(ctx context.Context, userID, productID, quantity int64, ttl time.Duration) (model.StockReservation, bool, error) {
	if err := m.validateHold(userID, quantity, ttl); err != nil {
		return model.StockReservation{}, false, err
	}

	var (
		res     model.StockReservation
		created bool
	)
	err := withDuplicateRetry(func() error {
		return m.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
			if _, err := r.Products().FindByIDForUpdate(ctx, productID); err != nil {
				return notFoundOr(err, "product", productID)
			}
			var err error
			res, created, err = m.createOrRenewTx(ctx, r, holdRequest{
				UserID:    userID,
				ProductID: productID,
				Quantity:  quantity,
				TTL:       ttl,
			})
			return err
		})
	})
	if err != nil {
		return model.StockReservation{}, false, err
	}

	m.d.invalidate(ctx, productID)
	m.d.Log.Info("reservation held",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int64("quantity", quantity),
		zap.Bool("created", created))
	return res, created, nil
}

type holdRequest struct {
	UserID      int64
	ProductID   int64
	Quantity    int64
	TTL         time.Duration
	CheckoutRef string
}

// createOrRenewTx expects the product row to be locked by the caller.
func (m *ReservationManager) createOrRenewTx(ctx context.Context, r repo.TxRepos, h holdRequest) (model.StockReservation, bool, error) {
	now := m.d.Clock.Now()
	expiresAt := now.Add(h.TTL)

	existing, found, err := r.Reservations().FindActive(ctx, h.UserID, h.ProductID)
	if err != nil {
		return model.StockReservation{}, false, err
	}
	if found {
		err := r.Reservations().Renew(ctx, repo.ReservationRenewal{
			ID:          existing.ID,
			Quantity:    h.Quantity,
			ExpiresAt:   expiresAt,
			CheckoutRef: h.CheckoutRef,
			At:          now,
		})
		if err != nil {
			return model.StockReservation{}, false, err
		}
		if h.CheckoutRef != "" {
			existing.CheckoutRef = h.CheckoutRef
		}
		existing.Quantity = h.Quantity
		existing.ExpiresAt = expiresAt
		existing.UpdatedAt = now
		return existing, false, nil
	}

	res, err := r.Reservations().Create(ctx, model.StockReservation{
		ProductID:   h.ProductID,
		UserID:      h.UserID,
		Quantity:    h.Quantity,
		Status:      model.ReservationActive,
		ExpiresAt:   expiresAt,
		CheckoutRef: h.CheckoutRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.StockReservation{}, false, err
	}
	return res, true, nil
}

// GetReservedQuantity sums live holds: active and not yet past expiry, swept or not.
func (m *ReservationManager) GetReservedQuantity(ctx context.Context, productID int64) (int64, error) {
	a, err := m.Availability(ctx, productID)
	if err != nil {
		return 0, err
	}
	return a.Reserved, nil
}

// GetAvailableStock is max(0, stock - reserved).
func (m *ReservationManager) GetAvailableStock(ctx context.Context, productID int64) (int64, error) {
	a, err := m.Availability(ctx, productID)
	if err != nil {
		return 0, err
	}
	return a.Available, nil
}

func (m *ReservationManager) IsInStock(ctx context.Context, productID int64) (bool, error) {
	a, err := m.Availability(ctx, productID)
	if err != nil {
		return false, err
	}
	return a.InStock, nil
}

// Availability reads stock and live holds in one transaction.
func (m *ReservationManager) Availability(ctx context.Context, productID int64) (model.Availability, error) {
	var out model.Availability
	err := m.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return notFoundOr(err, "product", productID)
		}
		reserved, err := r.Reservations().SumLive(ctx, productID, m.d.Clock.Now(), 0)
		if err != nil {
			return err
		}
		out = availabilityOf(p, reserved)
		return nil
	})
	if err != nil {
		return model.Availability{}, err
	}
	return out, nil
}

func availabilityOf(p model.Product, reserved int64) model.Availability {
	available := p.Stock - reserved
	if available < 0 {
		available = 0
	}
	return model.Availability{
		ProductID: p.ID,
		Stock:     p.Stock,
		Reserved:  reserved,
		Available: available,
		InStock:   p.IsInStock(),
	}
}

// ExpireStale moves every overdue active hold to expired. Safe to run concurrently
// with itself and with checkouts: only rows still active are touched.
func (m *ReservationManager) ExpireStale(ctx context.Context) (int64, error) {
	now := m.d.Clock.Now()

	var n int64
	err := m.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, err = r.Reservations().ExpireStale(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}

	if n > 0 {
		m.d.Log.Info("reservations expired", zap.Int64("count", n))
		m.d.publish(ctx, event.Event{
			Type:    event.ReservationExpired,
			Key:     "sweep",
			Payload: event.ReservationExpiredPayload{Count: n, At: now},
		})
	}
	return n, nil
}

func (m *ReservationManager) MarkCompleted(ctx context.Context, reservationID int64) (TransitionResult, error) {
	return m.transition(ctx, reservationID, 0, 0, model.ReservationCompleted)
}

// MarkCancelled cancels a hold. ownerID > 0 restricts it to that buyer's holds
// (others are reported as not found); ownerID 0 lets staff cancel any hold.
// actorID is who is recorded in the audit log and is always required.
func (m *ReservationManager) MarkCancelled(ctx context.Context, reservationID, ownerID, actorID int64) (TransitionResult, error) {
	if actorID <= 0 {
		return TransitionResult{}, apperr.NewInvalidArgument("actor_id", "must be positive", actorID)
	}
	return m.transition(ctx, reservationID, ownerID, actorID, model.ReservationCancelled)
}

func (m *ReservationManager) transition(ctx context.Context, reservationID, ownerID, actorID int64, to model.ReservationStatus) (TransitionResult, error) {
	var out TransitionResult
	err := m.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		res, err := r.Reservations().FindByID(ctx, reservationID)
		if err != nil {
			return notFoundOr(err, "reservation", reservationID)
		}
		if ownerID > 0 && res.UserID != ownerID {
			return apperr.NewNotFound("reservation", reservationID)
		}

		now := m.d.Clock.Now()
		applied, err := r.Reservations().Transition(ctx, repo.ReservationTransition{ID: res.ID, To: to, At: now})
		if err != nil {
			return err
		}
		if !applied {
			out = TransitionResult{Reservation: res, AlreadyTerminal: true}
			return nil
		}

		before := res.Status
		res.Status = to
		res.UpdatedAt = now
		out = TransitionResult{Reservation: res, Applied: true}

		if to != model.ReservationCancelled {
			return nil
		}
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorID,
			Action:       model.AuditActionCancelReservation,
			ResourceType: model.AuditResourceReservation,
			ResourceID:   res.ID,
			BeforeJSON:   `{"status":"` + string(before) + `"}`,
			AfterJSON:    `{"status":"` + string(to) + `"}`,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if out.AlreadyTerminal {
		m.d.Log.Warn("reservation already terminal",
			zap.Int64("reservation_id", reservationID),
			zap.String("status", string(out.Reservation.Status)),
			zap.String("requested", string(to)))
		return out, nil
	}
	m.d.invalidate(ctx, out.Reservation.ProductID)
	return out, nil
}

func (m *ReservationManager) ListActive(ctx context.Context, userID int64) ([]model.StockReservation, error) {
	if userID <= 0 {
		return nil, apperr.NewInvalidArgument("user_id", "must be positive", userID)
	}
	var out []model.StockReservation
	err := m.d.Tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = r.Reservations().ListActiveByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.StockReservation{}
	}
	return out, nil
}

func (m *ReservationManager) validateHold(userID, quantity int64, ttl time.Duration) error {
	if userID <= 0 {
		return apperr.NewInvalidArgument("user_id", "must be positive", userID)
	}
	if quantity < 1 {
		return apperr.NewInvalidArgument("quantity", "must be at least 1", quantity)
	}
	if ttl <= 0 {
		return apperr.NewInvalidArgument("ttl", "must be positive", ttl.String())
	}
	if ttl > m.maxTTL {
		return apperr.NewInvalidArgument("ttl", "must not exceed "+m.maxTTL.String(), ttl.String())
	}
	return nil
}

// A concurrent insert of the same (user, product) hold loses on the partial
// unique index and aborts its transaction; one retry then finds the winner's
// row and renews it.
func withDuplicateRetry(fn func() error) error {
	err := fn()
	if errors.Is(err, repo.ErrDuplicate) {
		err = fn()
	}
	return err
}

func productKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

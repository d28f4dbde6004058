package usecase

import (
	"context"
	"errors"
	"time"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/event"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// AvailabilityCache holds catalog snapshots. Every writer invalidates after commit.
type AvailabilityCache interface {
	Get(ctx context.Context, productID int64) (model.Availability, bool, error)
	Set(ctx context.Context, a model.Availability) error
	Invalidate(ctx context.Context, productIDs ...int64) error
}

type NopCache struct{}

func (NopCache) Get(context.Context, int64) (model.Availability, bool, error) {
	return model.Availability{}, false, nil
}
func (NopCache) Set(context.Context, model.Availability) error { return nil }
func (NopCache) Invalidate(context.Context, ...int64) error    { return nil }

// Deps is what every stock usecase is wired with. Zero fields fall back to no-ops.
type Deps struct {
	Tx     repo.TransactionManager
	Clock  Clock
	Events event.Publisher
	Cache  AvailabilityCache
	Log    *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Events == nil {
		d.Events = event.Nop{}
	}
	if d.Cache == nil {
		d.Cache = NopCache{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return d
}

// afterCommit side effects never fail the operation: the write is already durable.
func (d Deps) invalidate(ctx context.Context, productIDs ...int64) {
	if err := d.Cache.Invalidate(ctx, productIDs...); err != nil {
		d.Log.Warn("availability cache invalidate failed",
			zap.Int64s("product_ids", productIDs),
			zap.Error(err))
	}
}

func (d Deps) publish(ctx context.Context, ev event.Event) {
	if err := d.Events.Publish(ctx, ev); err != nil {
		d.Log.Warn("publish event failed",
			zap.String("event_type", string(ev.Type)),
			zap.String("key", ev.Key),
			zap.Error(err))
	}
}

func notFoundOr(err error, resource string, id int64) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NewNotFound(resource, id)
	}
	return err
}

func int64Ptr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Expirer is the part of the reservation manager the sweeper drives.
type Expirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Sweeper expires overdue reservations on a fixed interval.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(expirer Expirer, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{expirer: expirer, interval: interval, log: log}
}

// Run sweeps once immediately, then on every tick until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info("reservation sweeper disabled")
		<-ctx.Done()
		return nil
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.log.Info("reservation sweeper started", zap.Duration("interval", s.interval))
	for {
		s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("reservation sweeper stopped")
			return nil
		case <-t.C:
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.expirer.ExpireStale(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("reservation sweep failed", zap.Error(err))
		}
		return 0
	}
	if n > 0 {
		s.log.Debug("reservation sweep done", zap.Int64("expired", n))
	}
	return n
}

// Package app wires the stock usecases onto the configured store, cache and event bus.
// Both the API server and stockctl build on it.
package app

import (
	"context"
	"fmt"

	"marketstock/internal/config"
	"marketstock/internal/domain/event"
	"marketstock/internal/infra/db"
	"marketstock/internal/infra/kafka"
	"marketstock/internal/infra/memory"
	"marketstock/internal/infra/redisx"
	infraRepo "marketstock/internal/infra/repository"
	repo "marketstock/internal/repository"
	"marketstock/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const producerBuffer = 1024

type App struct {
	Ledger       *usecase.Ledger
	Mutator      *usecase.StockMutator
	Reservations *usecase.ReservationManager
	Checkout     *usecase.CheckoutCoordinator
	Catalog      *usecase.CatalogUsecase
	Orders       *usecase.OrderUsecase
	AdminOrders  *usecase.AdminOrderUsecase
	Audit        *usecase.AuditUsecase

	// nil when KAFKA_BROKERS is empty; the owner runs it
	Producer *kafka.Producer

	db  *gorm.DB
	rdb *redis.Client
	log *zap.Logger
}

func Build(ctx context.Context, cfg config.Config, service string, log *zap.Logger) (*App, error) {
	a := &App{log: log}

	var tx repo.TransactionManager
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on exit")
		tx = memory.NewStore()
	default:
		gdb, err := db.Connect(cfg)
		if err != nil {
			return nil, err
		}
		a.db = gdb
		tx = infraRepo.NewTxManagerGorm(gdb)
	}

	var cache usecase.AvailabilityCache = usecase.NopCache{}
	if cfg.RedisAddr != "" {
		a.rdb = redisx.New(cfg.RedisAddr)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			// the cache is optional; reads fall back to the store
			log.Warn("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cache = redisx.NewAvailabilityCache(a.rdb, cfg.AvailabilityCacheTTL)
	}

	var events event.Publisher = event.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		a.Producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, producerBuffer, log.Named("kafka"))
		events = kafka.NewPublisher(a.Producer, service)
	}

	d := usecase.Deps{Tx: tx, Events: events, Cache: cache, Log: log}
	a.Ledger = usecase.NewLedger(d)
	a.Mutator = usecase.NewStockMutator(d, a.Ledger, cfg.LowStockThreshold)
	a.Reservations = usecase.NewReservationManager(d, cfg.ReservationTTL, cfg.MaxReservationTTL)
	a.Checkout = usecase.NewCheckoutCoordinator(d, a.Mutator, a.Reservations)
	a.Catalog = usecase.NewCatalogUsecase(d, a.Reservations, cfg.LowStockThreshold)
	a.Orders = usecase.NewOrderUsecase(d)
	a.AdminOrders = usecase.NewAdminOrderUsecase(d, a.Mutator)
	a.Audit = usecase.NewAuditUsecase(d)
	return a, nil
}

// Migrate creates the schema; a no-op for the memory store.
func (a *App) Migrate() error {
	if a.db == nil {
		return nil
	}
	if err := db.Migrate(a.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.log.Info("schema migrated")
	return nil
}

// Close releases the connections. The producer is stopped by cancelling its Run context.
func (a *App) Close() error {
	var firstErr error
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	redisstate "github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// runtimeDependencies — хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	catalog         domain.Catalog
	state           domain.StateStore
	repo            domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository

	// checkers регистрируются в /healthz и /readyz.
	checkers map[string]healthcheck.Checker
	closers  []func() error
}

// closeFn закрывает подключения в обратном порядке открытия.
func (d *runtimeDependencies) closeFn() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies открывает хранилища по StorageDriver и StateDriver.
// При ошибке уже открытые подключения закрываются.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (deps *runtimeDependencies, err error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	deps = &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}
	defer func() {
		if err != nil {
			_ = deps.closeFn()
			deps = nil
		}
	}()

	var pg *postgres.Store
	openPostgres := func() (*postgres.Store, error) {
		if pg != nil {
			return pg, nil
		}
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, errors.New("postgres dsn is required for postgres driver")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		deps.checkers["postgres"] = healthcheck.NewSimpleChecker("postgres", store.Ping)
		pg = store
		logger.Info("postgres storage initialized")
		return pg, nil
	}

	var baseCatalog domain.Catalog
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		var seed []domain.Product
		if cfg.SeedDemoCatalog {
			seed = memory.DemoProducts()
		}
		baseCatalog = memory.NewCatalog(seed...)
		deps.repo = memory.NewOrderRepository()
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.timelineRepo = memory.NewTimelineRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
	case StorageDriverPostgres:
		store, err := openPostgres()
		if err != nil {
			return nil, err
		}
		baseCatalog = postgres.NewCatalog(store)
		deps.repo = postgres.NewOrderRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.timelineRepo = postgres.NewTimelineRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	deps.catalog = catalog.NewCoalescing(baseCatalog)

	switch cfg.StateDriver {
	case StateDriverMemory, "":
		deps.state = memory.NewStateStore()
	case StateDriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		deps.closers = append(deps.closers, client.Close)
		state := redisstate.NewStateStore(client)
		if err := state.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.state = state
		deps.checkers["redis"] = healthcheck.NewSimpleChecker("redis", state.Ping)
		logger.WithField("addr", cfg.RedisAddr).Info("redis state store initialized")
	case StateDriverPostgres:
		store, err := openPostgres()
		if err != nil {
			return nil, err
		}
		deps.state = postgres.NewStateStore(store)
	default:
		return nil, fmt.Errorf("unsupported state driver %q", cfg.StateDriver)
	}

	return deps, nil
}

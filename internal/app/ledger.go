package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/balances"
	accountinghttp "github.com/odyssey-erp/ledger/internal/accounting/http"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/accounting/pgstore"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	closing "github.com/odyssey-erp/ledger/internal/close"
	closehttp "github.com/odyssey-erp/ledger/internal/close/http"
	"github.com/odyssey-erp/ledger/internal/integration"
	integrationhttp "github.com/odyssey-erp/ledger/internal/integration/http"
	"github.com/odyssey-erp/ledger/internal/observability"
	"github.com/odyssey-erp/ledger/internal/platform/cache"
	"github.com/odyssey-erp/ledger/internal/platform/db"
	"github.com/odyssey-erp/ledger/internal/platform/lock"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// Ledger bundles the wired ledger services and the resources backing them.
type Ledger struct {
	Store    accounting.Store
	Accounts *accounts.Registry
	Periods  *periods.Manager
	Journals *journals.Engine
	Balances *balances.Calculator
	Reports  *reports.Generator
	Closing  *closing.Service
	Mappings *mappings.Resolver
	Hooks    *integration.Hooks

	Pool  *pgxpool.Pool
	Redis *redis.Client

	logger  *slog.Logger
	closers []func()
}

// Bootstrap opens the configured store and Redis, then wires every ledger
// service. Redis is optional: without it reports are not cached and the close
// lock is process local.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Ledger, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{logger: logger}

	var audit shared.AuditPort
	switch cfg.LedgerStore {
	case StoreMemory:
		l.Store = memstore.New()
		audit = shared.NewLogAuditSink(logger)
	case StorePostgres:
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.PGDSN, logger); err != nil {
				return nil, err
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		l.Pool = pool
		l.closers = append(l.closers, pool.Close)
		l.Store = pgstore.New(pool)
		audit = shared.NewAuditLogger(pool)
	default:
		return nil, fmt.Errorf("app: unknown store %q", cfg.LedgerStore)
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, continuing without report cache", slog.Any("error", err))
		} else {
			l.Redis = client
			l.closers = append(l.closers, func() {
				if err := client.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			})
			locker = lock.NewRedis(client)
		}
	}

	reportCache := reports.NewCache(l.Redis, cfg.ReportCacheTTL, logger)
	observers := accounting.Observers{reportCache}
	if metrics != nil {
		observers = append(observers, metrics)
	}

	l.Accounts = accounts.NewRegistry(l.Store, audit, logger)
	l.Accounts.WithObserver(observers)
	l.Periods = periods.NewManager(l.Store, audit, logger)
	l.Journals = journals.NewEngine(l.Store, audit, logger)
	l.Journals.WithObserver(observers)
	l.Balances = balances.NewCalculator(l.Store)
	l.Reports = reports.NewGenerator(l.Store, reportCache, logger)

	l.Closing = closing.NewService(l.Store, l.Journals, l.Periods, locker, audit, logger)
	l.Closing.WithObserver(observers)
	l.Closing.WithRetainedEarningsCode(cfg.RetainedEarningsCode)
	l.Closing.WithLockTTL(cfg.CloseLockTTL)

	l.Mappings = mappings.NewResolver(l.Store, l.Accounts)
	l.Hooks = integration.NewHooks(l.Journals, l.Mappings, logger)
	return l, nil
}

// Ready checks the backing connections.
func (l *Ledger) Ready(ctx context.Context) error {
	if l.Pool != nil {
		if err := l.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if l.Redis != nil {
		if err := l.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases the connections opened by Bootstrap, newest first.
func (l *Ledger) Close() {
	for i := len(l.closers) - 1; i >= 0; i-- {
		l.closers[i]()
	}
	l.closers = nil
}

// APIHandlers builds the HTTP handlers mounted under /api/v1/orgs/{orgID}.
func (l *Ledger) APIHandlers() APIHandlers {
	return APIHandlers{
		Ledger: accountinghttp.NewHandler(l.logger, accountinghttp.Services{
			Accounts: l.Accounts,
			Periods:  l.Periods,
			Journals: l.Journals,
			Balances: l.Balances,
			Reports:  l.Reports,
		}),
		Close:       closehttp.NewHandler(l.logger, l.Closing),
		Integration: integrationhttp.NewHandler(l.logger, l.Hooks, l.Mappings),
	}
}

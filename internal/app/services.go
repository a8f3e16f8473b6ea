package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fiscalia/fiscalia/internal/analytics"
	"github.com/fiscalia/fiscalia/internal/ap"
	"github.com/fiscalia/fiscalia/internal/ar"
	"github.com/fiscalia/fiscalia/internal/automation"
	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/cache"
	"github.com/fiscalia/fiscalia/internal/platform/db"
)

// Services bundles the domain services shared by the API and the worker.
type Services struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Location  *time.Location
	AR        *ar.Service
	AP        *ap.Service
	Analytics *analytics.Service
	Cache     *analytics.Cache
	Rules     *automation.PostgresRepository
	Ledger    automation.ServiceLedger
}

// BuildServices connects to Postgres and Redis and wires the services.
// Close releases the connections.
func BuildServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	policy, err := finance.LoadAlertPolicyFile(cfg.AlertPolicyFile)
	if err != nil {
		return nil, err
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: connect redis: %w", err)
	}

	financeCache := analytics.NewCache(redisClient, cfg.CacheTTL)
	arService := ar.NewService(ar.NewRepository(pool), financeCache, logger)
	apService := ap.NewService(ap.NewRepository(pool), financeCache, logger)
	analyticsService := analytics.NewService(
		analytics.LedgerSource{AR: arService, AP: apService},
		financeCache,
		analytics.Options{HorizonDays: cfg.ForecastHorizonDays, Policy: policy, Location: loc},
	)

	return &Services{
		Pool:      pool,
		Redis:     redisClient,
		Location:  loc,
		AR:        arService,
		AP:        apService,
		Analytics: analyticsService,
		Cache:     financeCache,
		Rules:     automation.NewPostgresRepository(pool),
		Ledger:    automation.ServiceLedger{Receivables: arService, Payables: apService},
	}, nil
}

// HealthChecks returns the dependency probes served on /healthz.
func (s *Services) HealthChecks() map[string]HealthCheck {
	return map[string]HealthCheck{
		"postgres": s.Pool.Ping,
		"redis": func(ctx context.Context) error {
			return s.Redis.Ping(ctx).Err()
		},
	}
}

// Close releases database and cache connections.
func (s *Services) Close(logger *slog.Logger) {
	if s == nil {
		return
	}
	if err := s.Redis.Close(); err != nil && logger != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
	s.Pool.Close()
}

// Package analytics computes the finance dashboard: aging, payment
// schedule, metrics, cash flow forecast, health and alerts, cached in Redis.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

const (
	// DefaultHorizonDays is used when neither the query nor Options set one.
	DefaultHorizonDays = 30
	// MaxHorizonDays bounds forecast requests.
	MaxHorizonDays = 365

	computeTimeout = 30 * time.Second
)

// Source loads every receivable and payable, settled ones included, since
// the metrics need paid history.
type Source interface {
	Receivables(ctx context.Context) ([]finance.Record, error)
	Payables(ctx context.Context) ([]finance.Record, error)
}

// Query selects one snapshot. A zero AsOf means today in the business
// timezone; zero HorizonDays means the configured default.
type Query struct {
	AsOf           time.Time
	HorizonDays    int
	OpeningBalance *decimal.Decimal
	RollupOverdue  bool
}

// Options configure a Service.
type Options struct {
	HorizonDays int
	Policy      finance.AlertPolicy
	Location    *time.Location
}

// Service coordinates record loading, engine execution and the cache layer.
type Service struct {
	source  Source
	cache   *Cache
	horizon int
	policy  finance.AlertPolicy
	loc     *time.Location
	now     func() time.Time
	group   singleflight.Group
}

// NewService wires a Source with a Cache helper. cache may be nil.
func NewService(source Source, cache *Cache, opts Options) *Service {
	if opts.HorizonDays <= 0 || opts.HorizonDays > MaxHorizonDays {
		opts.HorizonDays = DefaultHorizonDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Policy == (finance.AlertPolicy{}) {
		opts.Policy = finance.DefaultAlertPolicy()
	}
	return &Service{
		source:  source,
		cache:   cache,
		horizon: opts.HorizonDays,
		policy:  opts.Policy,
		loc:     opts.Location,
		now:     time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Today is the current calendar date in the business timezone.
func (s *Service) Today() time.Time {
	return finance.Day(s.now().In(s.loc))
}

// Policy returns the alert thresholds in use.
func (s *Service) Policy() finance.AlertPolicy {
	return s.policy
}

func (s *Service) normalize(q Query) (Query, error) {
	if q.AsOf.IsZero() {
		q.AsOf = s.Today()
	}
	q.AsOf = finance.Day(q.AsOf)
	if q.HorizonDays == 0 {
		q.HorizonDays = s.horizon
	}
	if q.HorizonDays < 0 || q.HorizonDays > MaxHorizonDays {
		return Query{}, fmt.Errorf("analytics: horizon %d outside 0..%d: %w", q.HorizonDays, MaxHorizonDays, httpx.ErrValidation)
	}
	return q, nil
}

// Snapshot returns every derived structure for q, computed against a single
// today. Concurrent misses for the same key share one computation, which
// outlives any single caller's cancellation up to computeTimeout.
func (s *Service) Snapshot(ctx context.Context, q Query) (finance.Snapshot, error) {
	q, err := s.normalize(q)
	if err != nil {
		return finance.Snapshot{}, err
	}
	key, err := s.cache.BuildKey(ctx, snapshotKeyParts(q)...)
	if err != nil {
		return finance.Snapshot{}, fmt.Errorf("analytics: cache key: %w", err)
	}

	ch := s.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		var snap finance.Snapshot
		err := s.cache.FetchJSON(shared, key, &snap, func(ctx context.Context) (any, error) {
			return s.compute(ctx, q)
		})
		return snap, err
	})
	select {
	case <-ctx.Done():
		return finance.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return finance.Snapshot{}, res.Err
		}
		return res.Val.(finance.Snapshot), nil
	}
}

func (s *Service) compute(ctx context.Context, q Query) (finance.Snapshot, error) {
	var receivables, payables []finance.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := s.source.Receivables(gctx)
		if err != nil {
			return fmt.Errorf("analytics: load receivables: %w", err)
		}
		receivables = recs
		return nil
	})
	g.Go(func() error {
		recs, err := s.source.Payables(gctx)
		if err != nil {
			return fmt.Errorf("analytics: load payables: %w", err)
		}
		payables = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return finance.Snapshot{}, err
	}

	opts := make([]finance.ForecastOption, 0, 2)
	if q.OpeningBalance != nil {
		opts = append(opts, finance.WithOpeningBalance(*q.OpeningBalance))
	}
	if q.RollupOverdue {
		opts = append(opts, finance.WithOverdueRollup())
	}
	return finance.BuildSnapshot(receivables, payables, q.AsOf, q.HorizonDays, s.policy, opts...), nil
}

// Dashboard is Snapshot under the name the HTTP layer uses.
func (s *Service) Dashboard(ctx context.Context, q Query) (finance.Snapshot, error) {
	return s.Snapshot(ctx, q)
}

// ReceivablesAging returns the receivables aging report as of asOf.
func (s *Service) ReceivablesAging(ctx context.Context, asOf time.Time) (finance.AgingReport, error) {
	snap, err := s.Snapshot(ctx, Query{AsOf: asOf})
	return snap.ReceivablesAging, err
}

// PayablesAging returns the payables aging report as of asOf.
func (s *Service) PayablesAging(ctx context.Context, asOf time.Time) (finance.AgingReport, error) {
	snap, err := s.Snapshot(ctx, Query{AsOf: asOf})
	return snap.PayablesAging, err
}

// PaymentSchedule returns the payables schedule as of asOf.
func (s *Service) PaymentSchedule(ctx context.Context, asOf time.Time) (finance.PaymentSchedule, error) {
	snap, err := s.Snapshot(ctx, Query{AsOf: asOf})
	return snap.PaymentSchedule, err
}

// Metrics pairs collection and payment metrics.
type Metrics struct {
	AsOf       time.Time                 `json:"asOf"`
	Collection finance.CollectionMetrics `json:"collection"`
	Payment    finance.PaymentMetrics    `json:"payment"`
}

// Metrics returns collection and payment metrics as of asOf.
func (s *Service) Metrics(ctx context.Context, asOf time.Time) (Metrics, error) {
	snap, err := s.Snapshot(ctx, Query{AsOf: asOf})
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{AsOf: snap.AsOf, Collection: snap.CollectionMetrics, Payment: snap.PaymentMetrics}, nil
}

// Forecast returns the daily cash flow projection for q.
func (s *Service) Forecast(ctx context.Context, q Query) ([]finance.CashFlowPoint, error) {
	snap, err := s.Snapshot(ctx, q)
	return snap.Forecast, err
}

// HealthReport pairs the indicators with the alerts they raise.
type HealthReport struct {
	AsOf       time.Time                `json:"asOf"`
	Indicators finance.HealthIndicators `json:"indicators"`
	Alerts     []finance.Alert          `json:"alerts"`
}

// Health returns indicators and alerts for q.
func (s *Service) Health(ctx context.Context, q Query) (HealthReport, error) {
	snap, err := s.Snapshot(ctx, q)
	if err != nil {
		return HealthReport{}, err
	}
	return HealthReport{AsOf: snap.AsOf, Indicators: snap.Health, Alerts: snap.Alerts}, nil
}

// Warm computes and caches today's default snapshot.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.Snapshot(ctx, Query{})
	return err
}

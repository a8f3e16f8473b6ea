package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashFlowPoint is the projected cash movement of a single day.
type CashFlowPoint struct {
	Date           time.Time       `json:"date"`
	Inflow         decimal.Decimal `json:"inflow"`
	Outflow        decimal.Decimal `json:"outflow"`
	NetFlow        decimal.Decimal `json:"netFlow"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

type forecastConfig struct {
	opening       decimal.Decimal
	rollupOverdue bool
}

// ForecastOption tunes Forecast.
type ForecastOption func(*forecastConfig)

// WithOpeningBalance starts the running balance from the given cash position.
func WithOpeningBalance(balance decimal.Decimal) ForecastOption {
	return func(c *forecastConfig) {
		c.opening = balance
	}
}

// WithOverdueRollup projects balances that are already past due on day 0
// instead of dropping them.
func WithOverdueRollup() ForecastOption {
	return func(c *forecastConfig) {
		c.rollupOverdue = true
	}
}

// Forecast projects receivables (inflow) and payables (outflow) day by day
// for days 0..horizonDays. Only days with activity are returned, but the
// running balance accumulates across every day of the horizon.
func Forecast(receivables, payables []Record, today time.Time, horizonDays int, opts ...ForecastOption) []CashFlowPoint {
	cfg := forecastConfig{opening: decimal.Zero}
	for _, opt := range opts {
		opt(&cfg)
	}
	if horizonDays < 0 {
		return []CashFlowPoint{}
	}

	inflow := projectByDay(receivables, today, horizonDays, cfg.rollupOverdue)
	outflow := projectByDay(payables, today, horizonDays, cfg.rollupOverdue)

	start := Day(today)
	balance := cfg.opening
	points := make([]CashFlowPoint, 0)
	for offset := 0; offset <= horizonDays; offset++ {
		in := inflow[offset]
		out := outflow[offset]
		net := in.Sub(out)
		balance = balance.Add(net)
		if !in.IsPositive() && !out.IsPositive() {
			continue
		}
		points = append(points, CashFlowPoint{
			Date:           start.AddDate(0, 0, offset),
			Inflow:         in,
			Outflow:        out,
			NetFlow:        net,
			RunningBalance: balance,
		})
	}
	return points
}

// projectByDay sums outstanding balances per day offset from today. Missing
// offsets read as decimal.Zero from the returned slice.
func projectByDay(records []Record, today time.Time, horizonDays int, rollupOverdue bool) []decimal.Decimal {
	sums := make([]decimal.Decimal, horizonDays+1)
	for _, rec := range records {
		if rec.Status.IsTerminal() || !rec.HasDueDate() {
			continue
		}
		offset := DaysUntilDue(rec.DueDate, today)
		if offset < 0 && rollupOverdue {
			offset = 0
		}
		if offset < 0 || offset > horizonDays {
			continue
		}
		sums[offset] = sums[offset].Add(rec.Outstanding())
	}
	return sums
}

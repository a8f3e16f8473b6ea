package finance

import "github.com/shopspring/decimal"

// HealthLevel buckets the composite health score.
type HealthLevel string

const (
	HealthExcellent HealthLevel = "excellent"
	HealthGood      HealthLevel = "good"
	HealthFair      HealthLevel = "fair"
	HealthPoor      HealthLevel = "poor"
)

// HealthIndicators are the working-capital indicators shown on the dashboard.
type HealthIndicators struct {
	DSO                 int             `json:"dso"`
	DPO                 int             `json:"dpo"`
	CashConversionCycle int             `json:"cashConversionCycle"`
	QuickRatio          float64         `json:"quickRatio"`
	HasCashCrunch       bool            `json:"hasCashCrunch"`
	WorstCashPosition   decimal.Decimal `json:"worstCashPosition"`
	CashCrunchDays      int             `json:"cashCrunchDays"`
	HealthScore         int             `json:"healthScore"`
	HealthLevel         HealthLevel     `json:"healthLevel"`
}

const (
	overduePenaltyPerRecord = 5
	overduePenaltyCap       = 30
	cashCrunchPenalty       = 20
	collectionBonus         = 10
	collectionBonusRate     = 90.0
)

// Health derives DSO/DPO, quick ratio, cash crunch exposure and the 0-100
// composite score from the metrics and forecast of the same "today".
func Health(collection CollectionMetrics, payment PaymentMetrics, points []CashFlowPoint) HealthIndicators {
	h := HealthIndicators{
		DSO:               collection.AverageDaysToCollect,
		DPO:               payment.AverageDaysToPay,
		WorstCashPosition: decimal.Zero,
	}
	h.CashConversionCycle = h.DSO - h.DPO
	if !payment.TotalOutstanding.IsZero() {
		h.QuickRatio = collection.TotalOutstanding.Div(payment.TotalOutstanding).InexactFloat64()
	}

	for _, p := range points {
		if !p.RunningBalance.IsNegative() {
			continue
		}
		if h.CashCrunchDays == 0 || p.RunningBalance.LessThan(h.WorstCashPosition) {
			h.WorstCashPosition = p.RunningBalance
		}
		h.CashCrunchDays++
	}
	h.HasCashCrunch = h.CashCrunchDays > 0

	score := 100
	score -= min(overduePenaltyCap, collection.OverdueCount*overduePenaltyPerRecord)
	score -= min(overduePenaltyCap, payment.OverdueCount*overduePenaltyPerRecord)
	if h.HasCashCrunch {
		score -= cashCrunchPenalty
	}
	if collection.CollectionRate > collectionBonusRate {
		score += collectionBonus
	}
	h.HealthScore = max(0, min(100, score))
	h.HealthLevel = LevelFor(h.HealthScore)
	return h
}

// LevelFor maps a score to its health level.
func LevelFor(score int) HealthLevel {
	switch {
	case score >= 80:
		return HealthExcellent
	case score >= 60:
		return HealthGood
	case score >= 40:
		return HealthFair
	default:
		return HealthPoor
	}
}

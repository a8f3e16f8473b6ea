package finance

import "time"

// Snapshot is every derived structure computed from one set of records and a
// single "today".
type Snapshot struct {
	AsOf              time.Time         `json:"asOf"`
	HorizonDays       int               `json:"horizonDays"`
	ReceivablesAging  AgingReport       `json:"receivablesAging"`
	PayablesAging     AgingReport       `json:"payablesAging"`
	PaymentSchedule   PaymentSchedule   `json:"paymentSchedule"`
	CollectionMetrics CollectionMetrics `json:"collectionMetrics"`
	PaymentMetrics    PaymentMetrics    `json:"paymentMetrics"`
	Forecast          []CashFlowPoint   `json:"forecast"`
	Health            HealthIndicators  `json:"health"`
	Alerts            []Alert           `json:"alerts"`
}

// BuildSnapshot runs all engines against the same today.
func BuildSnapshot(receivables, payables []Record, today time.Time, horizonDays int, policy AlertPolicy, opts ...ForecastOption) Snapshot {
	today = Day(today)
	collection := CollectionMetricsFor(receivables, today)
	payment := PaymentMetricsFor(payables, today)
	points := Forecast(receivables, payables, today, horizonDays, opts...)
	health := Health(collection, payment, points)
	return Snapshot{
		AsOf:              today,
		HorizonDays:       horizonDays,
		ReceivablesAging:  AgeReceivables(receivables, today),
		PayablesAging:     AgePayables(payables, today),
		PaymentSchedule:   Schedule(payables, today),
		CollectionMetrics: collection,
		PaymentMetrics:    payment,
		Forecast:          points,
		Health:            health,
		Alerts:            GenerateAlerts(health, collection, payment, policy),
	}
}

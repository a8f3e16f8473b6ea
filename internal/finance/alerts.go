package finance

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// AlertSeverity ranks generated alerts.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertKind identifies the check that produced an alert.
type AlertKind string

const (
	AlertCashCrunch         AlertKind = "cash_crunch"
	AlertOverdueReceivables AlertKind = "overdue_receivables"
	AlertOverduePayables    AlertKind = "overdue_payables"
	AlertLowCollectionRate  AlertKind = "low_collection_rate"
	AlertHighDSO            AlertKind = "high_dso"
	AlertPoorHealth         AlertKind = "poor_health"
)

// Alert is a dashboard notification derived from the health indicators.
type Alert struct {
	Kind     AlertKind     `json:"kind"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// AlertPolicy holds the thresholds used by GenerateAlerts.
type AlertPolicy struct {
	OverdueReceivablesWarn int     `yaml:"overdue_receivables_warn" json:"overdueReceivablesWarn"`
	OverduePayablesWarn    int     `yaml:"overdue_payables_warn" json:"overduePayablesWarn"`
	MinCollectionRate      float64 `yaml:"min_collection_rate" json:"minCollectionRate"`
	MaxDSO                 int     `yaml:"max_dso" json:"maxDso"`
	CriticalOverdueCount   int     `yaml:"critical_overdue_count" json:"criticalOverdueCount"`
}

// DefaultAlertPolicy is used when no policy file is configured.
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{
		OverdueReceivablesWarn: 1,
		OverduePayablesWarn:    1,
		MinCollectionRate:      70,
		MaxDSO:                 45,
		CriticalOverdueCount:   6,
	}
}

// LoadAlertPolicy decodes a YAML policy on top of the defaults.
func LoadAlertPolicy(r io.Reader) (AlertPolicy, error) {
	policy := DefaultAlertPolicy()
	if err := yaml.NewDecoder(r).Decode(&policy); err != nil && err != io.EOF {
		return AlertPolicy{}, fmt.Errorf("finance: decode alert policy: %w", err)
	}
	return policy, nil
}

// LoadAlertPolicyFile reads a policy from disk. An empty path yields the defaults.
func LoadAlertPolicyFile(path string) (AlertPolicy, error) {
	if path == "" {
		return DefaultAlertPolicy(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return AlertPolicy{}, fmt.Errorf("finance: open alert policy: %w", err)
	}
	defer f.Close()
	return LoadAlertPolicy(f)
}

// GenerateAlerts runs the threshold checks in a fixed order.
func GenerateAlerts(h HealthIndicators, c CollectionMetrics, p PaymentMetrics, policy AlertPolicy) []Alert {
	alerts := make([]Alert, 0)
	if h.HasCashCrunch {
		alerts = append(alerts, Alert{
			Kind:     AlertCashCrunch,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Projected cash balance turns negative on %d day(s); worst position %s", h.CashCrunchDays, h.WorstCashPosition.StringFixed(2)),
		})
	}
	if policy.OverdueReceivablesWarn > 0 && c.OverdueCount >= policy.OverdueReceivablesWarn {
		alerts = append(alerts, Alert{
			Kind:     AlertOverdueReceivables,
			Severity: overdueSeverity(c.OverdueCount, policy),
			Message:  fmt.Sprintf("%d overdue receivable(s) awaiting collection", c.OverdueCount),
		})
	}
	if policy.OverduePayablesWarn > 0 && p.OverdueCount >= policy.OverduePayablesWarn {
		alerts = append(alerts, Alert{
			Kind:     AlertOverduePayables,
			Severity: overdueSeverity(p.OverdueCount, policy),
			Message:  fmt.Sprintf("%d overdue payable(s) pending payment", p.OverdueCount),
		})
	}
	if !c.TotalInvoiced.IsZero() && c.CollectionRate < policy.MinCollectionRate {
		alerts = append(alerts, Alert{
			Kind:     AlertLowCollectionRate,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Collection rate %.1f%% is below %.1f%%", c.CollectionRate, policy.MinCollectionRate),
		})
	}
	if policy.MaxDSO > 0 && h.DSO > policy.MaxDSO {
		alerts = append(alerts, Alert{
			Kind:     AlertHighDSO,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Customers take %d days to pay on average (limit %d)", h.DSO, policy.MaxDSO),
		})
	}
	if h.HealthLevel == HealthPoor {
		alerts = append(alerts, Alert{
			Kind:     AlertPoorHealth,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Financial health score is %d", h.HealthScore),
		})
	}
	return alerts
}

func overdueSeverity(count int, policy AlertPolicy) AlertSeverity {
	if policy.CriticalOverdueCount > 0 && count >= policy.CriticalOverdueCount {
		return SeverityCritical
	}
	return SeverityWarning
}

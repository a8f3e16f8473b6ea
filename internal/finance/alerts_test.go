package finance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAlertPolicyOverridesDefaults(t *testing.T) {
	policy, err := LoadAlertPolicy(strings.NewReader("min_collection_rate: 85\nmax_dso: 30\n"))
	require.NoError(t, err)
	require.Equal(t, 85.0, policy.MinCollectionRate)
	require.Equal(t, 30, policy.MaxDSO)
	require.Equal(t, DefaultAlertPolicy().CriticalOverdueCount, policy.CriticalOverdueCount)

	empty, err := LoadAlertPolicy(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, DefaultAlertPolicy(), empty)

	_, err = LoadAlertPolicy(strings.NewReader("max_dso: [oops"))
	require.Error(t, err)
}

func TestLoadAlertPolicyFile(t *testing.T) {
	policy, err := LoadAlertPolicyFile("")
	require.NoError(t, err)
	require.Equal(t, DefaultAlertPolicy(), policy)

	path := filepath.Join(t.TempDir(), "alerts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("critical_overdue_count: 2\n"), 0o600))
	policy, err = LoadAlertPolicyFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, policy.CriticalOverdueCount)

	_, err = LoadAlertPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestGenerateAlerts(t *testing.T) {
	collection := CollectionMetrics{TotalInvoiced: dec("1000"), CollectionRate: 50, OverdueCount: 7}
	payment := PaymentMetrics{OverdueCount: 2}
	health := HealthIndicators{
		DSO:               60,
		HasCashCrunch:     true,
		CashCrunchDays:    3,
		WorstCashPosition: dec("-250"),
		HealthScore:       25,
		HealthLevel:       HealthPoor,
	}

	alerts := GenerateAlerts(health, collection, payment, DefaultAlertPolicy())

	kinds := make([]AlertKind, 0, len(alerts))
	for _, a := range alerts {
		kinds = append(kinds, a.Kind)
	}
	require.Equal(t, []AlertKind{
		AlertCashCrunch,
		AlertOverdueReceivables,
		AlertOverduePayables,
		AlertLowCollectionRate,
		AlertHighDSO,
		AlertPoorHealth,
	}, kinds)
	require.Equal(t, SeverityCritical, alerts[1].Severity)
	require.Equal(t, SeverityWarning, alerts[2].Severity)
	require.Contains(t, alerts[0].Message, "-250.00")
}

func TestGenerateAlertsQuietWhenHealthy(t *testing.T) {
	collection := CollectionMetrics{TotalInvoiced: dec("1000"), CollectionRate: 95}
	health := HealthIndicators{DSO: 20, HealthScore: 100, HealthLevel: HealthExcellent}

	alerts := GenerateAlerts(health, collection, PaymentMetrics{}, DefaultAlertPolicy())
	require.NotNil(t, alerts)
	require.Empty(t, alerts)

	// Nothing invoiced means no collection-rate alert.
	alerts = GenerateAlerts(health, CollectionMetrics{}, PaymentMetrics{}, DefaultAlertPolicy())
	require.Empty(t, alerts)
}

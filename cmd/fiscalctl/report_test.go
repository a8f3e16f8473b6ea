package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/jobs"
)

func writeRecords(t *testing.T, name string, records []finance.Record) string {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func fixtures(t *testing.T) (string, string) {
	t.Helper()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	receivables := writeRecords(t, "ar.json", []finance.Record{
		{ID: "r1", DocumentNumber: "F-1", DueDate: day(15), Amount: decimal.NewFromInt(100), Status: finance.StatusPending},
		{ID: "r2", DocumentNumber: "F-2", DueDate: day(1), Amount: decimal.NewFromInt(250), Status: finance.StatusOverdue},
	})
	payables := writeRecords(t, "ap.json", []finance.Record{
		{ID: "p1", DocumentNumber: "B-1", DueDate: day(18), Amount: decimal.NewFromInt(40), Status: finance.StatusPending},
	})
	return receivables, payables
}

func baseOptions(receivables, payables string) reportOptions {
	return reportOptions{
		Receivables: receivables,
		Payables:    payables,
		AsOf:        "2024-03-13",
		HorizonDays: 10,
		Format:      formatJSON,
		Role:        "receivables",
		Lang:        "en-US",
	}
}

func TestReportJSON(t *testing.T) {
	receivables, payables := fixtures(t)
	var out bytes.Buffer
	require.NoError(t, runReport(&out, baseOptions(receivables, payables), time.Now()))

	var snapshot finance.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
	require.Equal(t, "2024-03-13", snapshot.AsOf.Format(time.DateOnly))
	require.Equal(t, 2, snapshot.ReceivablesAging.TotalCount)
	require.Len(t, snapshot.Forecast, 2)
	require.True(t, decimal.NewFromInt(60).Equal(snapshot.Forecast[1].RunningBalance))
}

func TestReportOpeningAndRollup(t *testing.T) {
	receivables, payables := fixtures(t)
	opts := baseOptions(receivables, payables)
	opts.Opening = "1000"
	opts.Rollup = true
	var out bytes.Buffer
	require.NoError(t, runReport(&out, opts, time.Now()))

	var snapshot finance.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
	require.Len(t, snapshot.Forecast, 3)
	require.True(t, decimal.NewFromInt(1310).Equal(snapshot.Forecast[2].RunningBalance))
}

func TestReportAgingCSV(t *testing.T) {
	receivables, payables := fixtures(t)
	opts := baseOptions(receivables, payables)
	opts.Format = formatAgingCSV
	opts.Role = "payables"
	var out bytes.Buffer
	require.NoError(t, runReport(&out, opts, time.Now()))

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Total", "1", "40.00"}, rows[len(rows)-1])
}

func TestReportForecastCSV(t *testing.T) {
	receivables, payables := fixtures(t)
	opts := baseOptions(receivables, payables)
	opts.Format = formatForecastCSV
	var out bytes.Buffer
	require.NoError(t, runReport(&out, opts, time.Now()))

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "2024-03-15", rows[1][0])
	require.Equal(t, "60.00", rows[2][4])
}

func TestReportDefaultsToToday(t *testing.T) {
	receivables, _ := fixtures(t)
	opts := baseOptions(receivables, "")
	opts.AsOf = ""
	opts.Timezone = "America/Mexico_City"
	var out bytes.Buffer
	now := time.Date(2024, 3, 14, 3, 0, 0, 0, time.UTC)
	require.NoError(t, runReport(&out, opts, now))

	var snapshot finance.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
	require.Equal(t, "2024-03-13", snapshot.AsOf.Format(time.DateOnly))
}

func TestReportErrors(t *testing.T) {
	receivables, payables := fixtures(t)
	cases := map[string]func(*reportOptions){
		"no inputs":    func(o *reportOptions) { o.Receivables, o.Payables = "", "" },
		"bad date":     func(o *reportOptions) { o.AsOf = "13/03/2024" },
		"horizon":      func(o *reportOptions) { o.HorizonDays = 0 },
		"opening":      func(o *reportOptions) { o.Opening = "mil" },
		"format":       func(o *reportOptions) { o.Format = "pdf" },
		"missing file": func(o *reportOptions) { o.Payables = filepath.Join(t.TempDir(), "nope.json") },
		"role": func(o *reportOptions) {
			o.Format = formatAgingCSV
			o.Role = "both"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := baseOptions(receivables, payables)
			mutate(&opts)
			require.Error(t, runReport(&bytes.Buffer{}, opts, time.Now()))
		})
	}
}

func TestPrintStats(t *testing.T) {
	var out bytes.Buffer
	stats := []jobs.QueueStats{{Queue: jobs.QueueDefault, Pending: 3}, {Queue: jobs.QueueCritical}}
	require.NoError(t, printStats(&out, stats, false))
	require.Contains(t, out.String(), "QUEUE")
	require.Contains(t, out.String(), "default")

	out.Reset()
	require.NoError(t, printStats(&out, stats, true))
	var decoded []jobs.QueueStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, 3, decoded[0].Pending)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"jobs", "trigger"}, {"jobs", "stats"}, {"report"}, {"version"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

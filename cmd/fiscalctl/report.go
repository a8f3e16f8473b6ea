package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/fiscalia/fiscalia/internal/analytics"
	"github.com/fiscalia/fiscalia/internal/analytics/export"
	"github.com/fiscalia/fiscalia/internal/finance"
)

const (
	formatJSON        = "json"
	formatAgingCSV    = "aging-csv"
	formatForecastCSV = "forecast-csv"
)

type reportOptions struct {
	Receivables string
	Payables    string
	AsOf        string
	Timezone    string
	HorizonDays int
	Opening     string
	Rollup      bool
	PolicyFile  string
	Format      string
	Role        string
	Lang        string
}

func reportCmd() *cobra.Command {
	opts := reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a finance snapshot from JSON record exports",
		Long: `Reads receivables and payables as JSON arrays of records and prints the
aging, schedule, metrics, forecast, health and alerts computed for --as-of.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.OutOrStdout(), opts, time.Now())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Receivables, "receivables", "", "path to a JSON array of receivables")
	flags.StringVar(&opts.Payables, "payables", "", "path to a JSON array of payables")
	flags.StringVar(&opts.AsOf, "as-of", "", "report date YYYY-MM-DD (default today)")
	flags.StringVar(&opts.Timezone, "tz", envOr("BUSINESS_TIMEZONE", "America/Mexico_City"), "timezone that decides today")
	flags.IntVar(&opts.HorizonDays, "horizon", analytics.DefaultHorizonDays, "forecast horizon in days")
	flags.StringVar(&opts.Opening, "opening", "", "opening cash balance")
	flags.BoolVar(&opts.Rollup, "rollup", false, "project overdue balances on the first forecast day")
	flags.StringVar(&opts.PolicyFile, "policy", os.Getenv("ALERT_POLICY_FILE"), "alert policy YAML")
	flags.StringVar(&opts.Format, "format", formatJSON, "output format: json, aging-csv, forecast-csv")
	flags.StringVar(&opts.Role, "role", "receivables", "ledger for aging-csv: receivables or payables")
	flags.StringVar(&opts.Lang, "lang", envOr("EXPORT_LANG", export.DefaultLanguage.String()), "number formatting language for CSV")
	return cmd
}

func runReport(w io.Writer, opts reportOptions, now time.Time) error {
	if opts.Receivables == "" && opts.Payables == "" {
		return errors.New("report: at least one of --receivables or --payables is required")
	}
	if opts.HorizonDays < 1 || opts.HorizonDays > analytics.MaxHorizonDays {
		return fmt.Errorf("report: --horizon must be between 1 and %d", analytics.MaxHorizonDays)
	}
	today, err := reportDate(opts, now)
	if err != nil {
		return err
	}
	receivables, err := readRecords(opts.Receivables)
	if err != nil {
		return err
	}
	payables, err := readRecords(opts.Payables)
	if err != nil {
		return err
	}
	policy, err := finance.LoadAlertPolicyFile(opts.PolicyFile)
	if err != nil {
		return err
	}

	var forecastOpts []finance.ForecastOption
	if opts.Opening != "" {
		opening, err := decimal.NewFromString(opts.Opening)
		if err != nil {
			return fmt.Errorf("report: --opening: %w", err)
		}
		forecastOpts = append(forecastOpts, finance.WithOpeningBalance(opening))
	}
	if opts.Rollup {
		forecastOpts = append(forecastOpts, finance.WithOverdueRollup())
	}
	snapshot := finance.BuildSnapshot(receivables, payables, today, opts.HorizonDays, policy, forecastOpts...)

	switch opts.Format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	case formatAgingCSV:
		lang, err := language.Parse(opts.Lang)
		if err != nil {
			return fmt.Errorf("report: --lang: %w", err)
		}
		switch opts.Role {
		case "receivables":
			return export.WriteAgingCSV(w, snapshot.ReceivablesAging, lang)
		case "payables":
			return export.WriteAgingCSV(w, snapshot.PayablesAging, lang)
		default:
			return fmt.Errorf("report: --role must be receivables or payables, got %q", opts.Role)
		}
	case formatForecastCSV:
		lang, err := language.Parse(opts.Lang)
		if err != nil {
			return fmt.Errorf("report: --lang: %w", err)
		}
		return export.WriteForecastCSV(w, snapshot.Forecast, lang)
	default:
		return fmt.Errorf("report: unknown --format %q", opts.Format)
	}
}

func reportDate(opts reportOptions, now time.Time) (time.Time, error) {
	if opts.AsOf != "" {
		parsed, err := time.Parse(time.DateOnly, opts.AsOf)
		if err != nil {
			return time.Time{}, fmt.Errorf("report: --as-of must be YYYY-MM-DD: %w", err)
		}
		return parsed, nil
	}
	loc := time.UTC
	if opts.Timezone != "" {
		l, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("report: --tz: %w", err)
		}
		loc = l
	}
	return finance.Day(now.In(loc)), nil
}

func readRecords(path string) ([]finance.Record, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	defer f.Close()
	var records []finance.Record
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, fmt.Errorf("report: decode %s: %w", path, err)
	}
	return records, nil
}

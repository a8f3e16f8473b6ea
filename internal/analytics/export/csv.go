// Package export writes finance reports as locale formatted CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/fiscalia/fiscalia/internal/finance"
)

// DefaultLanguage is the locale used for amounts when none is configured.
var DefaultLanguage = language.MustParse("es-MX")

var agingLabels = map[finance.AgingBucketKey]string{
	finance.BucketCurrent:    "Al corriente",
	finance.Bucket1To30:      "1-30 días",
	finance.Bucket31To60:     "31-60 días",
	finance.Bucket61To90:     "61-90 días",
	finance.BucketOver90Days: "Más de 90 días",
}

func amount(p *message.Printer, d decimal.Decimal) string {
	return p.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

// WriteAgingCSV prints one row per aging bucket followed by the totals.
func WriteAgingCSV(w io.Writer, report finance.AgingReport, lang language.Tag) error {
	p := message.NewPrinter(lang)
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Antigüedad", "Documentos", "Saldo"}); err != nil {
		return err
	}
	for _, key := range finance.AllAgingKeys() {
		bucket := report.Bucket(key)
		if err := writer.Write([]string{agingLabels[key], strconv.Itoa(bucket.Count), amount(p, bucket.Total)}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"Total", strconv.Itoa(report.TotalCount), amount(p, report.TotalOutstanding)}); err != nil {
		return err
	}
	if report.Skipped > 0 {
		if err := writer.Write([]string{"Sin fecha de vencimiento", strconv.Itoa(report.Skipped), ""}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteForecastCSV prints one row per forecast day with activity.
func WriteForecastCSV(w io.Writer, points []finance.CashFlowPoint, lang language.Tag) error {
	p := message.NewPrinter(lang)
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Fecha", "Entradas", "Salidas", "Flujo neto", "Saldo acumulado"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			point.Date.Format(time.DateOnly),
			amount(p, point.Inflow),
			amount(p, point.Outflow),
			amount(p, point.NetFlow),
			amount(p, point.RunningBalance),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

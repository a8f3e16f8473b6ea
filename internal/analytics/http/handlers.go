package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/fiscalia/fiscalia/internal/analytics"
	"github.com/fiscalia/fiscalia/internal/analytics/export"
	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

const requestTimeout = 5 * time.Second

// AnalyticsService defines the finance data contract used by the handler.
type AnalyticsService interface {
	Snapshot(ctx context.Context, q analytics.Query) (finance.Snapshot, error)
	Today() time.Time
}

// Handler serves the finance dashboard as JSON and CSV.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	lang    language.Tag
	csvPool sync.Pool
}

// NewHandler constructs the analytics HTTP handler. Exports are formatted for
// lang.
func NewHandler(logger *slog.Logger, service AnalyticsService, lang language.Tag) *Handler {
	h := &Handler{logger: logger, service: service, lang: lang}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (finance.Snapshot, bool) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return finance.Snapshot{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.service.Snapshot(ctx, q)
	if err != nil {
		h.logError("load snapshot", err)
		httpx.RespondError(w, err)
		return finance.Snapshot{}, false
	}
	return snap, true
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		httpx.JSON(w, http.StatusOK, snap)
	}
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	if role != "receivables" && role != "payables" {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown aging role "+strconv.Quote(role))
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if role == "payables" {
		httpx.JSON(w, http.StatusOK, snap.PayablesAging)
		return
	}
	httpx.JSON(w, http.StatusOK, snap.ReceivablesAging)
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		httpx.JSON(w, http.StatusOK, snap.PaymentSchedule)
	}
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		httpx.JSON(w, http.StatusOK, analytics.Metrics{
			AsOf:       snap.AsOf,
			Collection: snap.CollectionMetrics,
			Payment:    snap.PaymentMetrics,
		})
	}
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"asOf":        snap.AsOf,
			"horizonDays": snap.HorizonDays,
			"points":      snap.Forecast,
		})
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		httpx.JSON(w, http.StatusOK, analytics.HealthReport{
			AsOf:       snap.AsOf,
			Indicators: snap.Health,
			Alerts:     snap.Alerts,
		})
	}
}

func (h *Handler) handleAgingCSV(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		role = "receivables"
	}
	if role != "receivables" && role != "payables" {
		httpx.RespondError(w, &httpx.FieldError{Fields: map[string]string{"role": "oneof=receivables payables"}})
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	report := snap.ReceivablesAging
	if role == "payables" {
		report = snap.PayablesAging
	}
	h.streamCSV(w, fmt.Sprintf("aging-%s-%s.csv", role, snap.AsOf.Format(time.DateOnly)), func(buf *bytes.Buffer) error {
		return export.WriteAgingCSV(buf, report, h.lang)
	})
}

func (h *Handler) handleForecastCSV(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	h.streamCSV(w, fmt.Sprintf("forecast-%s.csv", snap.AsOf.Format(time.DateOnly)), func(buf *bytes.Buffer) error {
		return export.WriteForecastCSV(buf, snap.Forecast, h.lang)
	})
}

func (h *Handler) streamCSV(w http.ResponseWriter, filename string, write func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := write(buf); err != nil {
		h.logError("write csv", err)
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) logError(msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
}

// parseQuery reads as_of, horizon, opening and rollup.
func parseQuery(r *http.Request) (analytics.Query, error) {
	q := r.URL.Query()
	var (
		out      analytics.Query
		problems = make(map[string]string)
	)
	if raw := strings.TrimSpace(q.Get("as_of")); raw != "" {
		asOf, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			problems["as_of"] = "datetime=2006-01-02"
		}
		out.AsOf = asOf
	}
	if raw := strings.TrimSpace(q.Get("horizon")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > analytics.MaxHorizonDays {
			problems["horizon"] = "range=1.." + strconv.Itoa(analytics.MaxHorizonDays)
		}
		out.HorizonDays = n
	}
	if raw := strings.TrimSpace(q.Get("opening")); raw != "" {
		opening, err := decimal.NewFromString(raw)
		if err != nil {
			problems["opening"] = "decimal"
		}
		out.OpeningBalance = &opening
	}
	if raw := strings.TrimSpace(q.Get("rollup")); raw != "" {
		rollup, err := strconv.ParseBool(raw)
		if err != nil {
			problems["rollup"] = "boolean"
		}
		out.RollupOverdue = rollup
	}
	if len(problems) > 0 {
		return analytics.Query{}, &httpx.FieldError{Fields: problems}
	}
	return out, nil
}

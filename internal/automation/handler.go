package automation

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

// Trigger enqueues an asynchronous automation run.
type Trigger interface {
	EnqueueAutomationRun(ctx context.Context, date time.Time) (string, error)
}

// DueLister lists the rules that would fire on a date.
type DueLister interface {
	DueRules(ctx context.Context, today time.Time) ([]Rule, error)
}

// RuleReader reads stored rules.
type RuleReader interface {
	ListRules(ctx context.Context, filter Filter) ([]Rule, error)
	GetRule(ctx context.Context, id string) (Rule, error)
}

// Handler exposes rule listing, validation, due listing and manual runs.
type Handler struct {
	logger  *slog.Logger
	rules   RuleReader
	due     DueLister
	trigger Trigger
	loc     *time.Location
	now     func() time.Time
}

// NewHandler builds the handler. loc is the business timezone used to derive
// "today".
func NewHandler(logger *slog.Logger, rules RuleReader, due DueLister, trigger Trigger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{logger: logger, rules: rules, due: due, trigger: trigger, loc: loc, now: time.Now}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers automation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rules", h.listRules)
	r.Post("/rules/validate", h.validateRule)
	r.Get("/rules/due", h.listDue)
	r.Get("/rules/{id}", h.getRule)
	r.Post("/run", h.run)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRuleFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rules, err := h.rules.ListRules(r.Context(), filter)
	if err != nil {
		h.logger.Error("list rules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rules)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rule)
}

func parseRuleFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{ActiveOnly: q.Get("active") == "true"}
	problems := make(map[string]string)
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t := RuleType(strings.TrimSpace(part))
			switch t {
			case RuleRecurringInvoice, RulePaymentReminder, RuleOverdueAlert:
				filter.Types = append(filter.Types, t)
			default:
				problems["type"] = "oneof=recurring_invoice payment_reminder overdue_alert"
			}
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			problems["limit"] = "range=1..500"
		}
		filter.Limit = n
	}
	if len(problems) > 0 {
		return Filter{}, &httpx.FieldError{Fields: problems}
	}
	return filter, nil
}

type ruleRequest struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	RuleType           string          `json:"ruleType"`
	IsActive           bool            `json:"isActive"`
	CustomerName       string          `json:"customerName"`
	CustomerTaxID      string          `json:"customerTaxId"`
	Amount             decimal.Decimal `json:"amount"`
	Frequency          string          `json:"frequency"`
	StartDate          string          `json:"startDate"`
	EndDate            string          `json:"endDate"`
	NextGenerationDate string          `json:"nextGenerationDate"`
	PaymentTerms       int             `json:"paymentTerms"`
	DaysBeforeDue      int             `json:"daysBeforeDue"`
	ReminderType       string          `json:"reminderType"`
	Target             string          `json:"target"`
}

func (req ruleRequest) toRule() (Rule, []string) {
	var problems []string
	parse := func(label, raw string) *time.Time {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			problems = append(problems, label+" must be a YYYY-MM-DD date")
			return nil
		}
		return &t
	}
	rule := Rule{
		ID:            req.ID,
		Name:          strings.TrimSpace(req.Name),
		RuleType:      RuleType(req.RuleType),
		IsActive:      req.IsActive,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerTaxID: strings.TrimSpace(req.CustomerTaxID),
		Amount:        req.Amount,
		Frequency:     Frequency(req.Frequency),
		PaymentTerms:  req.PaymentTerms,
		DaysBeforeDue: req.DaysBeforeDue,
		ReminderType:  ReminderType(req.ReminderType),
		Target:        Target(req.Target),
	}
	if start := parse("start date", req.StartDate); start != nil {
		rule.StartDate = *start
	}
	rule.EndDate = parse("end date", req.EndDate)
	rule.NextGenerationDate = parse("next generation date", req.NextGenerationDate)
	return rule, problems
}

func (h *Handler) validateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rule, problems := req.toRule()
	result := ValidateRule(rule)
	if len(problems) > 0 {
		result.Errors = append(problems, result.Errors...)
		result.IsValid = false
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listDue(w http.ResponseWriter, r *http.Request) {
	today, err := h.dateParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rules, err := h.due.DueRules(r.Context(), today)
	if err != nil {
		h.logger.Error("list due rules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"date":  today.Format(time.DateOnly),
		"rules": rules,
	})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job queue not configured")
		return
	}
	today, err := h.dateParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	taskID, err := h.trigger.EnqueueAutomationRun(r.Context(), today)
	if err != nil {
		h.logger.Error("enqueue automation run", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{
		"taskId": taskID,
		"date":   today.Format(time.DateOnly),
	})
}

// dateParam reads ?date=YYYY-MM-DD, defaulting to today in the business
// timezone.
func (h *Handler) dateParam(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return finance.Day(h.now().In(h.loc)), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, &httpx.FieldError{Fields: map[string]string{"date": "datetime=2006-01-02"}}
	}
	return t, nil
}

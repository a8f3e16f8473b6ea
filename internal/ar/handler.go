package ar

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

const maxListLimit = 500

// Handler manages AR endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers AR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/receivables", h.listReceivables)
	r.Post("/receivables", h.createReceivable)
	r.Post("/receivables/{id}/payments", h.recordPayment)
}

func (h *Handler) listReceivables(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	records, err := h.service.ListReceivables(r.Context(), filter)
	if err != nil {
		h.logger.Error("list receivables", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) createReceivable(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.CreateReceivable(r.Context(), input)
	if err != nil {
		h.logger.Warn("create receivable", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input PaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.RecordPayment(r.Context(), id, input)
	if err != nil {
		h.logger.Warn("record receivable payment", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// ParseFilter reads status, due_from, due_to, tax_id and limit query
// parameters.
func ParseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	var filter Filter
	bad := make(map[string]string)
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := finance.Status(strings.TrimSpace(part))
			if !status.IsValid() {
				bad["status"] = "oneof=pending partial paid overdue cancelled"
				break
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	for key, dst := range map[string]**time.Time{"due_from": &filter.DueFrom, "due_to": &filter.DueTo} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			bad[key] = "datetime=2006-01-02"
			continue
		}
		*dst = &t
	}
	filter.CustomerTaxID = strings.TrimSpace(q.Get("tax_id"))
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			bad["limit"] = "max=" + strconv.Itoa(maxListLimit)
		} else {
			filter.Limit = n
		}
	}
	if len(bad) > 0 {
		return Filter{}, &httpx.FieldError{Fields: bad}
	}
	return filter, nil
}

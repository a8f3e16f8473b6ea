package ar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
	"github.com/fiscalia/fiscalia/internal/platform/validation"
)

// RepositoryPort defines data access methods for AR.
type RepositoryPort interface {
	ListReceivables(ctx context.Context, filter Filter) ([]finance.Record, error)
	CreateReceivable(ctx context.Context, rec finance.Record) (finance.Record, error)
	RecordPayment(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (finance.Record, error)
}

// Invalidator drops derived data after a write.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// OpenStatuses are the statuses that still carry a balance.
var OpenStatuses = []finance.Status{finance.StatusPending, finance.StatusPartial, finance.StatusOverdue}

// Service handles AR business logic.
type Service struct {
	repo     RepositoryPort
	cache    Invalidator
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, validate: validation.New(), now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// ListReceivables returns receivables matching filter.
func (s *Service) ListReceivables(ctx context.Context, filter Filter) ([]finance.Record, error) {
	return s.repo.ListReceivables(ctx, filter)
}

// OpenReceivables returns every receivable that is neither paid nor cancelled.
func (s *Service) OpenReceivables(ctx context.Context) ([]finance.Record, error) {
	return s.repo.ListReceivables(ctx, Filter{Statuses: OpenStatuses})
}

// CreateReceivable validates input and stores a pending receivable.
func (s *Service) CreateReceivable(ctx context.Context, input CreateInput) (finance.Record, error) {
	if err := s.validate.Struct(input); err != nil {
		return finance.Record{}, &httpx.FieldError{Fields: validation.Fields(err)}
	}
	invoiceDate, _ := time.Parse(time.DateOnly, input.InvoiceDate)
	dueDate, _ := time.Parse(time.DateOnly, input.DueDate)
	if dueDate.Before(invoiceDate) {
		return finance.Record{}, &httpx.FieldError{Fields: map[string]string{"dueDate": "gtefield=invoiceDate"}}
	}
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	rec := finance.Record{
		ID:                id,
		CounterpartyName:  input.CustomerName,
		CounterpartyTaxID: input.CustomerTaxID,
		DocumentNumber:    input.InvoiceNumber,
		DocumentDate:      invoiceDate,
		DueDate:           dueDate,
		Amount:            input.Amount,
		AmountPaid:        decimal.Zero,
		Status:            finance.StatusPending,
		PaymentTerms:      input.PaymentTerms,
		UpdatedAt:         s.now(),
	}
	created, err := s.repo.CreateReceivable(ctx, rec)
	if err != nil {
		return finance.Record{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// CreateRecord stores an already-built receivable, such as one generated by a
// recurring rule.
func (s *Service) CreateRecord(ctx context.Context, rec finance.Record) (finance.Record, error) {
	if rec.ID == "" || rec.DocumentNumber == "" || !rec.Amount.IsPositive() || !rec.HasDueDate() {
		return finance.Record{}, fmt.Errorf("ar: incomplete receivable %q: %w", rec.DocumentNumber, httpx.ErrValidation)
	}
	created, err := s.repo.CreateReceivable(ctx, rec)
	if err != nil {
		return finance.Record{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// RecordPayment applies a collection to a receivable.
func (s *Service) RecordPayment(ctx context.Context, id string, input PaymentInput) (finance.Record, error) {
	if err := s.validate.Struct(input); err != nil {
		return finance.Record{}, &httpx.FieldError{Fields: validation.Fields(err)}
	}
	at := s.now()
	if input.PaidAt != nil && !input.PaidAt.IsZero() {
		at = *input.PaidAt
	}
	rec, err := s.repo.RecordPayment(ctx, id, input.Amount, at)
	if err != nil {
		return finance.Record{}, fmt.Errorf("ar: record payment: %w", err)
	}
	s.invalidate(ctx)
	return rec, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("ar: cache bump failed", slog.Any("error", err))
	}
}

package ap

import (
	"context"
	"errors"
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

// OpenStatuses are the statuses that still carry a balance.
var OpenStatuses = []finance.Status{finance.StatusPending, finance.StatusPartial, finance.StatusOverdue}

// Invalidator drops derived data after a write.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service handles AP business logic.
type Service struct {
	repo     Repository
	cache    Invalidator
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the service. cache may be nil.
func NewService(repo Repository, cache Invalidator, logger *slog.Logger) *Service {
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

// ListPayables returns payables matching filter.
func (s *Service) ListPayables(ctx context.Context, filter Filter) ([]finance.Record, error) {
	return s.repo.ListPayables(ctx, filter)
}

// OpenPayables returns every payable that is neither paid nor cancelled.
func (s *Service) OpenPayables(ctx context.Context) ([]finance.Record, error) {
	return s.repo.ListPayables(ctx, Filter{Statuses: OpenStatuses})
}

// CreatePayable validates input and stores a pending vendor bill.
func (s *Service) CreatePayable(ctx context.Context, input CreateInput) (finance.Record, error) {
	if err := s.validate.Struct(input); err != nil {
		return finance.Record{}, &httpx.FieldError{Fields: validation.Fields(err)}
	}
	billDate, _ := time.Parse(time.DateOnly, input.BillDate)
	dueDate, _ := time.Parse(time.DateOnly, input.DueDate)
	if dueDate.Before(billDate) {
		return finance.Record{}, &httpx.FieldError{Fields: map[string]string{"dueDate": "gtefield=billDate"}}
	}
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	created, err := s.repo.CreatePayable(ctx, finance.Record{
		ID:                id,
		CounterpartyName:  input.VendorName,
		CounterpartyTaxID: input.VendorTaxID,
		DocumentNumber:    input.BillNumber,
		DocumentDate:      billDate,
		DueDate:           dueDate,
		Amount:            input.Amount,
		AmountPaid:        decimal.Zero,
		Status:            finance.StatusPending,
		PaymentTerms:      input.PaymentTerms,
		UpdatedAt:         s.now(),
	})
	if err != nil {
		return finance.Record{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// RecordPayment applies a vendor payment within a single transaction.
func (s *Service) RecordPayment(ctx context.Context, id string, input PaymentInput) (finance.Record, error) {
	if err := s.validate.Struct(input); err != nil {
		return finance.Record{}, &httpx.FieldError{Fields: validation.Fields(err)}
	}
	at := s.now()
	if input.PaidAt != nil && !input.PaidAt.IsZero() {
		at = *input.PaidAt
	}
	var updated finance.Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetPayableForUpdate(ctx, id)
		if err != nil {
			return err
		}
		updated, err = current.ApplyPayment(input.Amount, at)
		if errors.Is(err, finance.ErrInvalidPayment) {
			return fmt.Errorf("%w: %w", httpx.ErrConflict, err)
		}
		if err != nil {
			return err
		}
		return tx.SavePayment(ctx, updated)
	})
	if err != nil {
		return finance.Record{}, fmt.Errorf("ap: record payment: %w", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("ap: cache bump failed", slog.Any("error", err))
	}
}

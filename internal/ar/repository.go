package ar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/db"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for receivables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const receivableColumns = `id, customer_name, customer_tax_id, invoice_number, invoice_date, due_date,
	amount, amount_paid, status, payment_terms, paid_at, updated_at`

// ListReceivables returns receivables matching the filter ordered by due date.
func (r *Repository) ListReceivables(ctx context.Context, filter Filter) ([]finance.Record, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.DueFrom != nil {
		args = append(args, pgtype.Date{Time: *filter.DueFrom, Valid: true})
		where = append(where, fmt.Sprintf("due_date >= $%d", len(args)))
	}
	if filter.DueTo != nil {
		args = append(args, pgtype.Date{Time: *filter.DueTo, Valid: true})
		where = append(where, fmt.Sprintf("due_date <= $%d", len(args)))
	}
	if filter.CustomerTaxID != "" {
		args = append(args, filter.CustomerTaxID)
		where = append(where, fmt.Sprintf("customer_tax_id = $%d", len(args)))
	}

	query := "SELECT " + receivableColumns + " FROM receivables"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY due_date, invoice_number"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ar: list receivables: %w", err)
	}
	defer rows.Close()

	records := make([]finance.Record, 0)
	for rows.Next() {
		rec, err := scanReceivable(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ar: list receivables: %w", err)
	}
	return records, nil
}

// CreateReceivable inserts a receivable. A duplicate invoice number yields
// an error wrapping httpx.ErrDuplicate.
func (r *Repository) CreateReceivable(ctx context.Context, rec finance.Record) (finance.Record, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO receivables (
	id, customer_name, customer_tax_id, invoice_number, invoice_date, due_date,
	amount, amount_paid, status, payment_terms, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, NOW())
RETURNING updated_at`,
		rec.ID,
		rec.CounterpartyName,
		db.NullText(rec.CounterpartyTaxID),
		rec.DocumentNumber,
		pgtype.Date{Time: rec.DocumentDate, Valid: true},
		pgtype.Date{Time: rec.DueDate, Valid: true},
		rec.Amount.String(),
		rec.AmountPaid.String(),
		string(rec.Status),
		rec.PaymentTerms,
	).Scan(&rec.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return finance.Record{}, fmt.Errorf("ar: invoice %s: %w", rec.DocumentNumber, httpx.ErrDuplicate)
	}
	if err != nil {
		return finance.Record{}, fmt.Errorf("ar: create receivable: %w", err)
	}
	return rec, nil
}

// RecordPayment applies a collection inside a repeatable-read transaction.
func (r *Repository) RecordPayment(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (finance.Record, error) {
	var updated finance.Record
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanReceivable(tx.QueryRow(ctx,
			"SELECT "+receivableColumns+" FROM receivables WHERE id = $1 FOR UPDATE", id))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("ar: receivable %s: %w", id, httpx.ErrNotFound)
		}
		if err != nil {
			return err
		}
		updated, err = current.ApplyPayment(amount, at)
		if err != nil {
			return fmt.Errorf("%w: %w", httpx.ErrConflict, err)
		}
		_, err = tx.Exec(ctx, `UPDATE receivables
SET amount_paid = $2::numeric, status = $3, paid_at = $4, updated_at = $5
WHERE id = $1`,
			id, updated.AmountPaid.String(), string(updated.Status), db.NullTimestamptz(updated.PaidAt), updated.UpdatedAt)
		if err != nil {
			return fmt.Errorf("ar: update receivable: %w", err)
		}
		return nil
	})
	return updated, err
}

func scanReceivable(row pgx.Row) (finance.Record, error) {
	var (
		rec          finance.Record
		taxID        pgtype.Text
		invoiceDate  pgtype.Date
		dueDate      pgtype.Date
		amount, paid pgtype.Numeric
		status       string
		terms        pgtype.Int4
		paidAt       pgtype.Timestamptz
	)
	err := row.Scan(
		&rec.ID, &rec.CounterpartyName, &taxID, &rec.DocumentNumber, &invoiceDate, &dueDate,
		&amount, &paid, &status, &terms, &paidAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Record{}, err
	}
	if err != nil {
		return finance.Record{}, fmt.Errorf("ar: scan receivable: %w", err)
	}
	rec.CounterpartyTaxID = taxID.String
	if invoiceDate.Valid {
		rec.DocumentDate = invoiceDate.Time
	}
	if dueDate.Valid {
		rec.DueDate = dueDate.Time
	}
	rec.Amount = db.Decimal(amount)
	rec.AmountPaid = db.Decimal(paid)
	rec.Status = finance.Status(status)
	rec.PaymentTerms = int(terms.Int32)
	rec.PaidAt = db.TimePtr(paidAt)
	return rec, nil
}

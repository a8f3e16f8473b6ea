package ap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiscalia/fiscalia/internal/finance"
	"github.com/fiscalia/fiscalia/internal/platform/db"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

// Repository is the AP persistence contract.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	ListPayables(ctx context.Context, filter Filter) ([]finance.Record, error)
	GetPayableForUpdate(ctx context.Context, id string) (finance.Record, error)
	CreatePayable(ctx context.Context, rec finance.Record) (finance.Record, error)
	SavePayment(ctx context.Context, rec finance.Record) error
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL implementation.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const payableColumns = `id, vendor_name, vendor_tax_id, bill_number, bill_date, due_date,
	amount, amount_paid, status, payment_terms, paid_at, updated_at`

func (r *repository) ListPayables(ctx context.Context, filter Filter) ([]finance.Record, error) {
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
	if filter.VendorTaxID != "" {
		args = append(args, filter.VendorTaxID)
		where = append(where, fmt.Sprintf("vendor_tax_id = $%d", len(args)))
	}

	query := "SELECT " + payableColumns + " FROM payables"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY due_date, bill_number"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ap: list payables: %w", err)
	}
	defer rows.Close()

	records := make([]finance.Record, 0)
	for rows.Next() {
		rec, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ap: list payables: %w", err)
	}
	return records, nil
}

func (r *repository) GetPayableForUpdate(ctx context.Context, id string) (finance.Record, error) {
	rec, err := scanPayable(r.db.QueryRow(ctx,
		"SELECT "+payableColumns+" FROM payables WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Record{}, fmt.Errorf("ap: payable %s: %w", id, httpx.ErrNotFound)
	}
	return rec, err
}

func (r *repository) CreatePayable(ctx context.Context, rec finance.Record) (finance.Record, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO payables (
	id, vendor_name, vendor_tax_id, bill_number, bill_date, due_date,
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
		return finance.Record{}, fmt.Errorf("ap: bill %s: %w", rec.DocumentNumber, httpx.ErrDuplicate)
	}
	if err != nil {
		return finance.Record{}, fmt.Errorf("ap: create payable: %w", err)
	}
	return rec, nil
}

func (r *repository) SavePayment(ctx context.Context, rec finance.Record) error {
	_, err := r.db.Exec(ctx, `UPDATE payables
SET amount_paid = $2::numeric, status = $3, paid_at = $4, updated_at = $5
WHERE id = $1`,
		rec.ID, rec.AmountPaid.String(), string(rec.Status), db.NullTimestamptz(rec.PaidAt), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ap: save payment: %w", err)
	}
	return nil
}

func scanPayable(row pgx.Row) (finance.Record, error) {
	var (
		rec          finance.Record
		taxID        pgtype.Text
		billDate     pgtype.Date
		dueDate      pgtype.Date
		amount, paid pgtype.Numeric
		status       string
		terms        pgtype.Int4
		paidAt       pgtype.Timestamptz
	)
	err := row.Scan(
		&rec.ID, &rec.CounterpartyName, &taxID, &rec.DocumentNumber, &billDate, &dueDate,
		&amount, &paid, &status, &terms, &paidAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Record{}, err
	}
	if err != nil {
		return finance.Record{}, fmt.Errorf("ap: scan payable: %w", err)
	}
	rec.CounterpartyTaxID = taxID.String
	if billDate.Valid {
		rec.DocumentDate = billDate.Time
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

package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiscalia/fiscalia/internal/platform/db"
	"github.com/fiscalia/fiscalia/internal/platform/httpx"
)

// ErrStaleRule is returned when a rule was advanced by someone else since it
// was read.
var ErrStaleRule = errors.New("automation: rule changed concurrently")

// PostgresRepository stores rules in the automation_rules table.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

const ruleColumns = `id, name, rule_type, is_active, customer_name, customer_tax_id, amount,
	frequency, start_date, end_date, next_generation_date, payment_terms,
	days_before_due, reminder_type, target, updated_at`

// ListRules returns rules ordered by next generation date then name.
func (r *PostgresRepository) ListRules(ctx context.Context, filter Filter) ([]Rule, error) {
	var (
		where []string
		args  []any
	)
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		args = append(args, types)
		where = append(where, fmt.Sprintf("rule_type = ANY($%d)", len(args)))
	}

	query := "SELECT " + ruleColumns + " FROM automation_rules"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY next_generation_date NULLS LAST, name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("automation: list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("automation: list rules: %w", err)
	}
	return rules, nil
}

// GetRule loads a single rule.
func (r *PostgresRepository) GetRule(ctx context.Context, id string) (Rule, error) {
	row := r.db.QueryRow(ctx, "SELECT "+ruleColumns+" FROM automation_rules WHERE id = $1", id)
	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, fmt.Errorf("automation: rule %s: %w", id, httpx.ErrNotFound)
	}
	return rule, err
}

// AdvanceRule moves a rule from its current generation date to next and
// updates its active flag. It fails with ErrStaleRule when the stored date no
// longer equals from.
func (r *PostgresRepository) AdvanceRule(ctx context.Context, id string, from time.Time, next *time.Time, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE automation_rules
SET next_generation_date = $2, is_active = $3, updated_at = NOW()
WHERE id = $1 AND next_generation_date = $4`,
		id, db.NullDate(next), active, pgtype.Date{Time: from, Valid: true})
	if err != nil {
		return fmt.Errorf("automation: advance rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("automation: advance rule %s: %w", id, ErrStaleRule)
	}
	return nil
}

func scanRule(row pgx.Row) (Rule, error) {
	var (
		rule                      Rule
		ruleType, frequency       pgtype.Text
		customerName, customerTax pgtype.Text
		reminderType, target      pgtype.Text
		amount                    pgtype.Numeric
		start, end, next          pgtype.Date
		paymentTerms, daysBefore  pgtype.Int4
	)
	err := row.Scan(
		&rule.ID, &rule.Name, &ruleType, &rule.IsActive, &customerName, &customerTax, &amount,
		&frequency, &start, &end, &next, &paymentTerms,
		&daysBefore, &reminderType, &target, &rule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, err
	}
	if err != nil {
		return Rule{}, fmt.Errorf("automation: scan rule: %w", err)
	}
	rule.RuleType = RuleType(ruleType.String)
	rule.CustomerName = customerName.String
	rule.CustomerTaxID = customerTax.String
	rule.Amount = db.Decimal(amount)
	rule.Frequency = Frequency(frequency.String)
	if start.Valid {
		rule.StartDate = start.Time
	}
	rule.EndDate = db.DatePtr(end)
	rule.NextGenerationDate = db.DatePtr(next)
	rule.PaymentTerms = int(paymentTerms.Int32)
	rule.DaysBeforeDue = int(daysBefore.Int32)
	rule.ReminderType = ReminderType(reminderType.String)
	rule.Target = Target(target.String)
	return rule, nil
}

package automation

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/fiscalia/fiscalia/internal/platform/validation"
)

// ValidationResult is the form-friendly outcome of ValidateRule.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

type baseForm struct {
	Name     string `validate:"required,max=120"`
	RuleType string `validate:"required,oneof=recurring_invoice payment_reminder overdue_alert"`
}

type recurringForm struct {
	CustomerName string          `validate:"required"`
	Amount       decimal.Decimal `validate:"gt=0"`
	Frequency    string          `validate:"required,oneof=daily weekly monthly quarterly yearly"`
	StartDate    time.Time       `validate:"required"`
	PaymentTerms int             `validate:"gte=0,lte=365"`
}

type reminderForm struct {
	DaysBeforeDue int    `validate:"gte=0,lte=365"`
	ReminderType  string `validate:"required,oneof=email notification"`
	Target        string `validate:"omitempty,oneof=receivables payables"`
}

var ruleValidator = validation.New()

var fieldLabels = map[string]string{
	"Name":          "name",
	"RuleType":      "rule type",
	"CustomerName":  "customer name",
	"Amount":        "amount",
	"Frequency":     "frequency",
	"StartDate":     "start date",
	"PaymentTerms":  "payment terms",
	"DaysBeforeDue": "days before due",
	"ReminderType":  "reminder type",
	"Target":        "target",
}

// ValidateRule checks the required fields of a rule for its type. It never
// fails; problems are reported as readable messages.
func ValidateRule(rule Rule) ValidationResult {
	errs := make([]string, 0)
	errs = append(errs, check(baseForm{Name: rule.Name, RuleType: string(rule.RuleType)})...)

	switch rule.RuleType {
	case RuleRecurringInvoice:
		errs = append(errs, check(recurringForm{
			CustomerName: rule.CustomerName,
			Amount:       rule.Amount,
			Frequency:    string(rule.Frequency),
			StartDate:    rule.StartDate,
			PaymentTerms: rule.PaymentTerms,
		})...)
		if rule.EndDate != nil && !rule.StartDate.IsZero() && rule.EndDate.Before(rule.StartDate) {
			errs = append(errs, "end date must not be before start date")
		}
	case RulePaymentReminder, RuleOverdueAlert:
		errs = append(errs, check(reminderForm{
			DaysBeforeDue: rule.DaysBeforeDue,
			ReminderType:  string(rule.ReminderType),
			Target:        string(rule.Target),
		})...)
		if rule.RuleType == RulePaymentReminder && rule.DaysBeforeDue == 0 {
			errs = append(errs, "days before due must be at least 1")
		}
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func check(form any) []string {
	err := ruleValidator.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

func message(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

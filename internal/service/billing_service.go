package service

import (
	"fmt"

	"backend/internal/model"

	"github.com/shopspring/decimal"
)

// ComputeEngineerSubtotal turns one engaged-engineer assignment into the
// billing subtotal for a period. Monthly billing yields the flat salary;
// hourly billing yields hourlyRate × hours as supplied; partial months are
// not prorated here, the caller supplies the hours actually worked.
// Deterministic and side-effect free.
func ComputeEngineerSubtotal(e model.EngagedEngineer) (decimal.Decimal, error) {
	switch e.BillingType {
	case model.BillingTypeMonthly:
		if e.Salary == nil || e.Salary.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: monthly billing requires a non-negative salary", model.ErrInvalidBillingInput)
		}
		return e.Salary.Round(2), nil

	case model.BillingTypeHourly:
		if e.HourlyRate == nil || e.HourlyRate.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: hourly billing requires a non-negative hourly rate", model.ErrInvalidBillingInput)
		}
		if e.Hours == nil || e.Hours.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: hourly billing requires non-negative hours", model.ErrInvalidBillingInput)
		}
		return e.HourlyRate.Mul(*e.Hours).Round(2), nil

	default:
		return decimal.Zero, fmt.Errorf("%w: unknown billing type %q", model.ErrInvalidBillingInput, e.BillingType)
	}
}

// BillingDeltaInput is one requested ledger entry for an approve transition.
type BillingDeltaInput struct {
	BillingMonth model.BillingMonth `json:"billing_month" binding:"required"`
	DeltaAmount  decimal.Decimal    `json:"delta_amount" binding:"required"`
	Description  string             `json:"description"`
	Type         string             `json:"type" binding:"required,oneof=RETAINER_ADJUST SCOPE_ADJUSTMENT CORRECTION"`
}

// ComputeEngineerDeltas expands engaged-engineer assignments into one delta
// per assignment per billing month of the inclusive [from, to] range. Used
// when the approver supplies staffing instead of explicit deltas.
func ComputeEngineerDeltas(engineers []model.EngagedEngineer, from, to model.BillingMonth, eventType string) ([]BillingDeltaInput, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, fmt.Errorf("%w: invalid billing period", model.ErrInvalidBillingInput)
	}

	var deltas []BillingDeltaInput
	for _, month := range model.MonthsBetween(from, to) {
		for _, e := range engineers {
			subtotal, err := ComputeEngineerSubtotal(e)
			if err != nil {
				return nil, err
			}
			deltas = append(deltas, BillingDeltaInput{
				BillingMonth: month,
				DeltaAmount:  subtotal,
				Description:  fmt.Sprintf("%s %s (%s)", e.Level, e.Role, e.BillingType),
				Type:         eventType,
			})
		}
	}
	return deltas, nil
}

// SumDeltas returns the exact signed sum of the delta amounts.
func SumDeltas(deltas []BillingDeltaInput) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range deltas {
		sum = sum.Add(d.DeltaAmount)
	}
	return sum
}

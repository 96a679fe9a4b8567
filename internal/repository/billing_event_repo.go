package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MonthlyTotal is the aggregated delta for one billing month of a contract.
type MonthlyTotal struct {
	BillingMonth model.BillingMonth `json:"billing_month"`
	Total        decimal.Decimal    `json:"total"`
}

// BillingEventRepository is the append-only billing-delta ledger. No update
// or delete is exposed; corrections are new CORRECTION rows. The ledger
// never rejects a write on business grounds (validation happens upstream in
// the state machine) but it refuses writes outside a transaction so events
// can only appear as part of an approve transition.
type BillingEventRepository interface {
	Append(ctx context.Context, event *model.BillingEvent) error
	SumForChangeRequest(ctx context.Context, crID uuid.UUID) (decimal.Decimal, error)
	ListForChangeRequest(ctx context.Context, crID uuid.UUID) ([]model.BillingEvent, error)
	MonthlyTotalsForContract(ctx context.Context, sowContractID uuid.UUID) ([]MonthlyTotal, error)
}

type billingEventRepository struct {
	db *gorm.DB
}

func NewBillingEventRepository(db *gorm.DB) BillingEventRepository {
	return &billingEventRepository{db: db}
}

func (r *billingEventRepository) Append(ctx context.Context, event *model.BillingEvent) error {
	if !InTx(ctx) {
		return model.ErrLedgerWriteConflict
	}
	return GetDB(ctx, r.db).Create(event).Error
}

func (r *billingEventRepository) SumForChangeRequest(ctx context.Context, crID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := GetDB(ctx, r.db).Model(&model.BillingEvent{}).
		Select("SUM(delta_amount)").
		Where("change_request_id = ?", crID).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *billingEventRepository) ListForChangeRequest(ctx context.Context, crID uuid.UUID) ([]model.BillingEvent, error) {
	var events []model.BillingEvent
	if err := GetDB(ctx, r.db).
		Where("change_request_id = ?", crID).
		Order("billing_month asc, created_at asc").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MonthlyTotalsForContract sums approved deltas per billing month across all
// change requests of a SOW contract. Feeds the per-month billing view.
func (r *billingEventRepository) MonthlyTotalsForContract(ctx context.Context, sowContractID uuid.UUID) ([]MonthlyTotal, error) {
	var totals []MonthlyTotal
	err := GetDB(ctx, r.db).Model(&model.BillingEvent{}).
		Select("cr_billing_events.billing_month, SUM(cr_billing_events.delta_amount) AS total").
		Joins("JOIN change_requests ON change_requests.id = cr_billing_events.change_request_id").
		Where("change_requests.sow_contract_id = ?", sowContractID).
		Where("change_requests.status IN ?", []string{model.CRStatusApproved, model.CRStatusActive}).
		Group("cr_billing_events.billing_month").
		Order("cr_billing_events.billing_month asc").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

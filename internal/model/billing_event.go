package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingEventType enum constants
const (
	BillingEventRetainerAdjust  = "RETAINER_ADJUST"
	BillingEventScopeAdjustment = "SCOPE_ADJUSTMENT"
	BillingEventCorrection      = "CORRECTION"
)

// BillingEvent is one signed billing delta attributed to a calendar month.
// Rows are append-only: a mistake is fixed by a new CORRECTION event, never
// by updating or deleting an existing row. The events of a change request,
// summed, must equal that change request's approved amount.
type BillingEvent struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ChangeRequestID uuid.UUID       `gorm:"type:uuid;not null;index" json:"change_request_id"`
	BillingMonth    BillingMonth    `gorm:"type:date;not null;index" json:"billing_month"`
	DeltaAmount     decimal.Decimal `gorm:"type:decimal(16,2);not null" json:"delta_amount"` // positive = additional billing, negative = credit
	Description     string          `gorm:"type:text" json:"description"`
	Type            string          `gorm:"type:varchar(50);not null" json:"type"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (BillingEvent) TableName() string {
	return "cr_billing_events"
}

// ValidBillingEventType reports whether t is a known event type.
func ValidBillingEventType(t string) bool {
	switch t {
	case BillingEventRetainerAdjust, BillingEventScopeAdjustment, BillingEventCorrection:
		return true
	}
	return false
}

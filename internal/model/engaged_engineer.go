package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engineer billing type constants
const (
	BillingTypeMonthly = "Monthly"
	BillingTypeHourly  = "Hourly"
)

// EngagedEngineer is a staffing assignment on a SOW contract: who is
// engaged, at what level, over what period, and how their time is billed.
// Monthly assignments carry a flat salary; hourly assignments carry a rate
// and the hours worked, whose product is the billing subtotal.
type EngagedEngineer struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SOWContractID uuid.UUID        `gorm:"type:uuid;not null;index" json:"sow_contract_id"`
	EngineerName  string           `gorm:"type:varchar(255);not null" json:"engineer_name"`
	Role          string           `gorm:"type:varchar(100)" json:"role"`
	Level         string           `gorm:"type:varchar(50)" json:"level"`
	StartDate     *time.Time       `json:"start_date"`
	EndDate       *time.Time       `json:"end_date"`
	BillingType   string           `gorm:"type:varchar(20);not null;default:'Monthly'" json:"billing_type"`
	Salary        *decimal.Decimal `gorm:"type:decimal(16,2)" json:"salary"`      // Monthly billing
	HourlyRate    *decimal.Decimal `gorm:"type:decimal(16,2)" json:"hourly_rate"` // Hourly billing
	Hours         *decimal.Decimal `gorm:"type:decimal(10,2)" json:"hours"`       // Hourly billing
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (EngagedEngineer) TableName() string {
	return "sow_engaged_engineers"
}

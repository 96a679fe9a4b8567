package model

import (
	"time"

	"github.com/google/uuid"
)

// Contract status constants (shared by MSA and SOW contracts)
const (
	ContractStatusDraft      = "Draft"
	ContractStatusActive     = "Active"
	ContractStatusCompleted  = "Completed"
	ContractStatusTerminated = "Terminated"
)

// The SOW engagement model selects the billing computation path and which
// impact-analysis fields apply to change requests on the contract.
const (
	EngagementFixedPrice = "Fixed Price"
	EngagementRetainer   = "Retainer"
)

// Contract is a signed Master Service Agreement.
type Contract struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ContractNumber string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"contract_number"`
	ClientID       uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	Title          string    `gorm:"type:varchar(255)" json:"title"`
	Status         string    `gorm:"type:varchar(30);not null;default:'Draft'" json:"status"`
	SignedAt       *time.Time `json:"signed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SOWContract is a Statement of Work under an MSA. Change requests amend SOW
// contracts after signature; the engagement type drives billing semantics.
type SOWContract struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ContractID     *uuid.UUID `gorm:"type:uuid;index" json:"contract_id"` // owning MSA, if any
	ContractNumber string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"contract_number"`
	ClientID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	Title          string     `gorm:"type:varchar(255)" json:"title"`
	EngagementType string     `gorm:"type:varchar(30);not null" json:"engagement_type"` // Fixed Price, Retainer
	Status         string     `gorm:"type:varchar(30);not null;default:'Draft'" json:"status"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	SignedAt       *time.Time `json:"signed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (SOWContract) TableName() string {
	return "sow_contracts"
}

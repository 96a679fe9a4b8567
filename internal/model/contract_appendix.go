package model

import (
	"time"

	"github.com/google/uuid"
)

// ContractAppendix is the numbered addendum generated when a change request
// is approved. Appendix numbers per SOW contract form a gap-free sequence
// PL-001, PL-002, ... and are never reused, even if the owning change
// request is later disputed. Only SignedAt may change after creation.
type ContractAppendix struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SOWContractID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_appendix_contract_number,unique,priority:1" json:"sow_contract_id"`
	ChangeRequestID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"change_request_id"` // 1:1 with the approved CR
	AppendixNumber  string     `gorm:"type:varchar(50);not null;index:idx_appendix_contract_number,unique,priority:2" json:"appendix_number"` // PL-001, PL-002...
	Title           string     `gorm:"type:varchar(255);not null" json:"title"`
	Summary         string     `gorm:"type:text" json:"summary"`
	PdfPath         string     `gorm:"type:varchar(500)" json:"pdf_path"` // rendered document pointer, set by external generator
	SignedAt        *time.Time `json:"signed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (ContractAppendix) TableName() string {
	return "contract_appendices"
}

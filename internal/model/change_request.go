package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeRequest status constants. Statuses only ever change through the
// transition table below, handlers and repositories never set them directly.
const (
	CRStatusDraft            = "Draft"
	CRStatusPending          = "Pending"
	CRStatusProcessing       = "Processing"
	CRStatusUnderReview      = "Under Review"
	CRStatusApproved         = "Approved"
	CRStatusRequestForChange = "Request for Change"
	CRStatusActive           = "Active"
	CRStatusTerminated       = "Terminated"
	CRStatusRejected         = "Rejected"
)

// ChangeRequest type constants
const (
	CRTypeAddScope         = "Add Scope"
	CRTypeExtend           = "Extend"
	CRTypeReduce           = "Reduce"
	CRTypeRateChange       = "Rate Change"
	CRTypeIncreaseResource = "Increase Resource"
	CRTypeOther            = "Other"
)

// Owning contract discriminator
const (
	ContractKindMSA = "MSA"
	ContractKindSOW = "SOW"
)

// CREvent names a requested state-machine transition.
type CREvent string

const (
	CREventSubmit          CREvent = "Submit"
	CREventStartProcessing CREvent = "StartProcessing"
	CREventAssignReviewer  CREvent = "AssignReviewer"
	CREventApprove         CREvent = "Approve"
	CREventRequestChange   CREvent = "RequestChange"
	CREventReject          CREvent = "Reject"
	CREventResubmit        CREvent = "Resubmit"
	CREventActivate        CREvent = "Activate"
	CREventTerminate       CREvent = "Terminate"
)

// ChangeRequest represents a proposed amendment to a signed contract.
// Rows are never deleted; terminal states are retained for audit.
type ChangeRequest struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // CR-YYYY-NN

	// Exactly one of ContractID / SOWContractID is set, per ContractKind.
	ContractID    *uuid.UUID `gorm:"type:uuid;index" json:"contract_id"`
	SOWContractID *uuid.UUID `gorm:"type:uuid;index" json:"sow_contract_id"`
	ContractKind  string     `gorm:"type:varchar(10);not null" json:"contract_kind"` // MSA, SOW

	Type        string `gorm:"type:varchar(50);not null" json:"type"`
	Title       string `gorm:"type:varchar(255)" json:"title"`
	Summary     string `gorm:"type:text;not null" json:"summary"`
	Description string `gorm:"type:text" json:"description"`
	Reason      string `gorm:"type:text" json:"reason"`
	Evidence    string `gorm:"type:jsonb" json:"evidence"` // opaque JSON array of links/file refs

	DesiredStartDate *time.Time `json:"desired_start_date"`
	DesiredEndDate   *time.Time `json:"desired_end_date"`

	Amount             decimal.Decimal  `gorm:"type:decimal(16,2);not null" json:"amount"`
	ExpectedExtraCost  *decimal.Decimal `gorm:"type:decimal(16,2)" json:"expected_extra_cost"`
	InternalCostEst    *decimal.Decimal `gorm:"type:decimal(16,2)" json:"internal_cost_estimate"`

	// Fixed-Price impact analysis, only meaningful when the owning SOW
	// contract engagement type is Fixed Price.
	DevHours   *int       `json:"dev_hours"`
	TestHours  *int       `json:"test_hours"`
	NewEndDate *time.Time `json:"new_end_date"`
	DelayDays  *int       `json:"delay_days"`

	Status             string     `gorm:"type:varchar(50);not null;index" json:"status"`
	CreatedBy          uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	Creator            *User      `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	InternalReviewerID *uuid.UUID `gorm:"type:uuid" json:"internal_reviewer_id"`
	Reviewer           *User      `gorm:"foreignKey:InternalReviewerID" json:"reviewer,omitempty"`
	AppendixID         *uuid.UUID `gorm:"type:uuid" json:"appendix_id"` // set once, at approval
	SalesInternalNote  string     `gorm:"type:text" json:"sales_internal_note"`
	ApprovedBy         *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt         *time.Time `json:"approved_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// crTransitions is the closed transition table. A (status, event) pair not
// present here is illegal regardless of actor.
var crTransitions = map[string]map[CREvent]string{
	CRStatusDraft: {
		CREventSubmit:    CRStatusPending,
		CREventTerminate: CRStatusTerminated,
	},
	CRStatusPending: {
		CREventStartProcessing: CRStatusProcessing,
		CREventAssignReviewer:  CRStatusUnderReview,
		CREventTerminate:       CRStatusTerminated,
	},
	CRStatusProcessing: {
		CREventAssignReviewer: CRStatusUnderReview,
		CREventTerminate:      CRStatusTerminated,
	},
	CRStatusUnderReview: {
		CREventAssignReviewer: CRStatusUnderReview, // reassignment
		CREventApprove:        CRStatusApproved,
		CREventRequestChange:  CRStatusRequestForChange,
		CREventReject:         CRStatusRejected,
		CREventTerminate:      CRStatusTerminated,
	},
	CRStatusRequestForChange: {
		CREventResubmit:  CRStatusPending,
		CREventTerminate: CRStatusTerminated,
	},
	CRStatusApproved: {
		CREventActivate:  CRStatusActive,
		CREventTerminate: CRStatusTerminated,
	},
	CRStatusActive: {
		CREventTerminate: CRStatusTerminated,
	},
	// Terminated and Rejected have no outgoing transitions.
}

// NextStatus returns the target status for applying event in status, or
// ok=false when the transition is illegal.
func NextStatus(status string, event CREvent) (string, bool) {
	targets, ok := crTransitions[status]
	if !ok {
		return "", false
	}
	next, ok := targets[event]
	return next, ok
}

// ValidCRStatus reports whether s is a known status value. Unknown values
// are rejected at the boundary instead of stored as free text.
func ValidCRStatus(s string) bool {
	switch s {
	case CRStatusDraft, CRStatusPending, CRStatusProcessing, CRStatusUnderReview,
		CRStatusApproved, CRStatusRequestForChange, CRStatusActive,
		CRStatusTerminated, CRStatusRejected:
		return true
	}
	return false
}

// ValidCRType reports whether t is a known change-request type.
func ValidCRType(t string) bool {
	switch t {
	case CRTypeAddScope, CRTypeExtend, CRTypeReduce, CRTypeRateChange,
		CRTypeIncreaseResource, CRTypeOther:
		return true
	}
	return false
}

// Editable reports whether CR content fields (title, amounts, dates,
// evidence) may currently be modified.
func (cr *ChangeRequest) Editable() bool {
	return cr.Status == CRStatusDraft || cr.Status == CRStatusRequestForChange
}

// Terminal reports whether the CR has left the approval workflow for good.
func (cr *ChangeRequest) Terminal() bool {
	return cr.Status == CRStatusTerminated || cr.Status == CRStatusRejected
}

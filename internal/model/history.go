package model

import (
	"time"

	"github.com/google/uuid"
)

// History action vocabulary. The log is the canonical evidence of every
// transition ever applied to a change request.
const (
	HistoryActionCreated          = "Created"
	HistoryActionSubmitted        = "Submitted"
	HistoryActionApproved         = "Approved"
	HistoryActionRequestForChange = "Request for Change"
	HistoryActionTerminated       = "Terminated"
	HistoryActionRejected         = "Rejected"
)

// HistoryEntry is one append-only audit record: who did what to a change
// request, and when. Entries are never edited or deleted; the actor name is
// snapshotted so the log stays meaningful if the user record changes later.
type HistoryEntry struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ChangeRequestID uuid.UUID `gorm:"type:uuid;not null;index" json:"change_request_id"`
	Action          string    `gorm:"type:varchar(100);not null" json:"action"`
	UserID          uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	UserName        string    `gorm:"type:varchar(255);not null" json:"user_name"`
	Timestamp       time.Time `gorm:"not null;index" json:"timestamp"`
}

func (HistoryEntry) TableName() string {
	return "change_request_history"
}

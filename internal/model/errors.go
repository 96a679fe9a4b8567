package model

import "errors"

// Domain error kinds. Services detect and return these synchronously; the
// handler layer is the only place that translates them into HTTP statuses.
var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidTransition      = errors.New("transition not allowed from current status")
	ErrInvalidStateForEdit    = errors.New("change request is not editable in current status")
	ErrForbidden              = errors.New("actor lacks authority for this operation")
	ErrBillingReconciliation  = errors.New("billing deltas do not sum to change request amount")
	ErrAlreadyApproved        = errors.New("change request is already approved")
	ErrConcurrentModification = errors.New("change request was modified concurrently")
	ErrNotFound               = errors.New("record not found")
	ErrInvalidBillingInput    = errors.New("invalid billing input")
	ErrLedgerWriteConflict    = errors.New("billing ledger write outside transaction")
)

package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateChangeRequestDTO struct {
	ContractID   string `json:"contract_id" binding:"required"`
	ContractKind string `json:"contract_kind" binding:"required,oneof=MSA SOW"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	Description  string `json:"description"`
	Reason       string `json:"reason"`
	Evidence     string `json:"evidence"` // opaque JSON array of links/file refs

	DesiredStartDate *time.Time `json:"desired_start_date"`
	DesiredEndDate   *time.Time `json:"desired_end_date"`

	Amount            *decimal.Decimal `json:"amount"`
	ExpectedExtraCost *decimal.Decimal `json:"expected_extra_cost"`
	InternalCostEst   *decimal.Decimal `json:"internal_cost_estimate"`

	// Fixed-Price impact analysis, rejected for Retainer contracts
	DevHours   *int       `json:"dev_hours"`
	TestHours  *int       `json:"test_hours"`
	NewEndDate *time.Time `json:"new_end_date"`
	DelayDays  *int       `json:"delay_days"`

	AsDraft bool `json:"as_draft"`
}

type UpdateChangeRequestDTO struct {
	Type        *string `json:"type"`
	Title       *string `json:"title"`
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	Reason      *string `json:"reason"`
	Evidence    *string `json:"evidence"`

	DesiredStartDate *time.Time `json:"desired_start_date"`
	DesiredEndDate   *time.Time `json:"desired_end_date"`

	Amount            *decimal.Decimal `json:"amount"`
	ExpectedExtraCost *decimal.Decimal `json:"expected_extra_cost"`
	InternalCostEst   *decimal.Decimal `json:"internal_cost_estimate"`

	DevHours   *int       `json:"dev_hours"`
	TestHours  *int       `json:"test_hours"`
	NewEndDate *time.Time `json:"new_end_date"`
	DelayDays  *int       `json:"delay_days"`
}

// EngineerAssignmentDTO describes a staffing change supplied at approval so
// billing deltas can be computed instead of passed in explicitly.
type EngineerAssignmentDTO struct {
	EngineerName string           `json:"engineer_name"`
	Role         string           `json:"role"`
	Level        string           `json:"level"`
	BillingType  string           `json:"billing_type" binding:"required,oneof=Monthly Hourly"`
	Salary       *decimal.Decimal `json:"salary"`
	HourlyRate   *decimal.Decimal `json:"hourly_rate"`
	Hours        *decimal.Decimal `json:"hours"`
}

type ApproveChangeRequestDTO struct {
	// Either explicit ledger deltas...
	Deltas []BillingDeltaInput `json:"deltas" binding:"omitempty,dive"`
	// ...or staffing assignments expanded over [PeriodFrom, PeriodTo].
	Engineers  []EngineerAssignmentDTO `json:"engineers" binding:"omitempty,dive"`
	PeriodFrom model.BillingMonth      `json:"period_from"`
	PeriodTo   model.BillingMonth      `json:"period_to"`
}

type RequestChangeDTO struct {
	Message string `json:"message"`
}

type BillingEventResponse struct {
	ID              string `json:"id"`
	ChangeRequestID string `json:"change_request_id"`
	BillingMonth    string `json:"billing_month"`
	DeltaAmount     string `json:"delta_amount"`
	Description     string `json:"description"`
	Type            string `json:"type"`
	CreatedAt       string `json:"created_at"`
}

type AppendixResponse struct {
	ID              string  `json:"id"`
	SOWContractID   string  `json:"sow_contract_id"`
	ChangeRequestID string  `json:"change_request_id"`
	AppendixNumber  string  `json:"appendix_number"`
	Title           string  `json:"title"`
	Summary         string  `json:"summary"`
	PdfPath         string  `json:"pdf_path"`
	SignedAt        *string `json:"signed_at"`
	CreatedAt       string  `json:"created_at"`
}

type HistoryEntryResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Timestamp string `json:"timestamp"`
}

type ChangeRequestResponse struct {
	ID                string  `json:"id"`
	Code              string  `json:"code"`
	ContractID        *string `json:"contract_id"`
	SOWContractID     *string `json:"sow_contract_id"`
	ContractKind      string  `json:"contract_kind"`
	Type              string  `json:"type"`
	Title             string  `json:"title"`
	Summary           string  `json:"summary"`
	Description       string  `json:"description"`
	Reason            string  `json:"reason"`
	Evidence          string  `json:"evidence"`
	DesiredStartDate  *string `json:"desired_start_date"`
	DesiredEndDate    *string `json:"desired_end_date"`
	Amount            string  `json:"amount"`
	ExpectedExtraCost *string `json:"expected_extra_cost"`
	InternalCostEst   *string `json:"internal_cost_estimate"`
	DevHours          *int    `json:"dev_hours"`
	TestHours         *int    `json:"test_hours"`
	NewEndDate        *string `json:"new_end_date"`
	DelayDays         *int    `json:"delay_days"`
	Status            string  `json:"status"`
	CreatedBy         string  `json:"created_by"`
	CreatorName       string  `json:"creator_name"`
	ReviewerID        *string `json:"internal_reviewer_id"`
	ReviewerName      string  `json:"reviewer_name"`
	AppendixID        *string `json:"appendix_id"`
	SalesInternalNote string  `json:"sales_internal_note,omitempty"`
	ApprovedBy        *string `json:"approved_by"`
	ApprovedAt        *string `json:"approved_at"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// ApproveResult bundles everything the approve transition produced.
type ApproveResult struct {
	ChangeRequest ChangeRequestResponse  `json:"change_request"`
	Appendix      *AppendixResponse      `json:"appendix"`
	BillingEvents []BillingEventResponse `json:"billing_events"`
}

// --- Interface ---

type ChangeRequestService interface {
	Create(ctx context.Context, actorID uuid.UUID, req CreateChangeRequestDTO) (ChangeRequestResponse, error)
	Update(ctx context.Context, crID, actorID uuid.UUID, req UpdateChangeRequestDTO) (ChangeRequestResponse, error)
	Submit(ctx context.Context, crID, actorID uuid.UUID) error
	StartProcessing(ctx context.Context, crID, actorID uuid.UUID) error
	AssignReviewer(ctx context.Context, crID, actorID, reviewerID uuid.UUID) error
	Approve(ctx context.Context, crID, actorID uuid.UUID, req ApproveChangeRequestDTO) (ApproveResult, error)
	RequestChange(ctx context.Context, crID, actorID uuid.UUID, message string) error
	Reject(ctx context.Context, crID, actorID uuid.UUID) error
	Resubmit(ctx context.Context, crID, actorID uuid.UUID) error
	Activate(ctx context.Context, crID, actorID uuid.UUID) error
	Terminate(ctx context.Context, crID, actorID uuid.UUID) error
	Get(ctx context.Context, crID uuid.UUID) (ChangeRequestResponse, error)
	List(ctx context.Context, filter repository.ChangeRequestFilter) ([]ChangeRequestResponse, int64, error)
	GetHistory(ctx context.Context, crID uuid.UUID) ([]HistoryEntryResponse, error)
	GetBillingEvents(ctx context.Context, crID uuid.UUID) ([]BillingEventResponse, error)
}

type changeRequestService struct {
	crRepo       repository.ChangeRequestRepository
	billingRepo  repository.BillingEventRepository
	appendixRepo repository.AppendixRepository
	historyRepo  repository.HistoryRepository
	contractRepo repository.ContractRepository
	userRepo     repository.UserRepository
	txManager    repository.TransactionManager
	hub          *ws.Hub // optional, nil disables notifications
}

func NewChangeRequestService(
	crRepo repository.ChangeRequestRepository,
	billingRepo repository.BillingEventRepository,
	appendixRepo repository.AppendixRepository,
	historyRepo repository.HistoryRepository,
	contractRepo repository.ContractRepository,
	userRepo repository.UserRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) ChangeRequestService {
	return &changeRequestService{
		crRepo:       crRepo,
		billingRepo:  billingRepo,
		appendixRepo: appendixRepo,
		historyRepo:  historyRepo,
		contractRepo: contractRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		hub:          hub,
	}
}

// --- Create / edit ---

func (s *changeRequestService) Create(ctx context.Context, actorID uuid.UUID, req CreateChangeRequestDTO) (ChangeRequestResponse, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return ChangeRequestResponse{}, fmt.Errorf("actor lookup: %w", err)
	}

	contractID, err := uuid.Parse(req.ContractID)
	if err != nil {
		return ChangeRequestResponse{}, fmt.Errorf("%w: invalid contract id", model.ErrValidation)
	}

	cr := model.ChangeRequest{
		ContractKind:      req.ContractKind,
		Type:              req.Type,
		Title:             req.Title,
		Summary:           req.Summary,
		Description:       req.Description,
		Reason:            req.Reason,
		Evidence:          req.Evidence,
		DesiredStartDate:  req.DesiredStartDate,
		DesiredEndDate:    req.DesiredEndDate,
		ExpectedExtraCost: req.ExpectedExtraCost,
		InternalCostEst:   req.InternalCostEst,
		DevHours:          req.DevHours,
		TestHours:         req.TestHours,
		NewEndDate:        req.NewEndDate,
		DelayDays:         req.DelayDays,
		CreatedBy:         actorID,
	}

	// Summary falls back to the title, amount to the client-expected cost.
	if cr.Summary == "" {
		cr.Summary = req.Title
	}
	if req.Amount != nil {
		cr.Amount = *req.Amount
	} else if req.ExpectedExtraCost != nil {
		cr.Amount = *req.ExpectedExtraCost
	} else {
		cr.Amount = decimal.Zero
	}

	var engagement string
	switch req.ContractKind {
	case model.ContractKindMSA:
		if actor.Role == model.RoleClient {
			if _, err := s.contractRepo.GetMSAByIDAndClient(ctx, contractID, actorID); err != nil {
				return ChangeRequestResponse{}, fmt.Errorf("contract lookup: %w", err)
			}
		} else if _, err := s.contractRepo.GetMSAByID(ctx, contractID); err != nil {
			return ChangeRequestResponse{}, fmt.Errorf("contract lookup: %w", err)
		}
		cr.ContractID = &contractID
	case model.ContractKindSOW:
		var sow *model.SOWContract
		if actor.Role == model.RoleClient {
			sow, err = s.contractRepo.GetSOWByIDAndClient(ctx, contractID, actorID)
		} else {
			sow, err = s.contractRepo.GetSOWByID(ctx, contractID)
		}
		if err != nil {
			return ChangeRequestResponse{}, fmt.Errorf("contract lookup: %w", err)
		}
		engagement = sow.EngagementType
		cr.SOWContractID = &contractID
	default:
		return ChangeRequestResponse{}, fmt.Errorf("%w: unknown contract kind %q", model.ErrValidation, req.ContractKind)
	}

	if err := validateImpactFields(&cr, engagement); err != nil {
		return ChangeRequestResponse{}, err
	}

	if req.AsDraft {
		cr.Status = model.CRStatusDraft
		if cr.Type != "" && !model.ValidCRType(cr.Type) {
			return ChangeRequestResponse{}, fmt.Errorf("%w: unknown change request type %q", model.ErrValidation, cr.Type)
		}
	} else {
		cr.Status = model.CRStatusPending
		if cr.Title == "" {
			return ChangeRequestResponse{}, fmt.Errorf("%w: title is required to submit", model.ErrValidation)
		}
		if !model.ValidCRType(cr.Type) {
			return ChangeRequestResponse{}, fmt.Errorf("%w: a valid change request type is required to submit", model.ErrValidation)
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		code, codeErr := s.crRepo.NextCode(txCtx, time.Now().Year())
		if codeErr != nil {
			return fmt.Errorf("failed to generate change request code: %w", codeErr)
		}
		cr.Code = code

		if createErr := s.crRepo.Create(txCtx, &cr); createErr != nil {
			return fmt.Errorf("failed to create change request: %w", createErr)
		}
		if histErr := s.historyRepo.Append(txCtx, cr.ID, model.HistoryActionCreated, actor.ID, actor.Username); histErr != nil {
			return fmt.Errorf("failed to write history: %w", histErr)
		}
		return nil
	})
	if err != nil {
		return ChangeRequestResponse{}, err
	}

	s.notify(&cr)
	return toChangeRequestResponse(&cr), nil
}

func (s *changeRequestService) Update(ctx context.Context, crID, actorID uuid.UUID, req UpdateChangeRequestDTO) (ChangeRequestResponse, error) {
	var updated model.ChangeRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		cr, err := s.crRepo.GetForUpdate(txCtx, crID)
		if err != nil {
			return err
		}
		if !cr.Editable() {
			return fmt.Errorf("%w: status is %s", model.ErrInvalidStateForEdit, cr.Status)
		}
		actor, err := s.userRepo.GetByID(txCtx, actorID)
		if err != nil {
			return fmt.Errorf("actor lookup: %w", err)
		}
		if cr.CreatedBy != actorID && !actor.Internal() {
			return fmt.Errorf("%w: only the author or internal staff may edit", model.ErrForbidden)
		}

		applyUpdate(cr, req)

		if cr.Type != "" && !model.ValidCRType(cr.Type) {
			return fmt.Errorf("%w: unknown change request type %q", model.ErrValidation, cr.Type)
		}

		engagement, err := s.engagementType(txCtx, cr)
		if err != nil {
			return err
		}
		if err := validateImpactFields(cr, engagement); err != nil {
			return err
		}

		if err := s.crRepo.Update(txCtx, cr); err != nil {
			return fmt.Errorf("failed to update change request: %w", err)
		}
		updated = *cr
		return nil
	})
	if err != nil {
		return ChangeRequestResponse{}, err
	}
	return toChangeRequestResponse(&updated), nil
}

// --- Plain transitions ---

func (s *changeRequestService) Submit(ctx context.Context, crID, actorID uuid.UUID) error {
	return s.transition(ctx, crID, actorID, model.CREventSubmit, model.HistoryActionSubmitted,
		func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error {
			if cr.CreatedBy != actorID && !actor.Internal() {
				return fmt.Errorf("%w: only the author or internal staff may submit", model.ErrForbidden)
			}
			return validateForSubmit(cr)
		})
}

func (s *changeRequestService) StartProcessing(ctx context.Context, crID, actorID uuid.UUID) error {
	return s.transition(ctx, crID, actorID, model.CREventStartProcessing, "",
		func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error {
			if !actor.Internal() {
				return fmt.Errorf("%w: internal staff only", model.ErrForbidden)
			}
			return nil
		})
}

func (s *changeRequestService) AssignReviewer(ctx context.Context, crID, actorID, reviewerID uuid.UUID) error {
	return s.transition(ctx, crID, actorID, model.CREventAssignReviewer, "",
		func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error {
			if !actor.Internal() {
				return fmt.Errorf("%w: internal staff only", model.ErrForbidden)
			}
			reviewer, err := s.userRepo.GetByID(txCtx, reviewerID)
			if err != nil {
				return fmt.Errorf("reviewer lookup: %w", err)
			}
			if !reviewer.Internal() {
				return fmt.Errorf("%w: reviewer must be an internal user", model.ErrValidation)
			}
			cr.InternalReviewerID = &reviewerID
			return nil
		})
}

func (s *changeRequestService) RequestChange(ctx context.Context, crID, actorID uuid.UUID, message string) error {
	return s.transition(ctx, crID, actorID, model.CREventRequestChange, model.HistoryActionRequestForChange,
		func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error {
			if err := requireReviewer(cr, actor); err != nil {
				return err
			}
			if message != "" {
				cr.SalesInternalNote = message
			}
			return nil
		})
}

func (s *changeRequestService) Reject(ctx context.Context, crID, actorID uuid.UUID) error {
	return s.transition(ctx, crID, actorID, model.CREventReject, model.HistoryActionRejected,
		func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error {
			return requireReviewer(cr, actor)
		})
}

func (s *changeRequestService) Resubmit(ctx context.Context, crID, actorID uuid.UUID) error {
	return s.transition(ctx, crID, actorID, model.CREventResubmit, model.HistoryActionSubmitted,
		func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error {
			if cr.CreatedBy != actorID && !actor.Internal() {
				return fmt.Errorf("%w: only the author or internal staff may resubmit", model.ErrForbidden)
			}
			if err := validateForSubmit(cr); err != nil {
				return err
			}
			// A resubmission must carry an actual edit.
			entries, err := s.historyRepo.ListFor(txCtx, cr.ID)
			if err != nil {
				return fmt.Errorf("history lookup: %w", err)
			}
			for i := len(entries) - 1; i >= 0; i-- {
				if entries[i].Action == model.HistoryActionRequestForChange {
					if !cr.UpdatedAt.After(entries[i].Timestamp) {
						return fmt.Errorf("%w: change request was not edited since changes were requested", model.ErrValidation)
					}
					break
				}
			}
			return nil
		})
}

func (s *changeRequestService) Activate(ctx context.Context, crID, actorID uuid.UUID) error {
	return s.transition(ctx, crID, actorID, model.CREventActivate, "",
		func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error {
			if !actor.Internal() {
				return fmt.Errorf("%w: internal staff only", model.ErrForbidden)
			}
			status, err := s.contractStatus(txCtx, cr)
			if err != nil {
				return err
			}
			if status != model.ContractStatusActive {
				return fmt.Errorf("%w: owning contract is not active", model.ErrInvalidTransition)
			}
			return nil
		})
}

func (s *changeRequestService) Terminate(ctx context.Context, crID, actorID uuid.UUID) error {
	return s.transition(ctx, crID, actorID, model.CREventTerminate, model.HistoryActionTerminated,
		func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error {
			if actor.Internal() {
				return nil
			}
			// A client may only abandon their own CR before review starts.
			abandonable := cr.Status == model.CRStatusDraft || cr.Status == model.CRStatusPending
			if cr.CreatedBy == actor.ID && abandonable {
				return nil
			}
			return fmt.Errorf("%w: termination authority required", model.ErrForbidden)
		})
}

// transition applies one state-machine event atomically: lock the row,
// verify the transition table, run the guard, persist, append history.
func (s *changeRequestService) transition(
	ctx context.Context,
	crID, actorID uuid.UUID,
	event model.CREvent,
	historyAction string,
	guard func(txCtx context.Context, cr *model.ChangeRequest, actor *model.User) error,
) error {
	var after model.ChangeRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		cr, err := s.crRepo.GetForUpdate(txCtx, crID)
		if err != nil {
			return err
		}
		actor, err := s.userRepo.GetByID(txCtx, actorID)
		if err != nil {
			return fmt.Errorf("actor lookup: %w", err)
		}

		next, ok := model.NextStatus(cr.Status, event)
		if !ok {
			return fmt.Errorf("%w: %s from %s", model.ErrInvalidTransition, event, cr.Status)
		}
		if err := guard(txCtx, cr, actor); err != nil {
			return err
		}

		cr.Status = next
		if err := s.crRepo.Update(txCtx, cr); err != nil {
			return fmt.Errorf("failed to update change request: %w", err)
		}
		if historyAction != "" {
			if err := s.historyRepo.Append(txCtx, cr.ID, historyAction, actor.ID, actor.Username); err != nil {
				return fmt.Errorf("failed to write history: %w", err)
			}
		}
		after = *cr
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(&after)
	return nil
}

// --- Approve (compound transition) ---

// Approve transitions the change request to Approved and, in the same
// transaction, writes the billing deltas, verifies they reconcile exactly
// with the approved amount, assigns the next appendix number and appends the
// history entry. Any failure rolls back every side effect.
func (s *changeRequestService) Approve(ctx context.Context, crID, actorID uuid.UUID, req ApproveChangeRequestDTO) (ApproveResult, error) {
	var (
		after    model.ChangeRequest
		appendix *model.ContractAppendix
		written  []model.BillingEvent
	)

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		cr, err := s.crRepo.GetForUpdate(txCtx, crID)
		if err != nil {
			return err
		}
		actor, err := s.userRepo.GetByID(txCtx, actorID)
		if err != nil {
			return fmt.Errorf("actor lookup: %w", err)
		}

		// Idempotency guard: a second approval would double-count deltas.
		if cr.Status == model.CRStatusApproved || cr.Status == model.CRStatusActive {
			return model.ErrAlreadyApproved
		}
		if _, ok := model.NextStatus(cr.Status, model.CREventApprove); !ok {
			return fmt.Errorf("%w: Approve from %s", model.ErrInvalidTransition, cr.Status)
		}
		if err := requireReviewer(cr, actor); err != nil {
			return err
		}

		engagement, err := s.engagementType(txCtx, cr)
		if err != nil {
			return err
		}

		deltas, err := resolveDeltas(req, engagement)
		if err != nil {
			return err
		}

		// Reconciliation: the deltas about to be written must sum exactly
		// to the approved amount. Checked before any write.
		if !SumDeltas(deltas).Equal(cr.Amount) {
			return fmt.Errorf("%w: deltas sum to %s, amount is %s",
				model.ErrBillingReconciliation, SumDeltas(deltas).StringFixed(2), cr.Amount.StringFixed(2))
		}

		for _, d := range deltas {
			event := model.BillingEvent{
				ChangeRequestID: cr.ID,
				BillingMonth:    d.BillingMonth,
				DeltaAmount:     d.DeltaAmount,
				Description:     d.Description,
				Type:            d.Type,
			}
			if err := s.billingRepo.Append(txCtx, &event); err != nil {
				return fmt.Errorf("failed to record billing event: %w", err)
			}
			written = append(written, event)
		}

		// Post-write check against the ledger itself.
		ledgerSum, err := s.billingRepo.SumForChangeRequest(txCtx, cr.ID)
		if err != nil {
			return fmt.Errorf("ledger sum: %w", err)
		}
		if !ledgerSum.Equal(cr.Amount) {
			return fmt.Errorf("%w: ledger sums to %s, amount is %s",
				model.ErrBillingReconciliation, ledgerSum.StringFixed(2), cr.Amount.StringFixed(2))
		}

		// Appendices belong to SOW contracts; an MSA-level CR is approved
		// without one.
		if cr.ContractKind == model.ContractKindSOW && cr.SOWContractID != nil {
			number, err := s.appendixRepo.NextNumber(txCtx, *cr.SOWContractID)
			if err != nil {
				return fmt.Errorf("failed to assign appendix number: %w", err)
			}
			a := model.ContractAppendix{
				SOWContractID:   *cr.SOWContractID,
				ChangeRequestID: cr.ID,
				AppendixNumber:  number,
				Title:           cr.Title,
				Summary:         cr.Summary,
			}
			if err := s.appendixRepo.Create(txCtx, &a); err != nil {
				return fmt.Errorf("failed to create appendix: %w", err)
			}
			appendix = &a
			cr.AppendixID = &a.ID
		}

		now := time.Now()
		cr.Status = model.CRStatusApproved
		cr.ApprovedBy = &actor.ID
		cr.ApprovedAt = &now
		if err := s.crRepo.Update(txCtx, cr); err != nil {
			return fmt.Errorf("failed to update change request: %w", err)
		}

		if err := s.historyRepo.Append(txCtx, cr.ID, model.HistoryActionApproved, actor.ID, actor.Username); err != nil {
			return fmt.Errorf("failed to write history: %w", err)
		}

		after = *cr
		return nil
	})
	if err != nil {
		return ApproveResult{}, err
	}

	s.notify(&after)

	result := ApproveResult{ChangeRequest: toChangeRequestResponse(&after)}
	if appendix != nil {
		resp := toAppendixResponse(appendix)
		result.Appendix = &resp
	}
	for _, e := range written {
		result.BillingEvents = append(result.BillingEvents, toBillingEventResponse(e))
	}
	return result, nil
}

// --- Reads ---

func (s *changeRequestService) Get(ctx context.Context, crID uuid.UUID) (ChangeRequestResponse, error) {
	cr, err := s.crRepo.GetByID(ctx, crID)
	if err != nil {
		return ChangeRequestResponse{}, err
	}
	return toChangeRequestResponse(cr), nil
}

func (s *changeRequestService) List(ctx context.Context, filter repository.ChangeRequestFilter) ([]ChangeRequestResponse, int64, error) {
	crs, total, err := s.crRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	result := make([]ChangeRequestResponse, 0, len(crs))
	for i := range crs {
		result = append(result, toChangeRequestResponse(&crs[i]))
	}
	return result, total, nil
}

func (s *changeRequestService) GetHistory(ctx context.Context, crID uuid.UUID) ([]HistoryEntryResponse, error) {
	if _, err := s.crRepo.GetByID(ctx, crID); err != nil {
		return nil, err
	}
	entries, err := s.historyRepo.ListFor(ctx, crID)
	if err != nil {
		return nil, err
	}
	result := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, HistoryEntryResponse{
			ID:        e.ID.String(),
			Action:    e.Action,
			UserID:    e.UserID.String(),
			UserName:  e.UserName,
			Timestamp: e.Timestamp.Format(time.RFC3339),
		})
	}
	return result, nil
}

func (s *changeRequestService) GetBillingEvents(ctx context.Context, crID uuid.UUID) ([]BillingEventResponse, error) {
	if _, err := s.crRepo.GetByID(ctx, crID); err != nil {
		return nil, err
	}
	events, err := s.billingRepo.ListForChangeRequest(ctx, crID)
	if err != nil {
		return nil, err
	}
	result := make([]BillingEventResponse, 0, len(events))
	for _, e := range events {
		result = append(result, toBillingEventResponse(e))
	}
	return result, nil
}

// --- Guards and helpers ---

// requireReviewer enforces the review authority guard: the assigned
// reviewer, or an admin override.
func requireReviewer(cr *model.ChangeRequest, actor *model.User) error {
	if actor.Role == model.RoleAdmin {
		return nil
	}
	if cr.InternalReviewerID != nil && *cr.InternalReviewerID == actor.ID {
		return nil
	}
	return fmt.Errorf("%w: actor is not the assigned reviewer", model.ErrForbidden)
}

func validateForSubmit(cr *model.ChangeRequest) error {
	if !model.ValidCRType(cr.Type) {
		return fmt.Errorf("%w: a valid change request type is required", model.ErrValidation)
	}
	if cr.Summary == "" {
		return fmt.Errorf("%w: summary is required", model.ErrValidation)
	}
	if cr.Amount.IsZero() && cr.ExpectedExtraCost == nil {
		return fmt.Errorf("%w: amount is required", model.ErrValidation)
	}
	if cr.DesiredStartDate == nil || cr.DesiredEndDate == nil {
		return fmt.Errorf("%w: desired start and end dates are required", model.ErrValidation)
	}
	return nil
}

// validateImpactFields rejects Fixed-Price impact analysis fields on
// contracts that are not Fixed Price, so a Retainer CR cannot carry them.
func validateImpactFields(cr *model.ChangeRequest, engagementType string) error {
	hasImpact := cr.DevHours != nil || cr.TestHours != nil || cr.NewEndDate != nil || cr.DelayDays != nil
	if hasImpact && engagementType != model.EngagementFixedPrice {
		return fmt.Errorf("%w: impact analysis fields apply to Fixed Price contracts only", model.ErrValidation)
	}
	return nil
}

func (s *changeRequestService) engagementType(ctx context.Context, cr *model.ChangeRequest) (string, error) {
	if cr.ContractKind != model.ContractKindSOW || cr.SOWContractID == nil {
		return "", nil
	}
	sow, err := s.contractRepo.GetSOWByID(ctx, *cr.SOWContractID)
	if err != nil {
		return "", fmt.Errorf("contract lookup: %w", err)
	}
	return sow.EngagementType, nil
}

func (s *changeRequestService) contractStatus(ctx context.Context, cr *model.ChangeRequest) (string, error) {
	if cr.ContractKind == model.ContractKindSOW && cr.SOWContractID != nil {
		sow, err := s.contractRepo.GetSOWByID(ctx, *cr.SOWContractID)
		if err != nil {
			return "", fmt.Errorf("contract lookup: %w", err)
		}
		return sow.Status, nil
	}
	if cr.ContractID == nil {
		return "", fmt.Errorf("%w: change request has no owning contract", model.ErrValidation)
	}
	msa, err := s.contractRepo.GetMSAByID(ctx, *cr.ContractID)
	if err != nil {
		return "", fmt.Errorf("contract lookup: %w", err)
	}
	return msa.Status, nil
}

// resolveDeltas picks the explicit deltas or computes them from the staffing
// assignments. Deltas are always computed fresh at approval time.
func resolveDeltas(req ApproveChangeRequestDTO, engagementType string) ([]BillingDeltaInput, error) {
	if len(req.Deltas) > 0 && len(req.Engineers) > 0 {
		return nil, fmt.Errorf("%w: supply either deltas or engineers, not both", model.ErrValidation)
	}

	if len(req.Deltas) > 0 {
		for _, d := range req.Deltas {
			if d.BillingMonth.IsZero() {
				return nil, fmt.Errorf("%w: billing month is required", model.ErrInvalidBillingInput)
			}
			if !model.ValidBillingEventType(d.Type) {
				return nil, fmt.Errorf("%w: unknown billing event type %q", model.ErrInvalidBillingInput, d.Type)
			}
		}
		return req.Deltas, nil
	}

	if len(req.Engineers) == 0 {
		return nil, nil
	}

	eventType := model.BillingEventScopeAdjustment
	if engagementType == model.EngagementRetainer {
		eventType = model.BillingEventRetainerAdjust
	}

	engineers := make([]model.EngagedEngineer, 0, len(req.Engineers))
	for _, e := range req.Engineers {
		engineers = append(engineers, model.EngagedEngineer{
			EngineerName: e.EngineerName,
			Role:         e.Role,
			Level:        e.Level,
			BillingType:  e.BillingType,
			Salary:       e.Salary,
			HourlyRate:   e.HourlyRate,
			Hours:        e.Hours,
		})
	}
	return ComputeEngineerDeltas(engineers, req.PeriodFrom, req.PeriodTo, eventType)
}

func (s *changeRequestService) notify(cr *model.ChangeRequest) {
	if s.hub == nil {
		return
	}
	s.hub.Notify("change_request.status_changed", map[string]string{
		"id":     cr.ID.String(),
		"code":   cr.Code,
		"status": cr.Status,
	})
}

func applyUpdate(cr *model.ChangeRequest, req UpdateChangeRequestDTO) {
	if req.Type != nil {
		cr.Type = *req.Type
	}
	if req.Title != nil {
		cr.Title = *req.Title
	}
	if req.Summary != nil {
		cr.Summary = *req.Summary
	}
	if req.Description != nil {
		cr.Description = *req.Description
	}
	if req.Reason != nil {
		cr.Reason = *req.Reason
	}
	if req.Evidence != nil {
		cr.Evidence = *req.Evidence
	}
	if req.DesiredStartDate != nil {
		cr.DesiredStartDate = req.DesiredStartDate
	}
	if req.DesiredEndDate != nil {
		cr.DesiredEndDate = req.DesiredEndDate
	}
	if req.Amount != nil {
		cr.Amount = *req.Amount
	}
	if req.ExpectedExtraCost != nil {
		cr.ExpectedExtraCost = req.ExpectedExtraCost
	}
	if req.InternalCostEst != nil {
		cr.InternalCostEst = req.InternalCostEst
	}
	if req.DevHours != nil {
		cr.DevHours = req.DevHours
	}
	if req.TestHours != nil {
		cr.TestHours = req.TestHours
	}
	if req.NewEndDate != nil {
		cr.NewEndDate = req.NewEndDate
	}
	if req.DelayDays != nil {
		cr.DelayDays = req.DelayDays
	}
}

// --- Response mappers ---

func toChangeRequestResponse(cr *model.ChangeRequest) ChangeRequestResponse {
	resp := ChangeRequestResponse{
		ID:           cr.ID.String(),
		Code:         cr.Code,
		ContractKind: cr.ContractKind,
		Type:         cr.Type,
		Title:        cr.Title,
		Summary:      cr.Summary,
		Description:  cr.Description,
		Reason:       cr.Reason,
		Evidence:     cr.Evidence,
		Amount:       cr.Amount.StringFixed(2),
		DevHours:     cr.DevHours,
		TestHours:    cr.TestHours,
		DelayDays:    cr.DelayDays,
		Status:       cr.Status,
		CreatedBy:    cr.CreatedBy.String(),
		CreatedAt:    cr.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    cr.UpdatedAt.Format(time.RFC3339),
	}

	resp.ContractID = uuidString(cr.ContractID)
	resp.SOWContractID = uuidString(cr.SOWContractID)
	resp.ReviewerID = uuidString(cr.InternalReviewerID)
	resp.AppendixID = uuidString(cr.AppendixID)
	resp.ApprovedBy = uuidString(cr.ApprovedBy)
	resp.DesiredStartDate = dateString(cr.DesiredStartDate)
	resp.DesiredEndDate = dateString(cr.DesiredEndDate)
	resp.NewEndDate = dateString(cr.NewEndDate)
	resp.ExpectedExtraCost = decimalString(cr.ExpectedExtraCost)
	resp.InternalCostEst = decimalString(cr.InternalCostEst)
	resp.SalesInternalNote = cr.SalesInternalNote

	if cr.ApprovedAt != nil {
		s := cr.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &s
	}
	if cr.Creator != nil {
		resp.CreatorName = cr.Creator.Username
	}
	if cr.Reviewer != nil {
		resp.ReviewerName = cr.Reviewer.Username
	}
	return resp
}

func toBillingEventResponse(e model.BillingEvent) BillingEventResponse {
	return BillingEventResponse{
		ID:              e.ID.String(),
		ChangeRequestID: e.ChangeRequestID.String(),
		BillingMonth:    e.BillingMonth.String(),
		DeltaAmount:     e.DeltaAmount.StringFixed(2),
		Description:     e.Description,
		Type:            e.Type,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}

func toAppendixResponse(a *model.ContractAppendix) AppendixResponse {
	resp := AppendixResponse{
		ID:              a.ID.String(),
		SOWContractID:   a.SOWContractID.String(),
		ChangeRequestID: a.ChangeRequestID.String(),
		AppendixNumber:  a.AppendixNumber,
		Title:           a.Title,
		Summary:         a.Summary,
		PdfPath:         a.PdfPath,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
	if a.SignedAt != nil {
		s := a.SignedAt.Format(time.RFC3339)
		resp.SignedAt = &s
	}
	return resp
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

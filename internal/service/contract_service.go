package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

type MonthlyBillingResponse struct {
	BillingMonth string `json:"billing_month"`
	Total        string `json:"total"`
}

type EngagedEngineerResponse struct {
	ID           string  `json:"id"`
	EngineerName string  `json:"engineer_name"`
	Role         string  `json:"role"`
	Level        string  `json:"level"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	BillingType  string  `json:"billing_type"`
	Salary       *string `json:"salary"`
	HourlyRate   *string `json:"hourly_rate"`
	Hours        *string `json:"hours"`
	Subtotal     *string `json:"subtotal"`
}

// ContractService exposes the contract-side reads the portals need around
// change requests: appendix listing/signing and the per-month billing view
// built from approved ledger deltas.
type ContractService interface {
	ListAppendices(ctx context.Context, sowContractID uuid.UUID) ([]AppendixResponse, error)
	SignAppendix(ctx context.Context, appendixID, actorID uuid.UUID) (AppendixResponse, error)
	MonthlyBilling(ctx context.Context, sowContractID uuid.UUID) ([]MonthlyBillingResponse, error)
	ListEngagedEngineers(ctx context.Context, sowContractID uuid.UUID) ([]EngagedEngineerResponse, error)
}

type contractService struct {
	contractRepo repository.ContractRepository
	appendixRepo repository.AppendixRepository
	billingRepo  repository.BillingEventRepository
	userRepo     repository.UserRepository
	txManager    repository.TransactionManager
}

func NewContractService(
	contractRepo repository.ContractRepository,
	appendixRepo repository.AppendixRepository,
	billingRepo repository.BillingEventRepository,
	userRepo repository.UserRepository,
	txManager repository.TransactionManager,
) ContractService {
	return &contractService{
		contractRepo: contractRepo,
		appendixRepo: appendixRepo,
		billingRepo:  billingRepo,
		userRepo:     userRepo,
		txManager:    txManager,
	}
}

func (s *contractService) ListAppendices(ctx context.Context, sowContractID uuid.UUID) ([]AppendixResponse, error) {
	if _, err := s.contractRepo.GetSOWByID(ctx, sowContractID); err != nil {
		return nil, fmt.Errorf("contract lookup: %w", err)
	}
	appendices, err := s.appendixRepo.ListForContract(ctx, sowContractID)
	if err != nil {
		return nil, err
	}
	result := make([]AppendixResponse, 0, len(appendices))
	for i := range appendices {
		result = append(result, toAppendixResponse(&appendices[i]))
	}
	return result, nil
}

func (s *contractService) SignAppendix(ctx context.Context, appendixID, actorID uuid.UUID) (AppendixResponse, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return AppendixResponse{}, fmt.Errorf("actor lookup: %w", err)
	}
	if !actor.Internal() {
		return AppendixResponse{}, fmt.Errorf("%w: internal staff only", model.ErrForbidden)
	}

	var signed *model.ContractAppendix
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.appendixRepo.Sign(txCtx, appendixID, time.Now()); err != nil {
			return err
		}
		appendix, err := s.appendixRepo.GetByID(txCtx, appendixID)
		if err != nil {
			return err
		}
		signed = appendix
		return nil
	})
	if err != nil {
		return AppendixResponse{}, err
	}
	return toAppendixResponse(signed), nil
}

func (s *contractService) MonthlyBilling(ctx context.Context, sowContractID uuid.UUID) ([]MonthlyBillingResponse, error) {
	if _, err := s.contractRepo.GetSOWByID(ctx, sowContractID); err != nil {
		return nil, fmt.Errorf("contract lookup: %w", err)
	}
	totals, err := s.billingRepo.MonthlyTotalsForContract(ctx, sowContractID)
	if err != nil {
		return nil, err
	}
	result := make([]MonthlyBillingResponse, 0, len(totals))
	for _, t := range totals {
		result = append(result, MonthlyBillingResponse{
			BillingMonth: t.BillingMonth.String(),
			Total:        t.Total.StringFixed(2),
		})
	}
	return result, nil
}

func (s *contractService) ListEngagedEngineers(ctx context.Context, sowContractID uuid.UUID) ([]EngagedEngineerResponse, error) {
	if _, err := s.contractRepo.GetSOWByID(ctx, sowContractID); err != nil {
		return nil, fmt.Errorf("contract lookup: %w", err)
	}
	engineers, err := s.contractRepo.ListEngagedEngineers(ctx, sowContractID)
	if err != nil {
		return nil, err
	}

	result := make([]EngagedEngineerResponse, 0, len(engineers))
	for _, e := range engineers {
		resp := EngagedEngineerResponse{
			ID:           e.ID.String(),
			EngineerName: e.EngineerName,
			Role:         e.Role,
			Level:        e.Level,
			BillingType:  e.BillingType,
			StartDate:    dateString(e.StartDate),
			EndDate:      dateString(e.EndDate),
			Salary:       decimalString(e.Salary),
			HourlyRate:   decimalString(e.HourlyRate),
			Hours:        decimalString(e.Hours),
		}
		// Display-only; assignments with incomplete rate fields simply
		// show no subtotal.
		if subtotal, err := ComputeEngineerSubtotal(e); err == nil {
			s := subtotal.StringFixed(2)
			resp.Subtotal = &s
		}
		result = append(result, resp)
	}
	return result, nil
}

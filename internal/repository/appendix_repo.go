package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppendixRepository owns contract appendices and hands out their numbers.
// NextNumber must be called inside the same transaction that creates the
// appendix: it takes a contract-level advisory lock so two change requests
// approved concurrently on the same SOW never draw the same number, and the
// unique index on (sow_contract_id, appendix_number) turns any remaining
// race into a retryable conflict instead of silent corruption.
type AppendixRepository interface {
	Create(ctx context.Context, appendix *model.ContractAppendix) error
	NextNumber(ctx context.Context, sowContractID uuid.UUID) (string, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.ContractAppendix, error)
	GetByChangeRequest(ctx context.Context, crID uuid.UUID) (*model.ContractAppendix, error)
	ListForContract(ctx context.Context, sowContractID uuid.UUID) ([]model.ContractAppendix, error)
	Sign(ctx context.Context, id uuid.UUID, signedAt time.Time) error
}

type appendixRepository struct {
	db *gorm.DB
}

func NewAppendixRepository(db *gorm.DB) AppendixRepository {
	return &appendixRepository{db: db}
}

func (r *appendixRepository) Create(ctx context.Context, appendix *model.ContractAppendix) error {
	if !InTx(ctx) {
		return model.ErrLedgerWriteConflict
	}
	return GetDB(ctx, r.db).Create(appendix).Error
}

func (r *appendixRepository) NextNumber(ctx context.Context, sowContractID uuid.UUID) (string, error) {
	if !InTx(ctx) {
		return "", model.ErrLedgerWriteConflict
	}
	db := GetDB(ctx, r.db)

	// Serialize numbering per contract for the rest of this transaction.
	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", sowContractID.String())

	// Appendices are never deleted, so count equals the highest assigned
	// number and the sequence stays gap-free.
	var count int64
	if err := db.Model(&model.ContractAppendix{}).
		Where("sow_contract_id = ?", sowContractID).
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("PL-%03d", count+1), nil
}

func (r *appendixRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ContractAppendix, error) {
	var appendix model.ContractAppendix
	if err := GetDB(ctx, r.db).First(&appendix, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &appendix, nil
}

func (r *appendixRepository) GetByChangeRequest(ctx context.Context, crID uuid.UUID) (*model.ContractAppendix, error) {
	var appendix model.ContractAppendix
	if err := GetDB(ctx, r.db).First(&appendix, "change_request_id = ?", crID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &appendix, nil
}

func (r *appendixRepository) ListForContract(ctx context.Context, sowContractID uuid.UUID) ([]model.ContractAppendix, error) {
	var appendices []model.ContractAppendix
	if err := GetDB(ctx, r.db).
		Where("sow_contract_id = ?", sowContractID).
		Order("appendix_number asc").
		Find(&appendices).Error; err != nil {
		return nil, err
	}
	return appendices, nil
}

// Sign records the signature timestamp. Appendices are immutable after
// creation except for this single field, and it can only be set once.
func (r *appendixRepository) Sign(ctx context.Context, id uuid.UUID, signedAt time.Time) error {
	result := GetDB(ctx, r.db).Model(&model.ContractAppendix{}).
		Where("id = ? AND signed_at IS NULL", id).
		Update("signed_at", signedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("appendix already signed or missing: %w", model.ErrInvalidStateForEdit)
	}
	return nil
}

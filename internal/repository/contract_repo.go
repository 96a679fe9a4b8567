package repository

import (
	"context"
	"errors"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContractRepository is the read-only collaborator view of contracts needed
// by change-request guards: does the contract exist, who owns it, is it
// Active, Fixed-Price or Retainer. Contract CRUD itself lives elsewhere.
type ContractRepository interface {
	GetMSAByID(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	GetSOWByID(ctx context.Context, id uuid.UUID) (*model.SOWContract, error)
	GetMSAByIDAndClient(ctx context.Context, id, clientID uuid.UUID) (*model.Contract, error)
	GetSOWByIDAndClient(ctx context.Context, id, clientID uuid.UUID) (*model.SOWContract, error)
	ListEngagedEngineers(ctx context.Context, sowContractID uuid.UUID) ([]model.EngagedEngineer, error)
}

type contractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) GetMSAByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := GetDB(ctx, r.db).First(&contract, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) GetSOWByID(ctx context.Context, id uuid.UUID) (*model.SOWContract, error) {
	var sow model.SOWContract
	if err := GetDB(ctx, r.db).First(&sow, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &sow, nil
}

func (r *contractRepository) GetMSAByIDAndClient(ctx context.Context, id, clientID uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := GetDB(ctx, r.db).First(&contract, "id = ? AND client_id = ?", id, clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) GetSOWByIDAndClient(ctx context.Context, id, clientID uuid.UUID) (*model.SOWContract, error) {
	var sow model.SOWContract
	if err := GetDB(ctx, r.db).First(&sow, "id = ? AND client_id = ?", id, clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &sow, nil
}

func (r *contractRepository) ListEngagedEngineers(ctx context.Context, sowContractID uuid.UUID) ([]model.EngagedEngineer, error) {
	var engineers []model.EngagedEngineer
	if err := GetDB(ctx, r.db).
		Where("sow_contract_id = ?", sowContractID).
		Order("created_at asc").
		Find(&engineers).Error; err != nil {
		return nil, err
	}
	return engineers, nil
}

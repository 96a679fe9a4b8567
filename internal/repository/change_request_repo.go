package repository

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChangeRequestFilter narrows List results.
type ChangeRequestFilter struct {
	Status        string
	ContractKind  string
	SOWContractID *uuid.UUID
	ContractID    *uuid.UUID
	CreatedBy     *uuid.UUID
	Page          int
	Limit         int
}

// ChangeRequestRepository owns the change_requests table. Status mutations
// go through Update inside a transition transaction; GetForUpdate locks the
// row so concurrent transitions on the same change request serialize.
type ChangeRequestRepository interface {
	Create(ctx context.Context, cr *model.ChangeRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error)
	GetByCode(ctx context.Context, code string) (*model.ChangeRequest, error)
	Update(ctx context.Context, cr *model.ChangeRequest) error
	List(ctx context.Context, filter ChangeRequestFilter) ([]model.ChangeRequest, int64, error)
	NextCode(ctx context.Context, year int) (string, error)
}

type changeRequestRepository struct {
	db *gorm.DB
}

func NewChangeRequestRepository(db *gorm.DB) ChangeRequestRepository {
	return &changeRequestRepository{db: db}
}

func (r *changeRequestRepository) Create(ctx context.Context, cr *model.ChangeRequest) error {
	return GetDB(ctx, r.db).Create(cr).Error
}

func (r *changeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	var cr model.ChangeRequest
	if err := GetDB(ctx, r.db).Preload("Creator").Preload("Reviewer").First(&cr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &cr, nil
}

// GetForUpdate loads the change request with a FOR UPDATE row lock. Must be
// called inside a transaction; the lock is the per-CR mutex that keeps two
// transitions from interleaving.
func (r *changeRequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	if !InTx(ctx) {
		return nil, model.ErrLedgerWriteConflict
	}
	var cr model.ChangeRequest
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&cr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &cr, nil
}

func (r *changeRequestRepository) GetByCode(ctx context.Context, code string) (*model.ChangeRequest, error) {
	var cr model.ChangeRequest
	if err := GetDB(ctx, r.db).Preload("Creator").Preload("Reviewer").First(&cr, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &cr, nil
}

func (r *changeRequestRepository) Update(ctx context.Context, cr *model.ChangeRequest) error {
	return GetDB(ctx, r.db).Save(cr).Error
}

func (r *changeRequestRepository) List(ctx context.Context, filter ChangeRequestFilter) ([]model.ChangeRequest, int64, error) {
	db := GetDB(ctx, r.db)

	build := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.ContractKind != "" {
			q = q.Where("contract_kind = ?", filter.ContractKind)
		}
		if filter.SOWContractID != nil {
			q = q.Where("sow_contract_id = ?", *filter.SOWContractID)
		}
		if filter.ContractID != nil {
			q = q.Where("contract_id = ?", *filter.ContractID)
		}
		if filter.CreatedBy != nil {
			q = q.Where("created_by = ?", *filter.CreatedBy)
		}
		return q
	}

	var total int64
	if err := build(db.Model(&model.ChangeRequest{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	limit := filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var crs []model.ChangeRequest
	if err := build(db.Preload("Creator").Preload("Reviewer")).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&crs).Error; err != nil {
		return nil, 0, err
	}

	return crs, total, nil
}

// NextCode assigns the next display code CR-YYYY-NN for the given year.
// An advisory lock on the year prefix keeps two concurrent creations from
// drawing the same number.
func (r *changeRequestRepository) NextCode(ctx context.Context, year int) (string, error) {
	db := GetDB(ctx, r.db)
	prefix := fmt.Sprintf("CR-%d-", year)

	if InTx(ctx) {
		db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)
	}

	var count int64
	if err := db.Model(&model.ChangeRequest{}).
		Where("code LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%02d", prefix, count+1), nil
}

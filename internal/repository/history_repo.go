package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository is the append-only transition log. Entries are never
// edited or deleted; ListFor returns them in chronological order.
type HistoryRepository interface {
	Append(ctx context.Context, crID uuid.UUID, action string, actorID uuid.UUID, actorName string) error
	ListFor(ctx context.Context, crID uuid.UUID) ([]model.HistoryEntry, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, crID uuid.UUID, action string, actorID uuid.UUID, actorName string) error {
	entry := model.HistoryEntry{
		ChangeRequestID: crID,
		Action:          action,
		UserID:          actorID,
		UserName:        actorName,
		Timestamp:       time.Now(),
	}
	return GetDB(ctx, r.db).Create(&entry).Error
}

func (r *historyRepository) ListFor(ctx context.Context, crID uuid.UUID) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	if err := GetDB(ctx, r.db).
		Where("change_request_id = ?", crID).
		Order("timestamp asc, id asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

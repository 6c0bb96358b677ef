package repository

import (
	"context"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"gorm.io/gorm"
)

type HistoryRepository interface {
	Create(ctx context.Context, h *domain.StatusChange) error
	ListByEntity(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.StatusChange, error)
}

type GormHistoryRepo struct {
	db *gorm.DB
}

func NewGormHistoryRepo(db *gorm.DB) *GormHistoryRepo {
	return &GormHistoryRepo{db: db}
}

func (r *GormHistoryRepo) Create(ctx context.Context, h *domain.StatusChange) error {
	model := statusChangeModelFromDomain(h)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	if h != nil {
		*h = *statusChangeModelToDomain(model)
	}
	return nil
}

func (r *GormHistoryRepo) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.StatusChange, error) {
	var models []StatusChangeModel
	err := conn(ctx, r.db).
		Where("entity_type = ? AND entity_id = ?", string(entityType), entityID).
		Order("changed_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	changes := make([]domain.StatusChange, 0, len(models))
	for i := range models {
		changes = append(changes, *statusChangeModelToDomain(&models[i]))
	}

	return changes, nil
}

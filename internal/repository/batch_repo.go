package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"gorm.io/gorm"
)

// BatchCounts aggregates member and card totals for batch listings.
type BatchCounts struct {
	BatchID     string `gorm:"column:batch_id"`
	MemberCount int    `gorm:"column:member_count"`
	CardCount   int    `gorm:"column:card_count"`
}

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Batch, int64, error)
	Update(ctx context.Context, b *domain.Batch) error
	AddItem(ctx context.Context, item *domain.BatchItem) error
	RemoveItem(ctx context.Context, batchID, applicationID string) error
	CountItems(ctx context.Context, batchID string) (int, error)
	GetCounts(ctx context.Context, batchIDs []string) ([]BatchCounts, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := conn(ctx, r.db).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) List(ctx context.Context, page, pageSize int) ([]domain.Batch, int64, error) {
	query := conn(ctx, r.db).Model(&BatchModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []BatchModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, total, nil
}

func (r *GormBatchRepo) Update(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if model == nil {
		return domain.ErrNotFound
	}

	result := conn(ctx, r.db).
		Model(&BatchModel{}).
		Where("id = ?", model.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) AddItem(ctx context.Context, item *domain.BatchItem) error {
	model := batchItemModelFromDomain(item)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	if item != nil {
		*item = *batchItemModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) RemoveItem(ctx context.Context, batchID, applicationID string) error {
	result := conn(ctx, r.db).
		Where("batch_id = ? AND application_id = ?", batchID, applicationID).
		Delete(&BatchItemModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) CountItems(ctx context.Context, batchID string) (int, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&BatchItemModel{}).
		Where("batch_id = ?", batchID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *GormBatchRepo) GetCounts(ctx context.Context, batchIDs []string) ([]BatchCounts, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}

	var counts []BatchCounts
	err := conn(ctx, r.db).
		Model(&BatchItemModel{}).
		Select(`batch_items.batch_id,
			COUNT(*) AS member_count,
			COUNT(cards.id) AS card_count`).
		Joins("LEFT JOIN cards ON cards.application_id = batch_items.application_id").
		Where("batch_items.batch_id IN ?", batchIDs).
		Group("batch_items.batch_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"gorm.io/gorm"
)

type CardRepository interface {
	Create(ctx context.Context, c *domain.Card) error
	GetByID(ctx context.Context, id string) (*domain.Card, error)
	GetByApplicationID(ctx context.Context, applicationID string) (*domain.Card, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Card, int64, error)
	Update(ctx context.Context, c *domain.Card) error
}

type GormCardRepo struct {
	db *gorm.DB
}

func NewGormCardRepo(db *gorm.DB) *GormCardRepo {
	return &GormCardRepo{db: db}
}

func (r *GormCardRepo) Create(ctx context.Context, c *domain.Card) error {
	model := cardModelFromDomain(c)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *cardModelToDomain(model)
	}
	return nil
}

func (r *GormCardRepo) GetByID(ctx context.Context, id string) (*domain.Card, error) {
	var model CardModel
	err := conn(ctx, r.db).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cardModelToDomain(&model), nil
}

func (r *GormCardRepo) GetByApplicationID(ctx context.Context, applicationID string) (*domain.Card, error) {
	var model CardModel
	err := conn(ctx, r.db).
		Where("application_id = ?", applicationID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cardModelToDomain(&model), nil
}

func (r *GormCardRepo) List(ctx context.Context, page, pageSize int) ([]domain.Card, int64, error) {
	query := conn(ctx, r.db).Model(&CardModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []CardModel
	err := query.
		Order("issued_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	cards := make([]domain.Card, 0, len(models))
	for i := range models {
		cards = append(cards, *cardModelToDomain(&models[i]))
	}

	return cards, total, nil
}

func (r *GormCardRepo) Update(ctx context.Context, c *domain.Card) error {
	model := cardModelFromDomain(c)
	if model == nil {
		return domain.ErrNotFound
	}

	result := conn(ctx, r.db).
		Model(&CardModel{}).
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

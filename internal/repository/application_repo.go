package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	State    *domain.AppState
	Query    string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type ApplicationRepository interface {
	Create(ctx context.Context, a *domain.Application) error
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	GetByNo(ctx context.Context, applicationNo string) (*domain.Application, error)
	List(ctx context.Context, params ListParams) ([]domain.Application, int64, error)
	ListByBatch(ctx context.Context, batchID string) ([]domain.Application, error)
	Update(ctx context.Context, a *domain.Application) error
}

type GormApplicationRepo struct {
	db *gorm.DB
}

func NewGormApplicationRepo(db *gorm.DB) *GormApplicationRepo {
	return &GormApplicationRepo{db: db}
}

func (r *GormApplicationRepo) Create(ctx context.Context, a *domain.Application) error {
	model := applicationModelFromDomain(a)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *applicationModelToDomain(model)
	}
	return nil
}

func (r *GormApplicationRepo) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	var model ApplicationModel
	err := conn(ctx, r.db).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return applicationModelToDomain(&model), nil
}

func (r *GormApplicationRepo) GetByNo(ctx context.Context, applicationNo string) (*domain.Application, error) {
	var model ApplicationModel
	err := conn(ctx, r.db).
		Where("application_no = ?", applicationNo).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return applicationModelToDomain(&model), nil
}

func (r *GormApplicationRepo) List(ctx context.Context, params ListParams) ([]domain.Application, int64, error) {
	query := conn(ctx, r.db).Model(&ApplicationModel{})

	if params.State != nil {
		query = query.Where("state = ?", *params.State)
	}
	if params.Query != "" {
		like := "%" + params.Query + "%"
		query = query.Where("application_no ILIKE ? OR applicant_name ILIKE ? OR applicant_ref ILIKE ?", like, like, like)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []ApplicationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	applications := make([]domain.Application, 0, len(models))
	for i := range models {
		applications = append(applications, *applicationModelToDomain(&models[i]))
	}

	return applications, total, nil
}

// ListByBatch returns a batch's member applications in submission order.
func (r *GormApplicationRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.Application, error) {
	var models []ApplicationModel
	err := conn(ctx, r.db).
		Joins("JOIN batch_items ON batch_items.application_id = applications.id").
		Where("batch_items.batch_id = ?", batchID).
		Order("batch_items.position ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	applications := make([]domain.Application, 0, len(models))
	for i := range models {
		applications = append(applications, *applicationModelToDomain(&models[i]))
	}

	return applications, nil
}

func (r *GormApplicationRepo) Update(ctx context.Context, a *domain.Application) error {
	model := applicationModelFromDomain(a)
	if model == nil {
		return domain.ErrNotFound
	}

	result := conn(ctx, r.db).
		Model(&ApplicationModel{}).
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

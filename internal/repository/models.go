package repository

import (
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// NumberSequenceModel is the persistence model for per-bucket counters.
type NumberSequenceModel struct {
	Kind      string `gorm:"type:varchar(10);primaryKey"`
	Year      int    `gorm:"primaryKey"`
	LastValue int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (NumberSequenceModel) TableName() string {
	return "number_sequences"
}

// ApplicationModel is the persistence model for the applications table.
type ApplicationModel struct {
	ID            string          `gorm:"type:uuid;primaryKey"`
	ApplicationNo string          `gorm:"type:varchar(30);not null"`
	ApplicantName string          `gorm:"type:varchar(250);not null"`
	ApplicantRef  string          `gorm:"type:varchar(40);not null"`
	ProductCode   string          `gorm:"type:varchar(40);not null"`
	BatchID       *string         `gorm:"type:uuid"`
	CardID        *string         `gorm:"type:uuid"`
	State         domain.AppState `gorm:"type:varchar(20);not null"`
	DecisionBy    *string         `gorm:"type:varchar(120)"`
	DecisionNote  *string         `gorm:"type:text"`
	DecidedAt     *time.Time
	SubmittedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ApplicationModel) TableName() string {
	return "applications"
}

// BatchModel is the persistence model for batches.
type BatchModel struct {
	ID         string             `gorm:"type:uuid;primaryKey"`
	BatchNo    string             `gorm:"type:varchar(30);not null"`
	Status     domain.BatchStatus `gorm:"type:varchar(20);not null"`
	ApprovedAt *time.Time
	ClosedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// BatchItemModel is the persistence model for batch membership rows.
type BatchItemModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	BatchID       string `gorm:"type:uuid;not null"`
	ApplicationID string `gorm:"type:uuid;not null"`
	Position      int    `gorm:"not null"`
	CreatedAt     time.Time
}

func (BatchItemModel) TableName() string {
	return "batch_items"
}

// CardModel is the persistence model for cards.
type CardModel struct {
	ID            string            `gorm:"type:uuid;primaryKey"`
	CardNo        string            `gorm:"type:varchar(30);not null"`
	ApplicationID string            `gorm:"type:uuid;not null"`
	Status        domain.CardStatus `gorm:"type:varchar(20);not null"`
	PanMasked     string            `gorm:"type:varchar(30)"`
	ExpiryMonth   int               `gorm:"not null;default:0"`
	ExpiryYear    int               `gorm:"not null;default:0"`
	IssuedAt      time.Time         `gorm:"not null"`
	DeliveredAt   *time.Time
	HandedAt      *time.Time
	ActivatedAt   *time.Time
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (CardModel) TableName() string {
	return "cards"
}

// StatusChangeModel is the persistence model for the status audit trail.
type StatusChangeModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	EntityType string `gorm:"type:varchar(20);not null"`
	EntityID   string `gorm:"type:uuid;not null"`
	BusinessNo string `gorm:"type:varchar(30);not null"`
	FromStatus string `gorm:"type:varchar(20);not null"`
	ToStatus   string `gorm:"type:varchar(20);not null"`
	ChangedBy  string `gorm:"type:varchar(120)"`
	ChangedAt  time.Time
}

func (StatusChangeModel) TableName() string {
	return "status_history"
}

func applicationModelFromDomain(a *domain.Application) *ApplicationModel {
	if a == nil {
		return nil
	}

	return &ApplicationModel{
		ID:            a.ID,
		ApplicationNo: a.ApplicationNo,
		ApplicantName: a.ApplicantName,
		ApplicantRef:  a.ApplicantRef,
		ProductCode:   a.ProductCode,
		BatchID:       a.BatchID,
		CardID:        a.CardID,
		State:         a.State,
		DecisionBy:    a.DecisionBy,
		DecisionNote:  a.DecisionNote,
		DecidedAt:     a.DecidedAt,
		SubmittedAt:   a.SubmittedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func applicationModelToDomain(m *ApplicationModel) *domain.Application {
	if m == nil {
		return nil
	}

	return &domain.Application{
		ID:            m.ID,
		ApplicationNo: m.ApplicationNo,
		ApplicantName: m.ApplicantName,
		ApplicantRef:  m.ApplicantRef,
		ProductCode:   m.ProductCode,
		BatchID:       m.BatchID,
		CardID:        m.CardID,
		State:         m.State,
		DecisionBy:    m.DecisionBy,
		DecisionNote:  m.DecisionNote,
		DecidedAt:     m.DecidedAt,
		SubmittedAt:   m.SubmittedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:         b.ID,
		BatchNo:    b.BatchNo,
		Status:     b.Status,
		ApprovedAt: b.ApprovedAt,
		ClosedAt:   b.ClosedAt,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:         m.ID,
		BatchNo:    m.BatchNo,
		Status:     m.Status,
		ApprovedAt: m.ApprovedAt,
		ClosedAt:   m.ClosedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func batchItemModelFromDomain(i *domain.BatchItem) *BatchItemModel {
	if i == nil {
		return nil
	}

	return &BatchItemModel{
		ID:            i.ID,
		BatchID:       i.BatchID,
		ApplicationID: i.ApplicationID,
		Position:      i.Position,
		CreatedAt:     i.CreatedAt,
	}
}

func batchItemModelToDomain(m *BatchItemModel) *domain.BatchItem {
	if m == nil {
		return nil
	}

	return &domain.BatchItem{
		ID:            m.ID,
		BatchID:       m.BatchID,
		ApplicationID: m.ApplicationID,
		Position:      m.Position,
		CreatedAt:     m.CreatedAt,
	}
}

func cardModelFromDomain(c *domain.Card) *CardModel {
	if c == nil {
		return nil
	}

	return &CardModel{
		ID:            c.ID,
		CardNo:        c.CardNo,
		ApplicationID: c.ApplicationID,
		Status:        c.Status,
		PanMasked:     c.PanMasked,
		ExpiryMonth:   c.ExpiryMonth,
		ExpiryYear:    c.ExpiryYear,
		IssuedAt:      c.IssuedAt,
		DeliveredAt:   c.DeliveredAt,
		HandedAt:      c.HandedAt,
		ActivatedAt:   c.ActivatedAt,
		ClosedAt:      c.ClosedAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func cardModelToDomain(m *CardModel) *domain.Card {
	if m == nil {
		return nil
	}

	return &domain.Card{
		ID:            m.ID,
		CardNo:        m.CardNo,
		ApplicationID: m.ApplicationID,
		Status:        m.Status,
		PanMasked:     m.PanMasked,
		ExpiryMonth:   m.ExpiryMonth,
		ExpiryYear:    m.ExpiryYear,
		IssuedAt:      m.IssuedAt,
		DeliveredAt:   m.DeliveredAt,
		HandedAt:      m.HandedAt,
		ActivatedAt:   m.ActivatedAt,
		ClosedAt:      m.ClosedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func statusChangeModelFromDomain(h *domain.StatusChange) *StatusChangeModel {
	if h == nil {
		return nil
	}

	return &StatusChangeModel{
		ID:         h.ID,
		EntityType: string(h.EntityType),
		EntityID:   h.EntityID,
		BusinessNo: h.BusinessNo,
		FromStatus: h.FromStatus,
		ToStatus:   h.ToStatus,
		ChangedBy:  h.ChangedBy,
		ChangedAt:  h.ChangedAt,
	}
}

func statusChangeModelToDomain(m *StatusChangeModel) *domain.StatusChange {
	if m == nil {
		return nil
	}

	return &domain.StatusChange{
		ID:         m.ID,
		EntityType: domain.EntityType(m.EntityType),
		EntityID:   m.EntityID,
		BusinessNo: m.BusinessNo,
		FromStatus: m.FromStatus,
		ToStatus:   m.ToStatus,
		ChangedBy:  m.ChangedBy,
		ChangedAt:  m.ChangedAt,
	}
}

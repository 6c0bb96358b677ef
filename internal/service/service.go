package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NumberAllocator mints business numbers. Implemented by sequence.Allocator.
type NumberAllocator interface {
	Allocate(ctx context.Context, kind domain.NumberKind) (domain.BusinessNumber, error)
}

// DocumentTrigger requests print forms at workflow milestones.
// Implemented by printing.Trigger.
type DocumentTrigger interface {
	Statement(ctx context.Context, app domain.Application) (*domain.DocumentHandle, error)
	Contract(ctx context.Context, app domain.Application, card domain.Card) (*domain.DocumentHandle, error)
	Lookup(ctx context.Context, applicationNo string, kind domain.DocumentKind) (*domain.DocumentHandle, error)
}

func newStatusChange(id string, entity domain.EntityType, entityID, businessNo, from, to, changedBy string, at time.Time) *domain.StatusChange {
	return &domain.StatusChange{
		ID:         id,
		EntityType: entity,
		EntityID:   entityID,
		BusinessNo: businessNo,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  strings.TrimSpace(changedBy),
		ChangedAt:  at,
	}
}

// publishStatusChanges emits committed status changes to the event stream.
// Publishing is best effort; the audit trail in Postgres is authoritative.
func publishStatusChanges(ctx context.Context, publisher events.Publisher, logger *zap.Logger, changes ...domain.StatusChange) {
	if publisher == nil {
		return
	}

	for _, change := range changes {
		if err := publisher.Publish(ctx, events.QueueName(change.EntityType), events.FromStatusChange(change)); err != nil {
			logger.Error("failed to publish status event",
				zap.String("entityType", change.EntityType.String()),
				zap.String("businessNo", change.BusinessNo),
				zap.String("toStatus", change.ToStatus),
				zap.Error(err),
			)
		}
	}
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

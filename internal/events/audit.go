package events

import (
	"context"

	"go.uber.org/zap"
)

// NewAuditHandler returns an EventHandler that logs every consumed status
// change and reports it through observe. A nil observe only logs.
func NewAuditHandler(logger *zap.Logger, observe func(entity string)) EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, event StatusChangedEvent) error {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Info("status change consumed",
			zap.String("eventId", event.EventID),
			zap.String("entity", string(event.EntityType)),
			zap.String("entityId", event.EntityID),
			zap.String("businessNo", event.BusinessNo),
			zap.String("fromStatus", event.FromStatus),
			zap.String("toStatus", event.ToStatus),
			zap.String("changedBy", event.ChangedBy),
		)

		if observe != nil {
			observe(string(event.EntityType))
		}
		return nil
	}
}

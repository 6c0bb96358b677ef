package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// StatusChangedEvent is the broker payload emitted after a status change
// commits. Downstream systems consume it to mirror workflow progress.
type StatusChangedEvent struct {
	EventID    string            `json:"eventId"`
	EntityType domain.EntityType `json:"entityType"`
	EntityID   string            `json:"entityId"`
	BusinessNo string            `json:"businessNo,omitempty"`
	FromStatus string            `json:"fromStatus,omitempty"`
	ToStatus   string            `json:"toStatus"`
	ChangedBy  string            `json:"changedBy,omitempty"`
	ChangedAt  time.Time         `json:"changedAt"`
}

func (e StatusChangedEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if !e.EntityType.IsValid() {
		return fmt.Errorf("invalid entity type %q", e.EntityType)
	}
	if strings.TrimSpace(e.EntityID) == "" {
		return fmt.Errorf("entityId is required")
	}
	if strings.TrimSpace(e.ToStatus) == "" {
		return fmt.Errorf("toStatus is required")
	}
	return nil
}

// FromStatusChange builds the broker payload for a recorded audit row.
func FromStatusChange(change domain.StatusChange) StatusChangedEvent {
	return StatusChangedEvent{
		EventID:    change.ID,
		EntityType: change.EntityType,
		EntityID:   change.EntityID,
		BusinessNo: change.BusinessNo,
		FromStatus: change.FromStatus,
		ToStatus:   change.ToStatus,
		ChangedBy:  change.ChangedBy,
		ChangedAt:  change.ChangedAt,
	}
}

package domain

import "time"

// EntityType tags status-history rows with the entity family they audit.
type EntityType string

const (
	EntityApplication EntityType = "application"
	EntityBatch       EntityType = "batch"
	EntityCard        EntityType = "card"
)

func (t EntityType) String() string { return string(t) }

func (t EntityType) IsValid() bool {
	return t == EntityApplication || t == EntityBatch || t == EntityCard
}

// StatusChange is one audit row, written in the same transaction as the
// status change it records.
type StatusChange struct {
	ID         string
	EntityType EntityType
	EntityID   string
	BusinessNo string
	FromStatus string
	ToStatus   string
	ChangedBy  string
	ChangedAt  time.Time
}

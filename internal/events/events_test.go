package events

import (
	"testing"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

func TestStreamQueueNames(t *testing.T) {
	work := StreamQueueNames()
	if len(work) != 3 {
		t.Fatalf("StreamQueueNames len = %d, want 3", len(work))
	}

	expected := map[string]struct{}{
		"status.application": {},
		"status.batch":       {},
		"status.card":        {},
	}

	for _, name := range work {
		if _, ok := expected[name]; !ok {
			t.Fatalf("unexpected queue name: %s", name)
		}
	}

	dlq := DLQNames()
	if len(dlq) != 3 {
		t.Fatalf("DLQNames len = %d, want 3", len(dlq))
	}

	expectedDLQ := map[string]struct{}{
		"dlq.status.application": {},
		"dlq.status.batch":       {},
		"dlq.status.card":        {},
	}

	for _, name := range dlq {
		if _, ok := expectedDLQ[name]; !ok {
			t.Fatalf("unexpected dlq name: %s", name)
		}
	}
}

func TestQueueName(t *testing.T) {
	queueName := QueueName(domain.EntityApplication)
	if queueName != "status.application" {
		t.Fatalf("QueueName = %s, want status.application", queueName)
	}

	dlqName := DLQName(domain.EntityCard)
	if dlqName != "dlq.status.card" {
		t.Fatalf("DLQName = %s, want dlq.status.card", dlqName)
	}
}

func TestStatusChangedEventValidate(t *testing.T) {
	event := StatusChangedEvent{
		EventID:    "e1",
		EntityType: domain.EntityApplication,
		EntityID:   "a1",
		ToStatus:   "SUBMITTED",
		ChangedAt:  time.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	event.EventID = ""
	if err := event.Validate(); err == nil {
		t.Fatal("expected error for empty event id")
	}

	event.EventID = "e1"
	event.EntityType = domain.EntityType("invalid")
	if err := event.Validate(); err == nil {
		t.Fatal("expected error for invalid entity type")
	}

	event.EntityType = domain.EntityApplication
	event.ToStatus = ""
	if err := event.Validate(); err == nil {
		t.Fatal("expected error for empty target status")
	}
}

func TestFromStatusChange(t *testing.T) {
	changedAt := time.Date(2024, time.May, 10, 9, 30, 0, 0, time.UTC)
	change := domain.StatusChange{
		ID:         "c1",
		EntityType: domain.EntityCard,
		EntityID:   "card-1",
		BusinessNo: "CARD-2024-000001",
		FromStatus: "ISSUED",
		ToStatus:   "DELIVERED",
		ChangedBy:  "courier-sync",
		ChangedAt:  changedAt,
	}

	event := FromStatusChange(change)
	if event.EventID != change.ID {
		t.Errorf("EventID = %q, want %q", event.EventID, change.ID)
	}
	if event.EntityType != domain.EntityCard {
		t.Errorf("EntityType = %q, want card", event.EntityType)
	}
	if event.BusinessNo != change.BusinessNo {
		t.Errorf("BusinessNo = %q, want %q", event.BusinessNo, change.BusinessNo)
	}
	if !event.ChangedAt.Equal(changedAt) {
		t.Errorf("ChangedAt = %v, want %v", event.ChangedAt, changedAt)
	}
	if err := event.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

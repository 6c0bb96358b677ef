package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the processing state of an issuance batch.
type BatchStatus string

const (
	BatchStatusOpen       BatchStatus = "OPEN"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusApproved   BatchStatus = "APPROVED"
	BatchStatusClosed     BatchStatus = "CLOSED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusOpen, BatchStatusProcessing, BatchStatusApproved, BatchStatusClosed:
		return true
	}
	return false
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// Batch groups applications for bulk review and card issuance. It owns the
// membership relation, not the applications; members keep their own
// lifecycle and are referenced by identity in submission order.
type Batch struct {
	ID         string
	BatchNo    string
	Status     BatchStatus
	ApprovedAt *time.Time
	ClosedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BatchItem is one membership entry. Position preserves the order the
// application was added to the batch.
type BatchItem struct {
	ID            string
	BatchID       string
	ApplicationID string
	Position      int
	CreatedAt     time.Time
}

// AcceptsMembers reports whether membership changes are still allowed.
func (b *Batch) AcceptsMembers() bool {
	return b.Status == BatchStatusOpen
}

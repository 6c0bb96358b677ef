package domain

import (
	"fmt"
	"strings"
	"time"
)

// CardStatus represents the post-issuance lifecycle state of a card.
type CardStatus string

const (
	CardStatusIssued    CardStatus = "ISSUED"
	CardStatusDelivered CardStatus = "DELIVERED"
	CardStatusHanded    CardStatus = "HANDED"
	CardStatusActivated CardStatus = "ACTIVATED"
	CardStatusClosed    CardStatus = "CLOSED"
)

func (s CardStatus) String() string { return string(s) }

func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusIssued, CardStatusDelivered, CardStatusHanded,
		CardStatusActivated, CardStatusClosed:
		return true
	}
	return false
}

// cardTransitions is the card lifecycle transition table.
var cardTransitions = map[CardStatus][]CardStatus{
	CardStatusIssued:    {CardStatusDelivered},
	CardStatusDelivered: {CardStatusHanded},
	CardStatusHanded:    {CardStatusActivated},
	CardStatusActivated: {CardStatusClosed},
	CardStatusClosed:    {},
}

func (s CardStatus) CanTransition(to CardStatus) bool {
	for _, next := range cardTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CardEvent is an operator action advancing a card through its lifecycle.
type CardEvent string

const (
	CardEventDelivered CardEvent = "DELIVERED"
	CardEventHanded    CardEvent = "HANDED"
	CardEventActivated CardEvent = "ACTIVATED"
	CardEventClosed    CardEvent = "CLOSED"
)

func ParseCardEventFromString(s string) (CardEvent, error) {
	e := CardEvent(strings.ToUpper(strings.TrimSpace(s)))
	switch e {
	case CardEventDelivered, CardEventHanded, CardEventActivated, CardEventClosed:
		return e, nil
	}
	return "", fmt.Errorf("%w: invalid card event %q", ErrValidation, s)
}

// TargetStatus maps a card event to the status it moves the card into.
func (e CardEvent) TargetStatus() CardStatus {
	return CardStatus(e)
}

// Card is produced when an approved application is issued inside an
// approved batch. Exactly one card exists per issued application.
type Card struct {
	ID            string
	CardNo        string
	ApplicationID string
	Status        CardStatus
	PanMasked     string
	ExpiryMonth   int
	ExpiryYear    int
	IssuedAt      time.Time
	DeliveredAt   *time.Time
	HandedAt      *time.Time
	ActivatedAt   *time.Time
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ApplyEvent validates the lifecycle transition and stamps the matching
// timestamp. Callers persist the card and record history.
func (c *Card) ApplyEvent(event CardEvent, now time.Time) error {
	target := event.TargetStatus()
	if !c.Status.CanTransition(target) {
		return fmt.Errorf("%w: card %s cannot move %s -> %s",
			ErrInvalidTransition, c.CardNo, c.Status, target)
	}

	switch target {
	case CardStatusDelivered:
		c.DeliveredAt = &now
	case CardStatusHanded:
		c.HandedAt = &now
	case CardStatusActivated:
		c.ActivatedAt = &now
	case CardStatusClosed:
		c.ClosedAt = &now
	}

	c.Status = target
	c.UpdatedAt = now
	return nil
}

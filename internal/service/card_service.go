package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/events"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"go.uber.org/zap"
)

// cardValidityYears is how long newly issued cards stay valid.
const cardValidityYears = 3

// CardService owns the card side of the workflow. Issuance itself is
// unexported; it only runs inside the batch approval fan-out.
type CardService struct {
	tx        repository.TxManager
	cards     repository.CardRepository
	apps      repository.ApplicationRepository
	history   repository.HistoryRepository
	allocator NumberAllocator
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewCardService(
	tx repository.TxManager,
	cards repository.CardRepository,
	apps repository.ApplicationRepository,
	history repository.HistoryRepository,
	allocator NumberAllocator,
	publisher events.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*CardService, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx manager is required")
	}
	if cards == nil {
		return nil, fmt.Errorf("card repository is required")
	}
	if apps == nil {
		return nil, fmt.Errorf("application repository is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history repository is required")
	}
	if allocator == nil {
		return nil, fmt.Errorf("number allocator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CardService{
		tx:        tx,
		cards:     cards,
		apps:      apps,
		history:   history,
		allocator: allocator,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// issue creates the card for an approved application and moves the
// application to ISSUED. Callers run it inside a transaction; the card
// insert and the application update commit or fail together. The returned
// status changes are published by the caller after commit.
func (s *CardService) issue(ctx context.Context, app *domain.Application) (*domain.Card, []domain.StatusChange, error) {
	if app == nil {
		return nil, nil, fmt.Errorf("%w: application is required", domain.ErrValidation)
	}
	if app.State == domain.AppStateIssued || app.CardID != nil {
		return nil, nil, fmt.Errorf("%w: application %s already has a card", domain.ErrAlreadyIssued, app.ApplicationNo)
	}
	if app.State != domain.AppStateApproved {
		return nil, nil, fmt.Errorf("%w: application %s is %s", domain.ErrNotApproved, app.ApplicationNo, app.State)
	}

	number, err := s.allocator.Allocate(ctx, domain.KindCard)
	if err != nil {
		s.metrics.IncAllocationFailed(domain.KindCard.String())
		return nil, nil, err
	}

	now := s.now().UTC()
	expiry := now.AddDate(cardValidityYears, 0, 0)

	card := &domain.Card{
		ID:            s.newID(),
		CardNo:        number.String(),
		ApplicationID: app.ID,
		Status:        domain.CardStatusIssued,
		PanMasked:     maskedPAN(number),
		ExpiryMonth:   int(expiry.Month()),
		ExpiryYear:    expiry.Year(),
		IssuedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.cards.Create(ctx, card); err != nil {
		if isUniqueViolationError(err) {
			return nil, nil, fmt.Errorf("%w: application %s already has a card", domain.ErrAlreadyIssued, app.ApplicationNo)
		}
		return nil, nil, err
	}

	from := app.State
	if err := app.Transition(domain.AppStateIssued, now); err != nil {
		return nil, nil, err
	}
	app.CardID = &card.ID

	if err := s.apps.Update(ctx, app); err != nil {
		return nil, nil, err
	}

	changes := []domain.StatusChange{
		*newStatusChange(s.newID(), domain.EntityCard, card.ID, card.CardNo,
			"", card.Status.String(), "", now),
		*newStatusChange(s.newID(), domain.EntityApplication, app.ID, app.ApplicationNo,
			from.String(), app.State.String(), "", now),
	}
	for i := range changes {
		if err := s.history.Create(ctx, &changes[i]); err != nil {
			return nil, nil, err
		}
	}

	s.metrics.IncNumberAllocated(domain.KindCard.String())
	s.metrics.IncCardIssued()

	return card, changes, nil
}

// Event applies an operator lifecycle event to an issued card.
func (s *CardService) Event(ctx context.Context, id string, event domain.CardEvent, actor string) (*domain.Card, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: card id is required", domain.ErrValidation)
	}

	var (
		card   *domain.Card
		change *domain.StatusChange
	)
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		card, err = s.cards.GetByID(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}

		now := s.now().UTC()
		from := card.Status
		if err := card.ApplyEvent(event, now); err != nil {
			return err
		}

		if err := s.cards.Update(ctx, card); err != nil {
			return err
		}

		change = newStatusChange(s.newID(), domain.EntityCard, card.ID, card.CardNo,
			from.String(), card.Status.String(), actor, now)
		return s.history.Create(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	publishStatusChanges(ctx, s.publisher, s.logger, *change)

	return card, nil
}

func (s *CardService) GetByID(ctx context.Context, id string) (*domain.Card, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: card id is required", domain.ErrValidation)
	}
	return s.cards.GetByID(ctx, strings.TrimSpace(id))
}

func (s *CardService) List(ctx context.Context, page, pageSize int) ([]domain.Card, int64, error) {
	return s.cards.List(ctx, page, pageSize)
}

// History returns the audit trail of a card, oldest first.
func (s *CardService) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	card, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.history.ListByEntity(ctx, domain.EntityCard, card.ID)
}

// maskedPAN renders the demo card number shown on print forms. The last
// four digits come from the card sequence.
func maskedPAN(number domain.BusinessNumber) string {
	return fmt.Sprintf("**** **** **** %04d", number.Sequence%10000)
}

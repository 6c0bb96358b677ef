package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

func TestCardServiceEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     domain.CardStatus
		event      domain.CardEvent
		wantStatus domain.CardStatus
		wantErr    error
	}{
		{
			name:       "issued to delivered",
			status:     domain.CardStatusIssued,
			event:      domain.CardEventDelivered,
			wantStatus: domain.CardStatusDelivered,
		},
		{
			name:       "delivered to handed",
			status:     domain.CardStatusDelivered,
			event:      domain.CardEventHanded,
			wantStatus: domain.CardStatusHanded,
		},
		{
			name:       "handed to activated",
			status:     domain.CardStatusHanded,
			event:      domain.CardEventActivated,
			wantStatus: domain.CardStatusActivated,
		},
		{
			name:       "activated to closed",
			status:     domain.CardStatusActivated,
			event:      domain.CardEventClosed,
			wantStatus: domain.CardStatusClosed,
		},
		{
			name:    "skip delivery",
			status:  domain.CardStatusIssued,
			event:   domain.CardEventActivated,
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "reopen closed card",
			status:  domain.CardStatusClosed,
			event:   domain.CardEventDelivered,
			wantErr: domain.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var updated *domain.Card
			cards := &fakeCardRepo{
				getByIDFn: func(ctx context.Context, id string) (*domain.Card, error) {
					return &domain.Card{
						ID:     "card-1",
						CardNo: "CARD-2024-000001",
						Status: tt.status,
					}, nil
				},
				updateFn: func(ctx context.Context, c *domain.Card) error {
					updated = c
					return nil
				},
			}
			history := &fakeHistoryRepo{}
			publisher := &fakeEventPublisher{}

			svc := newTestCardService(t, cards, history, publisher)

			card, err := svc.Event(context.Background(), "card-1", tt.event, "courier-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if updated != nil {
					t.Fatal("Update should not run for an invalid transition")
				}
				return
			}
			if err != nil {
				t.Fatalf("Event() error = %v", err)
			}

			if card.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", card.Status, tt.wantStatus)
			}
			if len(history.changes) != 1 {
				t.Fatalf("history = %d rows, want 1", len(history.changes))
			}
			if history.changes[0].FromStatus != tt.status.String() || history.changes[0].ToStatus != tt.wantStatus.String() {
				t.Errorf("history = %s -> %s, want %s -> %s",
					history.changes[0].FromStatus, history.changes[0].ToStatus, tt.status, tt.wantStatus)
			}
			if history.changes[0].ChangedBy != "courier-1" {
				t.Errorf("ChangedBy = %q, want courier-1", history.changes[0].ChangedBy)
			}
			if len(publisher.published) != 1 {
				t.Fatalf("published = %d events, want 1", len(publisher.published))
			}
		})
	}
}

func TestCardServiceEventStampsTimestamp(t *testing.T) {
	t.Parallel()

	cards := &fakeCardRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Card, error) {
			return &domain.Card{ID: "card-1", CardNo: "CARD-2024-000001", Status: domain.CardStatusIssued}, nil
		},
	}

	svc := newTestCardService(t, cards, &fakeHistoryRepo{}, nil)

	card, err := svc.Event(context.Background(), "card-1", domain.CardEventDelivered, "courier-1")
	if err != nil {
		t.Fatalf("Event() error = %v", err)
	}
	if card.DeliveredAt == nil {
		t.Fatal("DeliveredAt should be stamped")
	}
}

func TestCardServiceEventNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestCardService(t, &fakeCardRepo{}, &fakeHistoryRepo{}, nil)

	_, err := svc.Event(context.Background(), "missing", domain.CardEventDelivered, "courier-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCardServiceIssueGuards(t *testing.T) {
	t.Parallel()

	cardID := "card-existing"
	tests := []struct {
		name    string
		app     domain.Application
		wantErr error
	}{
		{
			name:    "not approved",
			app:     domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateUnderReview},
			wantErr: domain.ErrNotApproved,
		},
		{
			name:    "already issued state",
			app:     domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateIssued},
			wantErr: domain.ErrAlreadyIssued,
		},
		{
			name:    "card already linked",
			app:     domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateApproved, CardID: &cardID},
			wantErr: domain.ErrAlreadyIssued,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newTestCardService(t, &fakeCardRepo{}, &fakeHistoryRepo{}, nil)

			app := tt.app
			_, _, err := svc.issue(context.Background(), &app)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCardServiceIssueDuplicateCard(t *testing.T) {
	t.Parallel()

	cards := &fakeCardRepo{
		createFn: func(ctx context.Context, c *domain.Card) error {
			return errors.New(`duplicate key value violates unique constraint "idx_cards_application_id"`)
		},
	}

	svc := newTestCardService(t, cards, &fakeHistoryRepo{}, nil)

	app := domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateApproved}
	_, _, err := svc.issue(context.Background(), &app)
	if !errors.Is(err, domain.ErrAlreadyIssued) {
		t.Fatalf("err = %v, want ErrAlreadyIssued", err)
	}
}

func TestMaskedPAN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sequence int64
		want     string
	}{
		{1, "**** **** **** 0001"},
		{42, "**** **** **** 0042"},
		{9999, "**** **** **** 9999"},
		{10001, "**** **** **** 0001"},
	}

	for _, tt := range tests {
		got := maskedPAN(domain.BusinessNumber{Kind: domain.KindCard, Year: 2024, Sequence: tt.sequence})
		if got != tt.want {
			t.Errorf("maskedPAN(%d) = %q, want %q", tt.sequence, got, tt.want)
		}
	}
}

func newTestCardService(t *testing.T, cards *fakeCardRepo, history *fakeHistoryRepo, publisher *fakeEventPublisher) *CardService {
	t.Helper()

	svc, err := NewCardService(&fakeTxManager{}, cards, &fakeAppRepo{
		updateFn: func(ctx context.Context, a *domain.Application) error { return nil },
	}, history, newSeqAllocator(), eventPublisherOrNil(publisher), nil, nil)
	if err != nil {
		t.Fatalf("NewCardService() error = %v", err)
	}
	return svc
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/events"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
)

func TestBatchServiceCreate(t *testing.T) {
	t.Parallel()

	var created *domain.Batch
	batches := &fakeBatchRepo{
		createFn: func(ctx context.Context, b *domain.Batch) error {
			created = b
			return nil
		},
	}
	history := &fakeHistoryRepo{}

	svc := newTestBatchService(t, batches, &fakeAppRepo{}, &fakeCardRepo{}, history, newSeqAllocator(), nil, nil)

	batch, err := svc.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if batch.BatchNo != "BAT-2024-000001" {
		t.Errorf("BatchNo = %q, want BAT-2024-000001", batch.BatchNo)
	}
	if batch.Status != domain.BatchStatusOpen {
		t.Errorf("Status = %s, want OPEN", batch.Status)
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if len(history.changes) != 1 || history.changes[0].ToStatus != "OPEN" {
		t.Fatalf("history = %+v, want one OPEN row", history.changes)
	}
}

func TestBatchServiceAddApplications(t *testing.T) {
	t.Parallel()

	otherBatch := "batch-other"
	tests := []struct {
		name        string
		batchStatus domain.BatchStatus
		app         domain.Application
		wantErr     error
	}{
		{
			name:        "submitted member joins open batch",
			batchStatus: domain.BatchStatusOpen,
			app:         domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateSubmitted},
		},
		{
			name:        "batch no longer open",
			batchStatus: domain.BatchStatusProcessing,
			app:         domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateSubmitted},
			wantErr:     domain.ErrInvalidMembership,
		},
		{
			name:        "member already in another batch",
			batchStatus: domain.BatchStatusOpen,
			app:         domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateSubmitted, BatchID: &otherBatch},
			wantErr:     domain.ErrInvalidMembership,
		},
		{
			name:        "member already decided",
			batchStatus: domain.BatchStatusOpen,
			app:         domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateApproved},
			wantErr:     domain.ErrInvalidMembership,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var item *domain.BatchItem
			batches := &fakeBatchRepo{
				getByIDFn: func(ctx context.Context, id string) (*domain.Batch, error) {
					return &domain.Batch{ID: id, BatchNo: "BAT-2024-000001", Status: tt.batchStatus}, nil
				},
				addItemFn: func(ctx context.Context, i *domain.BatchItem) error {
					item = i
					return nil
				},
			}
			apps := &fakeAppRepo{
				getByIDFn: func(ctx context.Context, id string) (*domain.Application, error) {
					snapshot := tt.app
					return &snapshot, nil
				},
			}

			svc := newTestBatchService(t, batches, apps, &fakeCardRepo{}, &fakeHistoryRepo{}, newSeqAllocator(), nil, nil)

			added, err := svc.AddApplications(context.Background(), "batch-1", []string{"app-1"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddApplications() error = %v", err)
			}

			if len(added) != 1 {
				t.Fatalf("added = %d members, want 1", len(added))
			}
			if added[0].BatchID == nil || *added[0].BatchID != "batch-1" {
				t.Errorf("BatchID = %v, want batch-1", added[0].BatchID)
			}
			if item == nil || item.Position != 1 {
				t.Fatalf("item = %+v, want position 1", item)
			}
		})
	}
}

func TestBatchServiceAddApplicationsKeepsOrder(t *testing.T) {
	t.Parallel()

	var positions []int
	batches := &fakeBatchRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			return &domain.Batch{ID: id, BatchNo: "BAT-2024-000001", Status: domain.BatchStatusOpen}, nil
		},
		countItemsFn: func(ctx context.Context, batchID string) (int, error) {
			return 2, nil
		},
		addItemFn: func(ctx context.Context, item *domain.BatchItem) error {
			positions = append(positions, item.Position)
			return nil
		},
	}
	apps := &fakeAppRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Application, error) {
			return &domain.Application{ID: id, ApplicationNo: "APP-2024-00000" + id[len(id)-1:], State: domain.AppStateSubmitted}, nil
		},
	}

	svc := newTestBatchService(t, batches, apps, &fakeCardRepo{}, &fakeHistoryRepo{}, newSeqAllocator(), nil, nil)

	added, err := svc.AddApplications(context.Background(), "batch-1", []string{"app-3", "app-4"})
	if err != nil {
		t.Fatalf("AddApplications() error = %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("added = %d members, want 2", len(added))
	}
	if len(positions) != 2 || positions[0] != 3 || positions[1] != 4 {
		t.Fatalf("positions = %v, want [3 4]", positions)
	}
}

func TestBatchServiceStartProcessing(t *testing.T) {
	t.Parallel()

	store := newBatchStore("batch-1", domain.BatchStatusOpen,
		domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateSubmitted},
		domain.Application{ID: "app-2", ApplicationNo: "APP-2024-000002", State: domain.AppStateDraft},
		domain.Application{ID: "app-3", ApplicationNo: "APP-2024-000003", State: domain.AppStateSubmitted},
	)
	history := &fakeHistoryRepo{}
	publisher := &fakeEventPublisher{}

	svc := newTestBatchService(t, store.batches(), store.apps(), &fakeCardRepo{}, history, newSeqAllocator(), nil, publisher)

	report, err := svc.StartProcessing(context.Background(), "batch-1", "operator-1")
	if err != nil {
		t.Fatalf("StartProcessing() error = %v", err)
	}

	if len(report.Started) != 2 {
		t.Fatalf("Started = %v, want 2 members", report.Started)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].ApplicationNo != "APP-2024-000002" || report.Skipped[0].State != "DRAFT" {
		t.Fatalf("Skipped = %+v, want APP-2024-000002 in DRAFT", report.Skipped)
	}
	if store.batch.Status != domain.BatchStatusProcessing {
		t.Errorf("batch status = %s, want PROCESSING", store.batch.Status)
	}
	if got := store.members["app-1"].State; got != domain.AppStateUnderReview {
		t.Errorf("app-1 state = %s, want UNDER_REVIEW", got)
	}
	if got := store.members["app-2"].State; got != domain.AppStateDraft {
		t.Errorf("app-2 state = %s, want DRAFT untouched", got)
	}
	// Two member transitions plus the batch transition.
	if len(history.changes) != 3 {
		t.Fatalf("history = %d rows, want 3", len(history.changes))
	}
	if len(publisher.published) != 3 {
		t.Fatalf("published = %d events, want 3", len(publisher.published))
	}
}

func TestBatchServiceStartProcessingRequiresOpen(t *testing.T) {
	t.Parallel()

	store := newBatchStore("batch-1", domain.BatchStatusProcessing)
	svc := newTestBatchService(t, store.batches(), store.apps(), &fakeCardRepo{}, &fakeHistoryRepo{}, newSeqAllocator(), nil, nil)

	_, err := svc.StartProcessing(context.Background(), "batch-1", "operator-1")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestBatchServiceApproveNotReady(t *testing.T) {
	t.Parallel()

	store := newBatchStore("batch-1", domain.BatchStatusProcessing,
		domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateApproved},
		domain.Application{ID: "app-2", ApplicationNo: "APP-2024-000002", State: domain.AppStateUnderReview},
	)
	svc := newTestBatchService(t, store.batches(), store.apps(), &fakeCardRepo{}, &fakeHistoryRepo{}, newSeqAllocator(), nil, nil)

	_, err := svc.Approve(context.Background(), "batch-1", "reviewer-1")
	if !errors.Is(err, domain.ErrBatchNotReady) {
		t.Fatalf("err = %v, want ErrBatchNotReady", err)
	}
	if !strings.Contains(err.Error(), "APP-2024-000002") {
		t.Fatalf("err = %v, want the pending application number listed", err)
	}
	if store.batch.Status != domain.BatchStatusProcessing {
		t.Errorf("batch status = %s, want PROCESSING untouched", store.batch.Status)
	}
}

func TestBatchServiceApprove(t *testing.T) {
	t.Parallel()

	store := newBatchStore("batch-1", domain.BatchStatusProcessing,
		domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateApproved},
		domain.Application{ID: "app-2", ApplicationNo: "APP-2024-000002", State: domain.AppStateRejected},
		domain.Application{ID: "app-3", ApplicationNo: "APP-2024-000003", State: domain.AppStateApproved},
	)
	cards := &fakeCardRepo{
		createFn: func(ctx context.Context, c *domain.Card) error {
			store.cards = append(store.cards, *c)
			return nil
		},
	}
	history := &fakeHistoryRepo{}
	documents := &fakeDocuments{}
	publisher := &fakeEventPublisher{}

	svc := newTestBatchService(t, store.batches(), store.apps(), cards, history, newSeqAllocator(), documents, publisher)

	summary, err := svc.Approve(context.Background(), "batch-1", "reviewer-1")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	if len(summary.Issued) != 2 {
		t.Fatalf("Issued = %+v, want 2 cards", summary.Issued)
	}
	if summary.Issued[0].CardNo != "CARD-2024-000001" || summary.Issued[1].CardNo != "CARD-2024-000002" {
		t.Errorf("card numbers = %s, %s, want CARD-2024-000001 and CARD-2024-000002 in member order",
			summary.Issued[0].CardNo, summary.Issued[1].CardNo)
	}
	if summary.Issued[0].ApplicationNo != "APP-2024-000001" || summary.Issued[1].ApplicationNo != "APP-2024-000003" {
		t.Errorf("issued members = %+v, want approved members in submission order", summary.Issued)
	}
	if len(summary.Rejected) != 1 || summary.Rejected[0] != "APP-2024-000002" {
		t.Errorf("Rejected = %v, want [APP-2024-000002]", summary.Rejected)
	}
	if len(summary.Failed) != 0 {
		t.Errorf("Failed = %+v, want none", summary.Failed)
	}
	if summary.Status != domain.BatchStatusApproved.String() {
		t.Errorf("summary status = %s, want APPROVED", summary.Status)
	}

	if store.batch.Status != domain.BatchStatusApproved {
		t.Errorf("batch status = %s, want APPROVED", store.batch.Status)
	}
	if store.batch.ApprovedAt == nil {
		t.Error("ApprovedAt should be stamped")
	}
	if got := store.members["app-1"].State; got != domain.AppStateIssued {
		t.Errorf("app-1 state = %s, want ISSUED", got)
	}
	if got := store.members["app-2"].State; got != domain.AppStateRejected {
		t.Errorf("app-2 state = %s, want REJECTED untouched", got)
	}
	if len(store.cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(store.cards))
	}
	if store.cards[0].PanMasked != "**** **** **** 0001" {
		t.Errorf("PanMasked = %q, want **** **** **** 0001", store.cards[0].PanMasked)
	}
}

func TestBatchServiceApprovePartialFailure(t *testing.T) {
	t.Parallel()

	store := newBatchStore("batch-1", domain.BatchStatusProcessing,
		domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateApproved},
		domain.Application{ID: "app-2", ApplicationNo: "APP-2024-000002", State: domain.AppStateApproved},
	)
	cards := &fakeCardRepo{
		createFn: func(ctx context.Context, c *domain.Card) error {
			if c.ApplicationID == "app-2" {
				return errors.New("insert failed")
			}
			store.cards = append(store.cards, *c)
			return nil
		},
	}

	svc := newTestBatchService(t, store.batches(), store.apps(), cards, &fakeHistoryRepo{}, newSeqAllocator(), nil, nil)

	summary, err := svc.Approve(context.Background(), "batch-1", "reviewer-1")
	if err == nil {
		t.Fatal("expected a partial failure error")
	}
	if summary == nil {
		t.Fatal("summary should accompany the partial failure")
	}

	if len(summary.Issued) != 1 || summary.Issued[0].ApplicationNo != "APP-2024-000001" {
		t.Fatalf("Issued = %+v, want APP-2024-000001 only", summary.Issued)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].ApplicationNo != "APP-2024-000002" {
		t.Fatalf("Failed = %+v, want APP-2024-000002", summary.Failed)
	}
	if store.batch.Status != domain.BatchStatusApproved {
		t.Errorf("batch status = %s, want APPROVED despite the failed member", store.batch.Status)
	}
	if summary.Status != domain.BatchStatusApproved.String() {
		t.Errorf("summary status = %s, want APPROVED", summary.Status)
	}
}

func TestBatchServiceApproveBatchUpdateFailure(t *testing.T) {
	t.Parallel()

	store := newBatchStore("batch-1", domain.BatchStatusProcessing,
		domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateApproved},
	)
	batches := store.batches()
	batches.updateFn = func(ctx context.Context, b *domain.Batch) error {
		if b.Status == domain.BatchStatusApproved {
			return errors.New("update failed")
		}
		store.batch = b
		return nil
	}

	svc := newTestBatchService(t, batches, store.apps(), &fakeCardRepo{}, &fakeHistoryRepo{}, newSeqAllocator(), nil, nil)

	summary, err := svc.Approve(context.Background(), "batch-1", "reviewer-1")
	if err == nil {
		t.Fatal("expected an error when the batch row cannot be updated")
	}
	if summary == nil {
		t.Fatal("summary should accompany the batch update failure")
	}

	if len(summary.Issued) != 1 {
		t.Fatalf("Issued = %+v, want 1 card", summary.Issued)
	}
	if summary.Status != domain.BatchStatusProcessing.String() {
		t.Errorf("summary status = %s, want PROCESSING while the row is unchanged", summary.Status)
	}
	if store.batch.Status != domain.BatchStatusProcessing {
		t.Errorf("batch status = %s, want PROCESSING", store.batch.Status)
	}
}

func TestBatchServiceApproveContractWarning(t *testing.T) {
	t.Parallel()

	store := newBatchStore("batch-1", domain.BatchStatusProcessing,
		domain.Application{ID: "app-1", ApplicationNo: "APP-2024-000001", State: domain.AppStateApproved},
	)
	documents := &fakeDocuments{
		contractFn: func(ctx context.Context, app domain.Application, card domain.Card) (*domain.DocumentHandle, error) {
			return nil, domain.ErrDocumentGeneration
		},
	}

	svc := newTestBatchService(t, store.batches(), store.apps(), &fakeCardRepo{}, &fakeHistoryRepo{}, newSeqAllocator(), documents, nil)

	summary, err := svc.Approve(context.Background(), "batch-1", "reviewer-1")
	if err != nil {
		t.Fatalf("Approve() error = %v, contract failure is a warning only", err)
	}
	if len(summary.Issued) != 1 {
		t.Fatalf("Issued = %+v, want 1 card", summary.Issued)
	}
	if len(summary.DocumentWarnings) != 1 || !strings.Contains(summary.DocumentWarnings[0], "APP-2024-000001") {
		t.Fatalf("DocumentWarnings = %v, want one warning for APP-2024-000001", summary.DocumentWarnings)
	}
}

func TestBatchServiceClose(t *testing.T) {
	t.Parallel()

	store := newBatchStore("batch-1", domain.BatchStatusOpen)
	history := &fakeHistoryRepo{}

	svc := newTestBatchService(t, store.batches(), store.apps(), &fakeCardRepo{}, history, newSeqAllocator(), nil, nil)

	batch, err := svc.Close(context.Background(), "batch-1", "operator-1")
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if batch.Status != domain.BatchStatusClosed || batch.ClosedAt == nil {
		t.Fatalf("batch = %+v, want CLOSED with ClosedAt", batch)
	}
	if len(history.changes) != 1 {
		t.Fatalf("history = %d rows, want 1", len(history.changes))
	}

	// Closing again is a no-op.
	if _, err := svc.Close(context.Background(), "batch-1", "operator-1"); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if len(history.changes) != 1 {
		t.Fatalf("history = %d rows after repeat close, want 1", len(history.changes))
	}
}

// batchStore keeps one batch and its members in memory so multi-step
// workflow tests observe persisted state across repository calls.
type batchStore struct {
	batch   *domain.Batch
	members map[string]*domain.Application
	order   []string
	cards   []domain.Card
}

func newBatchStore(batchID string, status domain.BatchStatus, members ...domain.Application) *batchStore {
	s := &batchStore{
		batch:   &domain.Batch{ID: batchID, BatchNo: "BAT-2024-000001", Status: status},
		members: make(map[string]*domain.Application),
	}
	for i := range members {
		m := members[i]
		m.BatchID = &s.batch.ID
		s.members[m.ID] = &m
		s.order = append(s.order, m.ID)
	}
	return s
}

func (s *batchStore) batches() *fakeBatchRepo {
	return &fakeBatchRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			if id != s.batch.ID {
				return nil, domain.ErrNotFound
			}
			snapshot := *s.batch
			return &snapshot, nil
		},
		updateFn: func(ctx context.Context, b *domain.Batch) error {
			s.batch = b
			return nil
		},
	}
}

func (s *batchStore) apps() *fakeAppRepo {
	return &fakeAppRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Application, error) {
			m, ok := s.members[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			snapshot := *m
			return &snapshot, nil
		},
		listByBatchFn: func(ctx context.Context, batchID string) ([]domain.Application, error) {
			out := make([]domain.Application, 0, len(s.order))
			for _, id := range s.order {
				out = append(out, *s.members[id])
			}
			return out, nil
		},
		updateFn: func(ctx context.Context, a *domain.Application) error {
			snapshot := *a
			s.members[a.ID] = &snapshot
			return nil
		},
	}
}

func newTestBatchService(
	t *testing.T,
	batches repository.BatchRepository,
	apps repository.ApplicationRepository,
	cards repository.CardRepository,
	history repository.HistoryRepository,
	allocator NumberAllocator,
	documents DocumentTrigger,
	publisher *fakeEventPublisher,
) *BatchService {
	t.Helper()

	cardSvc, err := NewCardService(&fakeTxManager{}, cards, apps, history, allocator, eventPublisherOrNil(publisher), nil, nil)
	if err != nil {
		t.Fatalf("NewCardService() error = %v", err)
	}

	svc, err := NewBatchService(&fakeTxManager{}, batches, apps, cardSvc, history, allocator, documents, eventPublisherOrNil(publisher), nil, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}
	return svc
}

func eventPublisherOrNil(pub *fakeEventPublisher) events.Publisher {
	if pub == nil {
		return nil
	}
	return pub
}

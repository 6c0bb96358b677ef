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

// BatchService coordinates bulk review and issuance. It is the only path
// to card issuance: Approve fans out over approved members and calls the
// card service's unexported issue step per member.
type BatchService struct {
	tx        repository.TxManager
	batches   repository.BatchRepository
	apps      repository.ApplicationRepository
	cardSvc   *CardService
	history   repository.HistoryRepository
	allocator NumberAllocator
	documents DocumentTrigger
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// SkippedMember reports a batch member that could not enter review.
type SkippedMember struct {
	ApplicationNo string `json:"applicationNo"`
	State         string `json:"state"`
}

// StartReport summarizes a StartProcessing run. Skipped members stay in
// their current state; the batch still moves to PROCESSING.
type StartReport struct {
	BatchNo string          `json:"batchNo"`
	Started []string        `json:"started"`
	Skipped []SkippedMember `json:"skipped,omitempty"`
}

// IssuedCard pairs a member with the card minted for it.
type IssuedCard struct {
	ApplicationNo string `json:"applicationNo"`
	CardNo        string `json:"cardNo"`
}

// MemberFailure reports a member whose issuance failed during Approve.
type MemberFailure struct {
	ApplicationNo string `json:"applicationNo"`
	Reason        string `json:"reason"`
}

// ApprovalSummary is the result of a batch approval fan-out. Status
// reflects the batch status persisted by the run, so a failed batch
// update still reports PROCESSING.
type ApprovalSummary struct {
	BatchNo          string          `json:"batchNo"`
	Status           string          `json:"status"`
	Issued           []IssuedCard    `json:"issued"`
	Rejected         []string        `json:"rejected,omitempty"`
	Failed           []MemberFailure `json:"failed,omitempty"`
	DocumentWarnings []string        `json:"documentWarnings,omitempty"`
}

// BatchDetail is a batch with its members in submission order.
type BatchDetail struct {
	Batch   domain.Batch
	Members []domain.Application
}

// BatchListing is one row of the batch list with aggregate counts.
type BatchListing struct {
	Batch       domain.Batch
	MemberCount int
	CardCount   int
}

func NewBatchService(
	tx repository.TxManager,
	batches repository.BatchRepository,
	apps repository.ApplicationRepository,
	cardSvc *CardService,
	history repository.HistoryRepository,
	allocator NumberAllocator,
	documents DocumentTrigger,
	publisher events.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*BatchService, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx manager is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if apps == nil {
		return nil, fmt.Errorf("application repository is required")
	}
	if cardSvc == nil {
		return nil, fmt.Errorf("card service is required")
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

	return &BatchService{
		tx:        tx,
		batches:   batches,
		apps:      apps,
		cardSvc:   cardSvc,
		history:   history,
		allocator: allocator,
		documents: documents,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Create opens a new batch with its business number.
func (s *BatchService) Create(ctx context.Context) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now().UTC()
	batch := &domain.Batch{
		ID:        s.newID(),
		Status:    domain.BatchStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var change *domain.StatusChange
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		number, err := s.allocator.Allocate(ctx, domain.KindBatch)
		if err != nil {
			s.metrics.IncAllocationFailed(domain.KindBatch.String())
			return err
		}
		batch.BatchNo = number.String()

		if err := s.batches.Create(ctx, batch); err != nil {
			return err
		}

		change = newStatusChange(s.newID(), domain.EntityBatch, batch.ID, batch.BatchNo,
			"", batch.Status.String(), "", now)
		return s.history.Create(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncNumberAllocated(domain.KindBatch.String())
	s.metrics.IncBatchOperation("create")
	publishStatusChanges(ctx, s.publisher, s.logger, *change)

	return batch, nil
}

// AddApplications attaches applications to an open batch in the given
// order. The whole add is one transaction; any membership violation rolls
// back every attachment.
func (s *BatchService) AddApplications(ctx context.Context, batchID string, applicationIDs []string) ([]domain.Application, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if len(applicationIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one application id is required", domain.ErrValidation)
	}

	var added []domain.Application
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		batch, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID))
		if err != nil {
			return err
		}
		if !batch.AcceptsMembers() {
			return fmt.Errorf("%w: batch %s is %s", domain.ErrInvalidMembership, batch.BatchNo, batch.Status)
		}

		position, err := s.batches.CountItems(ctx, batch.ID)
		if err != nil {
			return err
		}

		added = make([]domain.Application, 0, len(applicationIDs))
		now := s.now().UTC()
		for _, appID := range applicationIDs {
			app, err := s.apps.GetByID(ctx, strings.TrimSpace(appID))
			if err != nil {
				return err
			}

			if app.BatchID != nil {
				return fmt.Errorf("%w: application %s already belongs to a batch", domain.ErrInvalidMembership, app.ApplicationNo)
			}
			if app.State.IsDecided() {
				return fmt.Errorf("%w: application %s is already %s", domain.ErrInvalidMembership, app.ApplicationNo, app.State)
			}

			position++
			item := &domain.BatchItem{
				ID:            s.newID(),
				BatchID:       batch.ID,
				ApplicationID: app.ID,
				Position:      position,
				CreatedAt:     now,
			}
			if err := s.batches.AddItem(ctx, item); err != nil {
				if isUniqueViolationError(err) {
					return fmt.Errorf("%w: application %s already belongs to a batch", domain.ErrInvalidMembership, app.ApplicationNo)
				}
				return err
			}

			app.BatchID = &batch.ID
			app.UpdatedAt = now
			if err := s.apps.Update(ctx, app); err != nil {
				return err
			}

			added = append(added, *app)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncBatchOperation("add_members")
	return added, nil
}

// RemoveApplication detaches a member from an open batch.
func (s *BatchService) RemoveApplication(ctx context.Context, batchID, applicationID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(batchID) == "" || strings.TrimSpace(applicationID) == "" {
		return fmt.Errorf("%w: batch id and application id are required", domain.ErrValidation)
	}

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		batch, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID))
		if err != nil {
			return err
		}
		if !batch.AcceptsMembers() {
			return fmt.Errorf("%w: batch %s is %s", domain.ErrInvalidMembership, batch.BatchNo, batch.Status)
		}

		if err := s.batches.RemoveItem(ctx, batch.ID, strings.TrimSpace(applicationID)); err != nil {
			return err
		}

		app, err := s.apps.GetByID(ctx, strings.TrimSpace(applicationID))
		if err != nil {
			return err
		}
		app.BatchID = nil
		app.UpdatedAt = s.now().UTC()
		return s.apps.Update(ctx, app)
	})
	if err != nil {
		return err
	}

	s.metrics.IncBatchOperation("remove_member")
	return nil
}

// StartProcessing moves every SUBMITTED member into review. Members in
// another state are skipped and reported; they never abort the batch.
func (s *BatchService) StartProcessing(ctx context.Context, batchID, actor string) (*StartReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	var (
		report  *StartReport
		changes []domain.StatusChange
	)
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		batch, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID))
		if err != nil {
			return err
		}
		if batch.Status != domain.BatchStatusOpen {
			return fmt.Errorf("%w: batch %s cannot start processing from %s",
				domain.ErrInvalidTransition, batch.BatchNo, batch.Status)
		}

		members, err := s.apps.ListByBatch(ctx, batch.ID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		report = &StartReport{BatchNo: batch.BatchNo}
		changes = changes[:0]

		for i := range members {
			member := &members[i]
			if member.State != domain.AppStateSubmitted {
				report.Skipped = append(report.Skipped, SkippedMember{
					ApplicationNo: member.ApplicationNo,
					State:         member.State.String(),
				})
				s.logger.Warn("batch member skipped at processing start",
					zap.String("batchNo", batch.BatchNo),
					zap.String("applicationNo", member.ApplicationNo),
					zap.String("state", member.State.String()),
				)
				continue
			}

			from := member.State
			if err := member.Transition(domain.AppStateUnderReview, now); err != nil {
				return err
			}
			if err := s.apps.Update(ctx, member); err != nil {
				return err
			}

			changes = append(changes, *newStatusChange(s.newID(), domain.EntityApplication,
				member.ID, member.ApplicationNo, from.String(), member.State.String(), actor, now))
			report.Started = append(report.Started, member.ApplicationNo)
		}

		from := batch.Status
		batch.Status = domain.BatchStatusProcessing
		batch.UpdatedAt = now
		if err := s.batches.Update(ctx, batch); err != nil {
			return err
		}
		changes = append(changes, *newStatusChange(s.newID(), domain.EntityBatch,
			batch.ID, batch.BatchNo, from.String(), batch.Status.String(), actor, now))

		for i := range changes {
			if err := s.history.Create(ctx, &changes[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncBatchOperation("start")
	publishStatusChanges(ctx, s.publisher, s.logger, changes...)

	return report, nil
}

// Approve requires every member to be decided, then issues a card for
// each approved member. Each member's issuance runs in its own
// transaction; one member's failure never blocks the others. The batch is
// approved even when some members fail, and a non-nil error alongside the
// summary marks the partial failure.
func (s *BatchService) Approve(ctx context.Context, batchID, actor string) (*ApprovalSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID))
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusProcessing {
		return nil, fmt.Errorf("%w: batch %s cannot be approved from %s",
			domain.ErrInvalidTransition, batch.BatchNo, batch.Status)
	}

	members, err := s.apps.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	var pending []string
	for i := range members {
		if !members[i].State.IsDecided() {
			pending = append(pending, members[i].ApplicationNo)
		}
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: batch %s has undecided members: %s",
			domain.ErrBatchNotReady, batch.BatchNo, strings.Join(pending, ", "))
	}

	summary := &ApprovalSummary{BatchNo: batch.BatchNo, Status: batch.Status.String()}

	// Members are issued in submission order so card numbers follow
	// batch order.
	for i := range members {
		member := &members[i]
		switch member.State {
		case domain.AppStateRejected:
			summary.Rejected = append(summary.Rejected, member.ApplicationNo)
			continue
		case domain.AppStateIssued:
			continue
		}

		var (
			card    *domain.Card
			changes []domain.StatusChange
		)
		issueErr := s.tx.Do(ctx, func(ctx context.Context) error {
			var err error
			card, changes, err = s.cardSvc.issue(ctx, member)
			return err
		})
		if issueErr != nil {
			s.logger.Error("batch member issuance failed",
				zap.String("batchNo", batch.BatchNo),
				zap.String("applicationNo", member.ApplicationNo),
				zap.Error(issueErr),
			)
			summary.Failed = append(summary.Failed, MemberFailure{
				ApplicationNo: member.ApplicationNo,
				Reason:        issueErr.Error(),
			})
			continue
		}

		publishStatusChanges(ctx, s.publisher, s.logger, changes...)
		summary.Issued = append(summary.Issued, IssuedCard{
			ApplicationNo: member.ApplicationNo,
			CardNo:        card.CardNo,
		})

		if warn := s.requestContract(ctx, *member, *card); warn != "" {
			summary.DocumentWarnings = append(summary.DocumentWarnings, warn)
		}
	}

	now := s.now().UTC()
	from := batch.Status
	batch.Status = domain.BatchStatusApproved
	batch.ApprovedAt = &now
	batch.UpdatedAt = now

	var batchChange *domain.StatusChange
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if err := s.batches.Update(ctx, batch); err != nil {
			return err
		}
		batchChange = newStatusChange(s.newID(), domain.EntityBatch, batch.ID, batch.BatchNo,
			from.String(), batch.Status.String(), actor, now)
		return s.history.Create(ctx, batchChange)
	})
	if err != nil {
		return summary, err
	}
	summary.Status = batch.Status.String()

	s.metrics.IncBatchOperation("approve")
	publishStatusChanges(ctx, s.publisher, s.logger, *batchChange)

	if len(summary.Failed) > 0 {
		s.logger.Warn("batch approved with partial failure",
			zap.String("batchNo", batch.BatchNo),
			zap.Int("failed", len(summary.Failed)),
			zap.Int("issued", len(summary.Issued)),
		)
		return summary, fmt.Errorf("batch %s approved with partial failure: %d member(s) failed",
			batch.BatchNo, len(summary.Failed))
	}

	return summary, nil
}

func (s *BatchService) requestContract(ctx context.Context, app domain.Application, card domain.Card) string {
	if s.documents == nil {
		return ""
	}

	start := s.now()
	_, err := s.documents.Contract(ctx, app, card)
	s.metrics.ObserveRenderDuration(domain.DocumentContract.String(), s.now().Sub(start))
	if err != nil {
		s.metrics.IncDocumentRequested(domain.DocumentContract.String(), "error")
		s.logger.Warn("contract request failed after issuance",
			zap.String("applicationNo", app.ApplicationNo),
			zap.String("cardNo", card.CardNo),
			zap.Error(err),
		)
		return fmt.Sprintf("contract for %s: %v", app.ApplicationNo, err)
	}

	s.metrics.IncDocumentRequested(domain.DocumentContract.String(), "ok")
	return ""
}

// Close freezes a batch. Closing an already closed batch is a no-op.
func (s *BatchService) Close(ctx context.Context, batchID, actor string) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	var (
		batch  *domain.Batch
		change *domain.StatusChange
	)
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		batch, err = s.batches.GetByID(ctx, strings.TrimSpace(batchID))
		if err != nil {
			return err
		}
		if batch.Status == domain.BatchStatusClosed {
			return nil
		}

		now := s.now().UTC()
		from := batch.Status
		batch.Status = domain.BatchStatusClosed
		batch.ClosedAt = &now
		batch.UpdatedAt = now

		if err := s.batches.Update(ctx, batch); err != nil {
			return err
		}

		change = newStatusChange(s.newID(), domain.EntityBatch, batch.ID, batch.BatchNo,
			from.String(), batch.Status.String(), actor, now)
		return s.history.Create(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		s.metrics.IncBatchOperation("close")
		publishStatusChanges(ctx, s.publisher, s.logger, *change)
	}

	return batch, nil
}

// GetDetail returns a batch with its members in submission order.
func (s *BatchService) GetDetail(ctx context.Context, batchID string) (*BatchDetail, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, strings.TrimSpace(batchID))
	if err != nil {
		return nil, err
	}

	members, err := s.apps.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	return &BatchDetail{Batch: *batch, Members: members}, nil
}

// List returns batches with member and card counts.
func (s *BatchService) List(ctx context.Context, page, pageSize int) ([]BatchListing, int64, error) {
	batches, total, err := s.batches.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if len(batches) == 0 {
		return nil, total, nil
	}

	ids := make([]string, 0, len(batches))
	for i := range batches {
		ids = append(ids, batches[i].ID)
	}

	counts, err := s.batches.GetCounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]repository.BatchCounts, len(counts))
	for _, c := range counts {
		byID[c.BatchID] = c
	}

	listings := make([]BatchListing, 0, len(batches))
	for i := range batches {
		c := byID[batches[i].ID]
		listings = append(listings, BatchListing{
			Batch:       batches[i],
			MemberCount: c.MemberCount,
			CardCount:   c.CardCount,
		})
	}

	return listings, total, nil
}

package service

import (
	"context"
	"errors"
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

// ApplicationService runs the application side of the issuance workflow:
// draft creation with number allocation, submission, and review decisions.
// The ISSUED transition is not reachable here; only the batch approval
// fan-out issues cards.
type ApplicationService struct {
	tx        repository.TxManager
	apps      repository.ApplicationRepository
	cards     repository.CardRepository
	history   repository.HistoryRepository
	allocator NumberAllocator
	documents DocumentTrigger
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewApplicationService(
	tx repository.TxManager,
	apps repository.ApplicationRepository,
	cards repository.CardRepository,
	history repository.HistoryRepository,
	allocator NumberAllocator,
	documents DocumentTrigger,
	publisher events.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*ApplicationService, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx manager is required")
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

	return &ApplicationService{
		tx:        tx,
		apps:      apps,
		cards:     cards,
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

// CreateDraft persists a new application with its business number. The
// number allocation and the insert share one transaction, so a failed
// create consumes no number.
func (s *ApplicationService) CreateDraft(ctx context.Context, app *domain.Application) (*domain.Application, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if app == nil {
		return nil, fmt.Errorf("%w: application is required", domain.ErrValidation)
	}

	app.ApplicantName = strings.TrimSpace(app.ApplicantName)
	app.ApplicantRef = strings.TrimSpace(app.ApplicantRef)
	app.ProductCode = strings.ToUpper(strings.TrimSpace(app.ProductCode))
	if err := app.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	app.ID = s.newID()
	app.State = domain.AppStateDraft
	app.BatchID = nil
	app.CardID = nil
	app.CreatedAt = now
	app.UpdatedAt = now

	var change *domain.StatusChange
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		number, err := s.allocator.Allocate(ctx, domain.KindApplication)
		if err != nil {
			s.metrics.IncAllocationFailed(domain.KindApplication.String())
			return err
		}
		app.ApplicationNo = number.String()

		if err := s.apps.Create(ctx, app); err != nil {
			return err
		}

		change = newStatusChange(s.newID(), domain.EntityApplication, app.ID, app.ApplicationNo,
			"", domain.AppStateDraft.String(), "", now)
		return s.history.Create(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncNumberAllocated(domain.KindApplication.String())
	publishStatusChanges(ctx, s.publisher, s.logger, *change)

	return app, nil
}

// Submit moves a draft to SUBMITTED and fires the statement print request.
// The transition commits before the render call; a render failure comes
// back as ErrDocumentGeneration on an already submitted application.
func (s *ApplicationService) Submit(ctx context.Context, id string) (*domain.Application, *domain.DocumentHandle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, nil, fmt.Errorf("%w: application id is required", domain.ErrValidation)
	}

	var (
		app    *domain.Application
		change *domain.StatusChange
	)
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		app, err = s.apps.GetByID(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}

		now := s.now().UTC()

		if app.ApplicationNo == "" {
			number, err := s.allocator.Allocate(ctx, domain.KindApplication)
			if err != nil {
				s.metrics.IncAllocationFailed(domain.KindApplication.String())
				return err
			}
			app.ApplicationNo = number.String()
		}

		from := app.State
		if err := app.Transition(domain.AppStateSubmitted, now); err != nil {
			return err
		}
		app.SubmittedAt = &now

		if err := s.apps.Update(ctx, app); err != nil {
			return err
		}

		change = newStatusChange(s.newID(), domain.EntityApplication, app.ID, app.ApplicationNo,
			from.String(), app.State.String(), "", now)
		return s.history.Create(ctx, change)
	})
	if err != nil {
		return nil, nil, err
	}

	publishStatusChanges(ctx, s.publisher, s.logger, *change)

	handle, err := s.requestStatement(ctx, *app)
	if err != nil {
		return app, nil, err
	}

	return app, handle, nil
}

func (s *ApplicationService) requestStatement(ctx context.Context, app domain.Application) (*domain.DocumentHandle, error) {
	if s.documents == nil {
		return nil, nil
	}

	start := s.now()
	handle, err := s.documents.Statement(ctx, app)
	s.metrics.ObserveRenderDuration(domain.DocumentStatement.String(), s.now().Sub(start))
	if err != nil {
		s.metrics.IncDocumentRequested(domain.DocumentStatement.String(), "error")
		s.logger.Warn("statement request failed after submission",
			zap.String("applicationNo", app.ApplicationNo),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncDocumentRequested(domain.DocumentStatement.String(), "ok")
	return handle, nil
}

// Decide records the review verdict. An application can only be decided
// once; a rejection requires a reason.
func (s *ApplicationService) Decide(ctx context.Context, id string, outcome domain.DecisionOutcome, decidedBy, note string) (*domain.Application, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: application id is required", domain.ErrValidation)
	}
	if !outcome.IsValid() {
		return nil, fmt.Errorf("%w: decision must be APPROVE or REJECT, got %q", domain.ErrValidation, outcome)
	}
	decidedBy = strings.TrimSpace(decidedBy)
	if decidedBy == "" {
		return nil, fmt.Errorf("%w: decision requires an approver", domain.ErrValidation)
	}
	note = strings.TrimSpace(note)
	if outcome == domain.DecisionReject && note == "" {
		return nil, fmt.Errorf("%w: rejection requires a reason", domain.ErrValidation)
	}

	target := domain.AppStateApproved
	if outcome == domain.DecisionReject {
		target = domain.AppStateRejected
	}

	var (
		app    *domain.Application
		change *domain.StatusChange
	)
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		app, err = s.apps.GetByID(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}

		if app.State.IsDecided() {
			return fmt.Errorf("%w: application %s was already decided", domain.ErrInvalidTransition, app.ApplicationNo)
		}

		now := s.now().UTC()
		from := app.State
		if err := app.Transition(target, now); err != nil {
			return err
		}

		app.DecisionBy = &decidedBy
		app.DecisionNote = nil
		if note != "" {
			app.DecisionNote = &note
		}
		app.DecidedAt = &now

		if err := s.apps.Update(ctx, app); err != nil {
			return err
		}

		change = newStatusChange(s.newID(), domain.EntityApplication, app.ID, app.ApplicationNo,
			from.String(), app.State.String(), decidedBy, now)
		return s.history.Create(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDecision(string(outcome))
	publishStatusChanges(ctx, s.publisher, s.logger, *change)

	return app, nil
}

func (s *ApplicationService) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: application id is required", domain.ErrValidation)
	}
	return s.apps.GetByID(ctx, strings.TrimSpace(id))
}

func (s *ApplicationService) List(ctx context.Context, params repository.ListParams) ([]domain.Application, int64, error) {
	return s.apps.List(ctx, params)
}

// GetDocument returns the cached print handle for an application, asking
// the renderer again when the cache has expired.
func (s *ApplicationService) GetDocument(ctx context.Context, id string, kind domain.DocumentKind) (*domain.DocumentHandle, error) {
	if s.documents == nil {
		return nil, fmt.Errorf("%w: document rendering is not configured", domain.ErrNotFound)
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: invalid document kind %q", domain.ErrValidation, kind)
	}

	app, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	handle, err := s.documents.Lookup(ctx, app.ApplicationNo, kind)
	if err == nil {
		return handle, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	switch kind {
	case domain.DocumentStatement:
		if app.SubmittedAt == nil {
			return nil, fmt.Errorf("%w: application %s has no statement yet", domain.ErrNotFound, app.ApplicationNo)
		}
		return s.requestStatement(ctx, *app)
	case domain.DocumentContract:
		if s.cards == nil {
			return nil, fmt.Errorf("%w: application %s has no contract yet", domain.ErrNotFound, app.ApplicationNo)
		}
		card, err := s.cards.GetByApplicationID(ctx, app.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: application %s has no contract yet", domain.ErrNotFound, app.ApplicationNo)
			}
			return nil, err
		}

		start := s.now()
		handle, err := s.documents.Contract(ctx, *app, *card)
		s.metrics.ObserveRenderDuration(domain.DocumentContract.String(), s.now().Sub(start))
		if err != nil {
			s.metrics.IncDocumentRequested(domain.DocumentContract.String(), "error")
			return nil, err
		}
		s.metrics.IncDocumentRequested(domain.DocumentContract.String(), "ok")
		return handle, nil
	}

	return nil, fmt.Errorf("%w: invalid document kind %q", domain.ErrValidation, kind)
}

// History returns the audit trail of an application, oldest first.
func (s *ApplicationService) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	app, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.history.ListByEntity(ctx, domain.EntityApplication, app.ID)
}

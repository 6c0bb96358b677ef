package printing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/ratelimit"
	"go.uber.org/zap"
)

// DocumentStore caches render receipts so retrieval does not round-trip
// to the renderer again.
type DocumentStore interface {
	Put(ctx context.Context, handle domain.DocumentHandle) error
	Get(ctx context.Context, applicationNo string, kind domain.DocumentKind) (*domain.DocumentHandle, error)
}

// Trigger asks the renderer for print forms at workflow milestones and
// records the receipt. Render failures never abort the workflow step that
// triggered them; callers surface them as a warning instead.
type Trigger struct {
	renderer Renderer
	store    DocumentStore
	limiter  ratelimit.RateLimiter
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewTrigger(renderer Renderer, store DocumentStore, limiter ratelimit.RateLimiter, logger *zap.Logger) (*Trigger, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Trigger{
		renderer: renderer,
		store:    store,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Statement renders the application statement produced on submission.
func (t *Trigger) Statement(ctx context.Context, app domain.Application) (*domain.DocumentHandle, error) {
	return t.render(ctx, RenderRequest{
		Kind:          domain.DocumentStatement,
		ApplicationNo: app.ApplicationNo,
		ApplicantName: app.ApplicantName,
		ProductCode:   app.ProductCode,
	})
}

// Contract renders the cardholder contract produced on issuance.
func (t *Trigger) Contract(ctx context.Context, app domain.Application, card domain.Card) (*domain.DocumentHandle, error) {
	return t.render(ctx, RenderRequest{
		Kind:          domain.DocumentContract,
		ApplicationNo: app.ApplicationNo,
		ApplicantName: app.ApplicantName,
		ProductCode:   app.ProductCode,
		CardNo:        card.CardNo,
		PanMasked:     card.PanMasked,
		ExpiryMonth:   card.ExpiryMonth,
		ExpiryYear:    card.ExpiryYear,
	})
}

// Lookup returns the cached receipt for an already requested document.
func (t *Trigger) Lookup(ctx context.Context, applicationNo string, kind domain.DocumentKind) (*domain.DocumentHandle, error) {
	if strings.TrimSpace(applicationNo) == "" {
		return nil, fmt.Errorf("%w: application number is required", domain.ErrValidation)
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: invalid document kind %q", domain.ErrValidation, kind)
	}

	return t.store.Get(ctx, applicationNo, kind)
}

func (t *Trigger) render(ctx context.Context, request RenderRequest) (*domain.DocumentHandle, error) {
	if t == nil || t.renderer == nil {
		return nil, fmt.Errorf("%w: trigger is not initialized", domain.ErrDocumentGeneration)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx, strings.ToLower(request.Kind.String())); err != nil {
			return nil, fmt.Errorf("%w: %s for %s: %v", domain.ErrDocumentGeneration, request.Kind, request.ApplicationNo, err)
		}
	}

	response, err := t.renderer.Render(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %s for %s: %v", domain.ErrDocumentGeneration, request.Kind, request.ApplicationNo, err)
	}

	requestedAt := t.now().UTC()
	handle := domain.DocumentHandle{
		ID:            t.newID(),
		ApplicationNo: request.ApplicationNo,
		Kind:          request.Kind,
		Location:      response.Location,
		RequestedAt:   requestedAt,
	}
	if handle.Location != "" {
		completedAt := requestedAt
		handle.CompletedAt = &completedAt
	}

	if err := t.store.Put(ctx, handle); err != nil {
		t.logger.Warn("failed to cache document handle",
			zap.String("application_no", handle.ApplicationNo),
			zap.String("kind", handle.Kind.String()),
			zap.Error(err),
		)
	}

	return &handle, nil
}

package printing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

type fakeRenderer struct {
	renderFn func(ctx context.Context, request RenderRequest) (*RenderResponse, error)
}

func (f *fakeRenderer) Render(ctx context.Context, request RenderRequest) (*RenderResponse, error) {
	return f.renderFn(ctx, request)
}

type fakeDocumentStore struct {
	mu      sync.Mutex
	handles map[string]domain.DocumentHandle
	putErr  error
}

func (f *fakeDocumentStore) Put(ctx context.Context, handle domain.DocumentHandle) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handles == nil {
		f.handles = make(map[string]domain.DocumentHandle)
	}
	f.handles[handle.ApplicationNo+"/"+handle.Kind.String()] = handle
	return nil
}

func (f *fakeDocumentStore) Get(ctx context.Context, applicationNo string, kind domain.DocumentKind) (*domain.DocumentHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	handle, ok := f.handles[applicationNo+"/"+kind.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &handle, nil
}

func TestTriggerStatement(t *testing.T) {
	t.Parallel()

	var gotRequest RenderRequest
	renderer := &fakeRenderer{
		renderFn: func(ctx context.Context, request RenderRequest) (*RenderResponse, error) {
			gotRequest = request
			return &RenderResponse{StatusCode: 202, Location: "https://documents.internal/statement.pdf"}, nil
		},
	}
	store := &fakeDocumentStore{}

	trigger, err := NewTrigger(renderer, store, nil, nil)
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}

	app := domain.Application{
		ApplicationNo: "APP-2024-000001",
		ApplicantName: "Ada Lovelace",
		ProductCode:   "GOLD",
	}

	handle, err := trigger.Statement(context.Background(), app)
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}

	if gotRequest.Kind != domain.DocumentStatement {
		t.Errorf("request kind = %q, want statement", gotRequest.Kind)
	}
	if gotRequest.ApplicationNo != app.ApplicationNo {
		t.Errorf("request applicationNo = %q, want %q", gotRequest.ApplicationNo, app.ApplicationNo)
	}
	if handle.Location != "https://documents.internal/statement.pdf" {
		t.Errorf("handle location = %q", handle.Location)
	}
	if handle.CompletedAt == nil {
		t.Error("handle with location should carry a completion time")
	}

	cached, err := trigger.Lookup(context.Background(), app.ApplicationNo, domain.DocumentStatement)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if cached.ID != handle.ID {
		t.Errorf("cached handle id = %q, want %q", cached.ID, handle.ID)
	}
}

func TestTriggerContractCarriesCardFields(t *testing.T) {
	t.Parallel()

	var gotRequest RenderRequest
	renderer := &fakeRenderer{
		renderFn: func(ctx context.Context, request RenderRequest) (*RenderResponse, error) {
			gotRequest = request
			return &RenderResponse{StatusCode: 202}, nil
		},
	}

	trigger, err := NewTrigger(renderer, &fakeDocumentStore{}, nil, nil)
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}

	app := domain.Application{ApplicationNo: "APP-2024-000002", ApplicantName: "Grace Hopper", ProductCode: "PLATINUM"}
	card := domain.Card{CardNo: "CARD-2024-000001", PanMasked: "**** **** **** 4242", ExpiryMonth: 8, ExpiryYear: 2027}

	handle, err := trigger.Contract(context.Background(), app, card)
	if err != nil {
		t.Fatalf("Contract: %v", err)
	}

	if gotRequest.Kind != domain.DocumentContract {
		t.Errorf("request kind = %q, want contract", gotRequest.Kind)
	}
	if gotRequest.CardNo != card.CardNo {
		t.Errorf("request cardNo = %q, want %q", gotRequest.CardNo, card.CardNo)
	}
	if gotRequest.PanMasked != card.PanMasked {
		t.Errorf("request panMasked = %q, want %q", gotRequest.PanMasked, card.PanMasked)
	}
	if handle.CompletedAt != nil {
		t.Error("handle without location should not carry a completion time")
	}
}

func TestTriggerRendererFailure(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{
		renderFn: func(ctx context.Context, request RenderRequest) (*RenderResponse, error) {
			return nil, &RenderError{StatusCode: 503, Message: "renderer unavailable", Transient: true}
		},
	}

	trigger, err := NewTrigger(renderer, &fakeDocumentStore{}, nil, nil)
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}

	_, err = trigger.Statement(context.Background(), domain.Application{ApplicationNo: "APP-2024-000003"})
	if !errors.Is(err, domain.ErrDocumentGeneration) {
		t.Fatalf("err = %v, want ErrDocumentGeneration", err)
	}
}

func TestTriggerCacheFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{
		renderFn: func(ctx context.Context, request RenderRequest) (*RenderResponse, error) {
			return &RenderResponse{StatusCode: 202}, nil
		},
	}
	store := &fakeDocumentStore{putErr: errors.New("redis down")}

	trigger, err := NewTrigger(renderer, store, nil, nil)
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}

	handle, err := trigger.Statement(context.Background(), domain.Application{ApplicationNo: "APP-2024-000004"})
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}
	if handle == nil {
		t.Fatal("expected a handle despite cache failure")
	}
}

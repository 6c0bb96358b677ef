package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
)

type ApplicationService interface {
	CreateDraft(ctx context.Context, app *domain.Application) (*domain.Application, error)
	Submit(ctx context.Context, id string) (*domain.Application, *domain.DocumentHandle, error)
	Decide(ctx context.Context, id string, outcome domain.DecisionOutcome, decidedBy, note string) (*domain.Application, error)
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Application, int64, error)
	GetDocument(ctx context.Context, id string, kind domain.DocumentKind) (*domain.DocumentHandle, error)
	History(ctx context.Context, id string) ([]domain.StatusChange, error)
}

type ApplicationHandler struct {
	service ApplicationService
}

func NewApplicationHandler(service ApplicationService) (*ApplicationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("application service is required")
	}
	return &ApplicationHandler{service: service}, nil
}

func RegisterApplicationRoutes(router fiber.Router, service ApplicationService) error {
	h, err := NewApplicationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/applications", h.CreateApplication)
	v1.Get("/applications", h.ListApplications)
	v1.Get("/applications/:id", h.GetApplication)
	v1.Post("/applications/:id/submit", h.SubmitApplication)
	v1.Post("/applications/:id/decision", h.DecideApplication)
	v1.Get("/applications/:id/documents/:kind", h.GetApplicationDocument)
	v1.Get("/applications/:id/history", h.GetApplicationHistory)

	return nil
}

type createApplicationRequest struct {
	ApplicantName string `json:"applicantName"`
	ApplicantRef  string `json:"applicantRef"`
	ProductCode   string `json:"productCode"`
}

type decisionRequest struct {
	Outcome   string `json:"outcome"`
	DecidedBy string `json:"decidedBy"`
	Note      string `json:"note,omitempty"`
}

type applicationResponse struct {
	ID            string     `json:"id"`
	ApplicationNo string     `json:"applicationNo"`
	ApplicantName string     `json:"applicantName"`
	ApplicantRef  string     `json:"applicantRef"`
	ProductCode   string     `json:"productCode"`
	BatchID       *string    `json:"batchId,omitempty"`
	CardID        *string    `json:"cardId,omitempty"`
	State         string     `json:"state"`
	DecisionBy    *string    `json:"decisionBy,omitempty"`
	DecisionNote  *string    `json:"decisionNote,omitempty"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type submitApplicationResponse struct {
	Application applicationResponse    `json:"application"`
	Statement   *domain.DocumentHandle `json:"statement,omitempty"`
	Warning     string                 `json:"warning,omitempty"`
}

type listApplicationsResponse struct {
	Data []applicationResponse `json:"data"`
	Meta listMeta              `json:"meta"`
}

func (h *ApplicationHandler) CreateApplication(c *fiber.Ctx) error {
	var req createApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.CreateDraft(c.Context(), &domain.Application{
		ApplicantName: strings.TrimSpace(req.ApplicantName),
		ApplicantRef:  strings.TrimSpace(req.ApplicantRef),
		ProductCode:   strings.TrimSpace(req.ProductCode),
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toApplicationResponse(created))
}

// SubmitApplication moves a draft into SUBMITTED and requests the
// statement form. A failed render does not undo the submission; it is
// reported as a warning on the response.
func (h *ApplicationHandler) SubmitApplication(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	app, statement, err := h.service.Submit(c.Context(), id)
	if err != nil {
		if app == nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusOK).JSON(submitApplicationResponse{
			Application: toApplicationResponse(app),
			Warning:     err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(submitApplicationResponse{
		Application: toApplicationResponse(app),
		Statement:   statement,
	})
}

func (h *ApplicationHandler) DecideApplication(c *fiber.Ctx) error {
	var req decisionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	outcome, err := domain.ParseDecisionOutcomeFromString(req.Outcome)
	if err != nil {
		return toHTTPError(err)
	}

	id := strings.TrimSpace(c.Params("id"))
	app, err := h.service.Decide(c.Context(), id, outcome, req.DecidedBy, req.Note)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toApplicationResponse(app))
}

func (h *ApplicationHandler) GetApplication(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	app, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toApplicationResponse(app))
}

func (h *ApplicationHandler) ListApplications(c *fiber.Ctx) error {
	params, err := parseApplicationListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	apps, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]applicationResponse, 0, len(apps))
	for i := range apps {
		data = append(data, toApplicationResponse(&apps[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listApplicationsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *ApplicationHandler) GetApplicationDocument(c *fiber.Ctx) error {
	kind, err := domain.ParseDocumentKindFromString(c.Params("kind"))
	if err != nil {
		return toHTTPError(err)
	}

	id := strings.TrimSpace(c.Params("id"))
	handle, err := h.service.GetDocument(c.Context(), id, kind)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(handle)
}

func (h *ApplicationHandler) GetApplicationHistory(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	changes, err := h.service.History(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toHistoryResponse(changes))
}

func parseApplicationListParams(c *fiber.Ctx) (repository.ListParams, error) {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return repository.ListParams{}, err
	}

	params := repository.ListParams{
		Query:    strings.TrimSpace(c.Query("q")),
		Page:     page,
		PageSize: pageSize,
	}

	if rawState := strings.TrimSpace(c.Query("state")); rawState != "" {
		state, err := domain.ParseAppStateFromString(rawState)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.State = &state
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func toApplicationResponse(a *domain.Application) applicationResponse {
	if a == nil {
		return applicationResponse{}
	}

	return applicationResponse{
		ID:            a.ID,
		ApplicationNo: a.ApplicationNo,
		ApplicantName: a.ApplicantName,
		ApplicantRef:  a.ApplicantRef,
		ProductCode:   a.ProductCode,
		BatchID:       a.BatchID,
		CardID:        a.CardID,
		State:         a.State.String(),
		DecisionBy:    a.DecisionBy,
		DecisionNote:  a.DecisionNote,
		DecidedAt:     a.DecidedAt,
		SubmittedAt:   a.SubmittedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

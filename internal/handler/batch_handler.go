package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/service"
)

type BatchService interface {
	Create(ctx context.Context) (*domain.Batch, error)
	AddApplications(ctx context.Context, batchID string, applicationIDs []string) ([]domain.Application, error)
	RemoveApplication(ctx context.Context, batchID, applicationID string) error
	StartProcessing(ctx context.Context, batchID, actor string) (*service.StartReport, error)
	Approve(ctx context.Context, batchID, actor string) (*service.ApprovalSummary, error)
	Close(ctx context.Context, batchID, actor string) (*domain.Batch, error)
	GetDetail(ctx context.Context, batchID string) (*service.BatchDetail, error)
	List(ctx context.Context, page, pageSize int) ([]service.BatchListing, int64, error)
}

type BatchHandler struct {
	service BatchService
}

func NewBatchHandler(service BatchService) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService) error {
	h, err := NewBatchHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.CreateBatch)
	v1.Get("/batches", h.ListBatches)
	v1.Get("/batches/:id", h.GetBatch)
	v1.Post("/batches/:id/applications", h.AddApplications)
	v1.Delete("/batches/:id/applications/:applicationId", h.RemoveApplication)
	v1.Post("/batches/:id/start", h.StartProcessing)
	v1.Post("/batches/:id/approve", h.ApproveBatch)
	v1.Post("/batches/:id/close", h.CloseBatch)

	return nil
}

type addApplicationsRequest struct {
	ApplicationIDs []string `json:"applicationIds"`
}

type actorRequest struct {
	Actor string `json:"actor"`
}

type batchResponse struct {
	ID         string     `json:"id"`
	BatchNo    string     `json:"batchNo"`
	Status     string     `json:"status"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	ClosedAt   *time.Time `json:"closedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type batchDetailResponse struct {
	batchResponse
	Members []applicationResponse `json:"members"`
}

type batchListItem struct {
	batchResponse
	MemberCount int `json:"memberCount"`
	CardCount   int `json:"cardCount"`
}

type listBatchesResponse struct {
	Data []batchListItem `json:"data"`
	Meta listMeta        `json:"meta"`
}

type approveBatchResponse struct {
	service.ApprovalSummary
	Warning string `json:"warning,omitempty"`
}

func (h *BatchHandler) CreateBatch(c *fiber.Ctx) error {
	batch, err := h.service.Create(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) AddApplications(c *fiber.Ctx) error {
	var req addApplicationsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batchID := strings.TrimSpace(c.Params("id"))
	added, err := h.service.AddApplications(c.Context(), batchID, req.ApplicationIDs)
	if err != nil {
		return toHTTPError(err)
	}

	members := make([]applicationResponse, 0, len(added))
	for i := range added {
		members = append(members, toApplicationResponse(&added[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"batchId": batchID,
		"added":   members,
	})
}

func (h *BatchHandler) RemoveApplication(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("id"))
	applicationID := strings.TrimSpace(c.Params("applicationId"))

	if err := h.service.RemoveApplication(c.Context(), batchID, applicationID); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BatchHandler) StartProcessing(c *fiber.Ctx) error {
	var req actorRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batchID := strings.TrimSpace(c.Params("id"))
	report, err := h.service.StartProcessing(c.Context(), batchID, strings.TrimSpace(req.Actor))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(report)
}

// ApproveBatch issues cards for every approved member. Individual member
// failures do not fail the request; the summary carries them and the
// warning field marks the partial outcome.
func (h *BatchHandler) ApproveBatch(c *fiber.Ctx) error {
	var req actorRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batchID := strings.TrimSpace(c.Params("id"))
	summary, err := h.service.Approve(c.Context(), batchID, strings.TrimSpace(req.Actor))
	if err != nil {
		if summary == nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusOK).JSON(approveBatchResponse{
			ApprovalSummary: *summary,
			Warning:         err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(approveBatchResponse{ApprovalSummary: *summary})
}

func (h *BatchHandler) CloseBatch(c *fiber.Ctx) error {
	var req actorRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batchID := strings.TrimSpace(c.Params("id"))
	batch, err := h.service.Close(c.Context(), batchID, strings.TrimSpace(req.Actor))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("id"))
	detail, err := h.service.GetDetail(c.Context(), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	members := make([]applicationResponse, 0, len(detail.Members))
	for i := range detail.Members {
		members = append(members, toApplicationResponse(&detail.Members[i]))
	}

	return c.Status(fiber.StatusOK).JSON(batchDetailResponse{
		batchResponse: toBatchResponse(&detail.Batch),
		Members:       members,
	})
}

func (h *BatchHandler) ListBatches(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return toHTTPError(err)
	}

	listings, total, err := h.service.List(c.Context(), page, pageSize)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]batchListItem, 0, len(listings))
	for i := range listings {
		data = append(data, batchListItem{
			batchResponse: toBatchResponse(&listings[i].Batch),
			MemberCount:   listings[i].MemberCount,
			CardCount:     listings[i].CardCount,
		})
	}

	return c.Status(fiber.StatusOK).JSON(listBatchesResponse{
		Data: data,
		Meta: listMeta{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}

	return batchResponse{
		ID:         b.ID,
		BatchNo:    b.BatchNo,
		Status:     b.Status.String(),
		ApprovedAt: b.ApprovedAt,
		ClosedAt:   b.ClosedAt,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

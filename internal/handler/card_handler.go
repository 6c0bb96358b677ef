package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

type CardService interface {
	Event(ctx context.Context, id string, event domain.CardEvent, actor string) (*domain.Card, error)
	GetByID(ctx context.Context, id string) (*domain.Card, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Card, int64, error)
	History(ctx context.Context, id string) ([]domain.StatusChange, error)
}

type CardHandler struct {
	service CardService
}

func NewCardHandler(service CardService) (*CardHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("card service is required")
	}
	return &CardHandler{service: service}, nil
}

func RegisterCardRoutes(router fiber.Router, service CardService) error {
	h, err := NewCardHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/cards", h.ListCards)
	v1.Get("/cards/:id", h.GetCard)
	v1.Post("/cards/:id/events", h.ApplyCardEvent)
	v1.Get("/cards/:id/history", h.GetCardHistory)

	return nil
}

type cardEventRequest struct {
	Event string `json:"event"`
	Actor string `json:"actor"`
}

type cardResponse struct {
	ID            string     `json:"id"`
	CardNo        string     `json:"cardNo"`
	ApplicationID string     `json:"applicationId"`
	Status        string     `json:"status"`
	PanMasked     string     `json:"panMasked"`
	ExpiryMonth   int        `json:"expiryMonth"`
	ExpiryYear    int        `json:"expiryYear"`
	IssuedAt      time.Time  `json:"issuedAt"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
	HandedAt      *time.Time `json:"handedAt,omitempty"`
	ActivatedAt   *time.Time `json:"activatedAt,omitempty"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

type listCardsResponse struct {
	Data []cardResponse `json:"data"`
	Meta listMeta       `json:"meta"`
}

func (h *CardHandler) ApplyCardEvent(c *fiber.Ctx) error {
	var req cardEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	event, err := domain.ParseCardEventFromString(req.Event)
	if err != nil {
		return toHTTPError(err)
	}

	id := strings.TrimSpace(c.Params("id"))
	card, err := h.service.Event(c.Context(), id, event, strings.TrimSpace(req.Actor))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toCardResponse(card))
}

func (h *CardHandler) GetCard(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	card, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toCardResponse(card))
}

func (h *CardHandler) ListCards(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return toHTTPError(err)
	}

	cards, total, err := h.service.List(c.Context(), page, pageSize)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]cardResponse, 0, len(cards))
	for i := range cards {
		data = append(data, toCardResponse(&cards[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listCardsResponse{
		Data: data,
		Meta: listMeta{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

func (h *CardHandler) GetCardHistory(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	changes, err := h.service.History(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toHistoryResponse(changes))
}

func toCardResponse(card *domain.Card) cardResponse {
	if card == nil {
		return cardResponse{}
	}

	return cardResponse{
		ID:            card.ID,
		CardNo:        card.CardNo,
		ApplicationID: card.ApplicationID,
		Status:        card.Status.String(),
		PanMasked:     card.PanMasked,
		ExpiryMonth:   card.ExpiryMonth,
		ExpiryYear:    card.ExpiryYear,
		IssuedAt:      card.IssuedAt,
		DeliveredAt:   card.DeliveredAt,
		HandedAt:      card.HandedAt,
		ActivatedAt:   card.ActivatedAt,
		ClosedAt:      card.ClosedAt,
	}
}

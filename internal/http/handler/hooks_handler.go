package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/service"
	"go.uber.org/zap"
)

// HooksHandler accepts link events pushed by external shortener hosts.
type HooksHandler struct {
	logger *zap.Logger
	events service.EventSink
	now    func() time.Time
}

func NewHooksHandler(logger *zap.Logger, events service.EventSink) *HooksHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HooksHandler{logger: logger, events: events, now: time.Now}
}

// Register wires hook routes onto the provided /api router.
func (h *HooksHandler) Register(api fiber.Router) {
	hooks := api.Group("/hooks")
	hooks.Post("/link-created", h.LinkCreated)
	hooks.Post("/link-clicked", h.LinkClicked)
}

// LinkCreated handles POST /api/hooks/link-created
func (h *HooksHandler) LinkCreated(c *fiber.Ctx) error {
	var ev model.LinkCreatedEvent
	if err := json.Unmarshal(c.Body(), &ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid event body",
		})
	}
	if ev.Keyword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "keyword is required",
		})
	}
	h.stamp(&ev.ID, &ev.OccurredAt)

	h.events.OnLinkCreated(context.WithoutCancel(requestContext(c)), ev)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": ev.ID})
}

// LinkClicked handles POST /api/hooks/link-clicked. Keyword and url may be strings or objects.
func (h *HooksHandler) LinkClicked(c *fiber.Ctx) error {
	var ev model.LinkClickedEvent
	if err := json.Unmarshal(c.Body(), &ev); err != nil {
		h.logger.Debug("rejected click hook", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid event body",
		})
	}
	h.stamp(&ev.ID, &ev.OccurredAt)

	h.events.OnLinkClicked(context.WithoutCancel(requestContext(c)), ev)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": ev.ID})
}

func (h *HooksHandler) stamp(id *string, at *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if at.IsZero() {
		*at = h.now()
	}
}

package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/repository"
	"github.com/sifan077/clickhook/internal/app/service"
	"github.com/sifan077/clickhook/internal/http/view"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger *zap.Logger
	Links  service.LinkService
	// Events receives a click before the visitor is redirected. May be nil.
	Events service.EventSink
	// CountryHeader names the request header an edge proxy fills with the visitor's country.
	CountryHeader string
}

// RedirectHandler resolves short codes and reports clicks.
type RedirectHandler struct {
	logger        *zap.Logger
	links         service.LinkService
	events        service.EventSink
	countryHeader string
	now           func() time.Time
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:        logger,
		links:         deps.Links,
		events:        deps.Events,
		countryHeader: deps.CountryHeader,
		now:           time.Now,
	}
}

// Register wires the catch-all redirect route. It must be registered after every other route.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/:code", h.Resolve)
}

// Resolve handles GET /:code.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")

	link, err := h.links.Resolve(requestContext(c), code)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			return h.unavailable(c, fiber.StatusNotFound, code, "short link not found")
		case errors.Is(err, service.ErrLinkGone):
			return h.unavailable(c, fiber.StatusGone, code, "link is disabled or expired")
		default:
			h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	if h.events != nil {
		// the notifier may still be running after the response is written
		h.events.OnLinkClicked(context.WithoutCancel(requestContext(c)), h.clickEvent(c, link))
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", link.URL))
	return c.Redirect(link.URL, fiber.StatusFound)
}

func (h *RedirectHandler) clickEvent(c *fiber.Ctx, link *model.Link) model.LinkClickedEvent {
	visitor := model.Visitor{
		IP:        c.IP(),
		Referrer:  c.Get(fiber.HeaderReferer),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	if h.countryHeader != "" {
		visitor.Country = c.Get(h.countryHeader)
	}
	return model.LinkClickedEvent{
		ID:         uuid.NewString(),
		URL:        model.Scalar(link.URL),
		Keyword:    model.Scalar(link.Code),
		Visitor:    visitor,
		OccurredAt: h.now(),
	}
}

// unavailable answers browsers with a page and API clients with JSON.
func (h *RedirectHandler) unavailable(c *fiber.Ctx, status int, code, message string) error {
	if c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML {
		html, err := view.RenderUnavailablePage(view.UnavailablePageData{
			Status:  status,
			Code:    code,
			Message: message,
		})
		if err == nil {
			return c.Status(status).Type("html", "utf-8").SendString(html)
		}
		h.logger.Error("failed to render unavailable page", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

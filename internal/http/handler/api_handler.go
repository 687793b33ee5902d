package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/repository"
	"github.com/sifan077/clickhook/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
}

// APIHandler implements the link management endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
	}
}

// Register wires link routes onto the provided /api router.
func (h *APIHandler) Register(api fiber.Router) {
	links := api.Group("/links")
	{
		links.Post("/", h.CreateLink)
		links.Get("/", h.ListLinks)
		links.Get("/:code", h.GetLink)
		links.Patch("/:code", h.UpdateLink)
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	Code      string     `json:"code,omitempty" validate:"omitempty,max=64,alphanum"`
	URL       string     `json:"url" validate:"required,http_url"`
	Title     string     `json:"title,omitempty" validate:"max=255"`
	Disabled  bool       `json:"disabled,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse is the JSON view of a link.
type LinkResponse struct {
	Code      string     `json:"code"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Disabled  bool       `json:"disabled"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func newLinkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		Code:      link.Code,
		URL:       link.URL,
		Title:     link.Title,
		Disabled:  link.Disabled,
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	}
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	link, err := h.linkService.CreateLink(requestContext(c), service.CreateLinkInput{
		Code:      req.Code,
		URL:       req.URL,
		Title:     req.Title,
		Disabled:  req.Disabled,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrLinkExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "code is already taken",
			})
		}
		h.logger.Error("failed to create link", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create link",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(newLinkResponse(link))
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := 20
	offset := 0

	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		limit = parsed
	}
	if parsed := c.QueryInt("offset"); parsed >= 0 {
		offset = parsed
	}

	links, err := h.linkService.ListLinks(requestContext(c), limit, offset)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = newLinkResponse(&links[i])
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:code
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	code := c.Params("code")

	link, err := h.linkService.GetLink(requestContext(c), code)
	if err != nil {
		return h.linkError(c, err, code, "failed to get link")
	}

	return c.JSON(newLinkResponse(link))
}

// UpdateLinkRequest represents the request body for updating a link.
type UpdateLinkRequest struct {
	URL       *string    `json:"url,omitempty" validate:"omitempty,http_url"`
	Title     *string    `json:"title,omitempty" validate:"omitempty,max=255"`
	Disabled  *bool      `json:"disabled,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// UpdateLink handles PATCH /api/links/:code
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	code := c.Params("code")

	var req UpdateLinkRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	link, err := h.linkService.UpdateLink(requestContext(c), code, service.UpdateLinkInput{
		URL:       req.URL,
		Title:     req.Title,
		Disabled:  req.Disabled,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return h.linkError(c, err, code, "failed to update link")
	}

	return c.JSON(newLinkResponse(link))
}

func (h *APIHandler) linkError(c *fiber.Ctx, err error, code, msg string) error {
	if errors.Is(err, repository.ErrLinkNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	}
	h.logger.Error(msg, zap.Error(err), zap.String("code", code))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

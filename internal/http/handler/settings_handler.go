package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/service"
	"github.com/sifan077/clickhook/internal/infra/webhook"
	"go.uber.org/zap"
)

// WebhookTester sends the fixed test message.
type WebhookTester interface {
	SendTest(ctx context.Context) error
}

// SettingsHandler serves the notifier admin endpoints.
type SettingsHandler struct {
	logger   *zap.Logger
	settings *service.SettingsService
	tester   WebhookTester
}

func NewSettingsHandler(logger *zap.Logger, settings *service.SettingsService, tester WebhookTester) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{logger: logger, settings: settings, tester: tester}
}

// Register wires notifier routes onto the provided /api router.
func (h *SettingsHandler) Register(api fiber.Router) {
	notifier := api.Group("/notifier")
	notifier.Get("/settings", h.GetSettings)
	notifier.Put("/settings", h.UpdateSettings)
	notifier.Post("/test", h.SendTest)
}

// SettingsRequest is the admin form. specific_urls is a comma separated keyword list
// and embed_color a "#RRGGBB" string; an unparsable colour falls back to the default.
type SettingsRequest struct {
	WebhookURL         string `json:"webhook_url" validate:"omitempty,http_url"`
	NotifyOnAllURLs    bool   `json:"notify_on_all_urls"`
	SpecificURLs       string `json:"specific_urls" validate:"max=10000"`
	IncludeIP          bool   `json:"include_ip"`
	IncludeReferrer    bool   `json:"include_referrer"`
	IncludeUserAgent   bool   `json:"include_user_agent"`
	IncludeLocation    bool   `json:"include_location"`
	IncludeBrowserOS   bool   `json:"include_browser_os"`
	WebhookUsername    string `json:"webhook_username" validate:"max=80"`
	WebhookAvatar      string `json:"webhook_avatar" validate:"omitempty,http_url"`
	MessageTemplate    string `json:"message_template" validate:"max=4000"`
	EmbedTitleTemplate string `json:"embed_title_template" validate:"max=256"`
	EmbedColor         string `json:"embed_color"`
	RateLimiting       bool   `json:"rate_limiting"`
	RateLimitSeconds   int    `json:"rate_limit_seconds" validate:"min=0,max=86400"`
	UseMentions        bool   `json:"use_mentions"`
	DiscordMentions    string `json:"discord_mentions" validate:"max=2000"`
}

// SettingsResponse mirrors SettingsRequest so a GET can be edited and PUT back.
type SettingsResponse SettingsRequest

func newSettingsResponse(s model.Settings) SettingsResponse {
	return SettingsResponse{
		WebhookURL:         s.WebhookURL,
		NotifyOnAllURLs:    s.NotifyOnAllURLs,
		SpecificURLs:       strings.Join(s.SpecificURLs, ", "),
		IncludeIP:          s.IncludeIP,
		IncludeReferrer:    s.IncludeReferrer,
		IncludeUserAgent:   s.IncludeUserAgent,
		IncludeLocation:    s.IncludeLocation,
		IncludeBrowserOS:   s.IncludeBrowserOS,
		WebhookUsername:    s.WebhookUsername,
		WebhookAvatar:      s.WebhookAvatar,
		MessageTemplate:    s.MessageTemplate,
		EmbedTitleTemplate: s.EmbedTitleTemplate,
		EmbedColor:         service.FormatHexColor(s.EmbedColor),
		RateLimiting:       s.RateLimiting,
		RateLimitSeconds:   s.RateLimitSeconds,
		UseMentions:        s.UseMentions,
		DiscordMentions:    s.DiscordMentions,
	}
}

// GetSettings handles GET /api/notifier/settings
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settings.Get(requestContext(c))
	if err != nil {
		h.logger.Error("failed to load notifier settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load settings",
		})
	}
	return c.JSON(newSettingsResponse(settings))
}

// UpdateSettings handles PUT /api/notifier/settings
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var req SettingsRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	saved, err := h.settings.Update(requestContext(c), service.SettingsInput(req))
	if err != nil {
		h.logger.Error("failed to save notifier settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save settings",
		})
	}
	return c.JSON(newSettingsResponse(saved))
}

// SendTest handles POST /api/notifier/test
func (h *SettingsHandler) SendTest(c *fiber.Ctx) error {
	if err := h.tester.SendTest(requestContext(c)); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": testFailureMessage(err),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Test message sent successfully!",
	})
}

// testFailureMessage turns a test-send error into the text shown on the settings page.
func testFailureMessage(err error) string {
	var status *webhook.StatusError
	switch {
	case errors.Is(err, service.ErrNoWebhook), errors.Is(err, webhook.ErrNoURL):
		return "No webhook URL provided."
	case errors.Is(err, webhook.ErrInvalidURL):
		return "Invalid webhook URL."
	case errors.As(err, &status):
		return fmt.Sprintf("HTTP error: %d - %s", status.Status, status.Body)
	default:
		return "Request error: " + err.Error()
	}
}

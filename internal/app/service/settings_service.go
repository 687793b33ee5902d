package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/store"
	"go.uber.org/zap"
)

var hexColorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6})$`)

// SettingsService owns the persisted notifier settings record.
type SettingsService struct {
	store  store.Store
	logger *zap.Logger
}

func NewSettingsService(s store.Store, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{store: s, logger: logger}
}

// Get returns the stored settings. A missing or unreadable record is replaced by the defaults,
// and fields absent from an older record are filled in from the defaults.
func (s *SettingsService) Get(ctx context.Context) (model.Settings, error) {
	settings := model.DefaultSettings()
	err := store.GetJSON(ctx, s.store, model.SettingsKey, &settings)
	switch {
	case err == nil:
		if settings.SpecificURLs == nil {
			settings.SpecificURLs = []string{}
		}
		return settings, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrCorrupt):
		if errors.Is(err, store.ErrCorrupt) {
			s.logger.Warn("notifier settings unreadable, restoring defaults", zap.Error(err))
		}
		defaults := model.DefaultSettings()
		if err := store.SetJSON(ctx, s.store, model.SettingsKey, defaults); err != nil {
			s.logger.Error("failed to persist default notifier settings", zap.Error(err))
		}
		return defaults, nil
	default:
		return model.Settings{}, fmt.Errorf("settings: load: %w", err)
	}
}

// SettingsInput mirrors the admin settings form.
type SettingsInput struct {
	WebhookURL         string
	NotifyOnAllURLs    bool
	SpecificURLs       string // comma separated keywords
	IncludeIP          bool
	IncludeReferrer    bool
	IncludeUserAgent   bool
	IncludeLocation    bool
	IncludeBrowserOS   bool
	WebhookUsername    string
	WebhookAvatar      string
	MessageTemplate    string
	EmbedTitleTemplate string
	EmbedColor         string // #RRGGBB
	RateLimiting       bool
	RateLimitSeconds   int
	UseMentions        bool
	DiscordMentions    string
}

// Update replaces the stored settings with the normalised form input.
func (s *SettingsService) Update(ctx context.Context, in SettingsInput) (model.Settings, error) {
	settings := ApplySettingsInput(in)
	if err := store.SetJSON(ctx, s.store, model.SettingsKey, settings); err != nil {
		return model.Settings{}, fmt.Errorf("settings: save: %w", err)
	}
	s.logger.Info("notifier settings updated",
		zap.Bool("notify_on_all_urls", settings.NotifyOnAllURLs),
		zap.Int("specific_urls", len(settings.SpecificURLs)),
		zap.Bool("rate_limiting", settings.RateLimiting),
		zap.Int("rate_limit_seconds", settings.RateLimitSeconds),
	)
	return settings, nil
}

// ApplySettingsInput trims text fields, parses the colour and keyword list and
// replaces out-of-range values with defaults.
func ApplySettingsInput(in SettingsInput) model.Settings {
	settings := model.Settings{
		WebhookURL:         strings.TrimSpace(in.WebhookURL),
		NotifyOnAllURLs:    in.NotifyOnAllURLs,
		SpecificURLs:       splitKeywords(in.SpecificURLs),
		IncludeIP:          in.IncludeIP,
		IncludeReferrer:    in.IncludeReferrer,
		IncludeUserAgent:   in.IncludeUserAgent,
		IncludeLocation:    in.IncludeLocation,
		IncludeBrowserOS:   in.IncludeBrowserOS,
		WebhookUsername:    strings.TrimSpace(in.WebhookUsername),
		WebhookAvatar:      strings.TrimSpace(in.WebhookAvatar),
		MessageTemplate:    strings.TrimSpace(in.MessageTemplate),
		EmbedTitleTemplate: strings.TrimSpace(in.EmbedTitleTemplate),
		EmbedColor:         ParseHexColor(in.EmbedColor),
		RateLimiting:       in.RateLimiting,
		RateLimitSeconds:   in.RateLimitSeconds,
		UseMentions:        in.UseMentions,
		DiscordMentions:    strings.TrimSpace(in.DiscordMentions),
	}
	if settings.RateLimitSeconds <= 0 {
		settings.RateLimitSeconds = model.DefaultRateLimitSeconds
	}
	return settings
}

// ParseHexColor converts "#RRGGBB" to its integer value, falling back to the default colour.
func ParseHexColor(s string) int {
	m := hexColorPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return model.DefaultEmbedColor
	}
	v, err := strconv.ParseInt(m[1], 16, 32)
	if err != nil {
		return model.DefaultEmbedColor
	}
	return int(v)
}

// FormatHexColor is the inverse of ParseHexColor.
func FormatHexColor(c int) string {
	if c < 0 || c > model.MaxEmbedColor {
		c = model.DefaultEmbedColor
	}
	return fmt.Sprintf("#%06x", c)
}

func splitKeywords(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

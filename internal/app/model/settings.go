package model

// Option keys in the key-value store.
const (
	SettingsKey    = "notifier_settings"
	PendingHintKey = "notifier_last_keyword"
	LedgerKey      = "notifier_last_notifications"
)

const (
	DefaultEmbedColor       = 7506394
	DefaultRateLimitSeconds = 60
	MaxEmbedColor           = 0xFFFFFF
)

// Settings is the persisted notifier configuration edited from the admin API.
type Settings struct {
	WebhookURL         string   `json:"webhook_url"`
	NotifyOnAllURLs    bool     `json:"notify_on_all_urls"`
	SpecificURLs       []string `json:"specific_urls"`
	IncludeIP          bool     `json:"include_ip"`
	IncludeReferrer    bool     `json:"include_referrer"`
	IncludeUserAgent   bool     `json:"include_user_agent"`
	IncludeLocation    bool     `json:"include_location"`
	IncludeBrowserOS   bool     `json:"include_browser_os"`
	WebhookUsername    string   `json:"webhook_username"`
	WebhookAvatar      string   `json:"webhook_avatar"`
	MessageTemplate    string   `json:"message_template"`
	EmbedTitleTemplate string   `json:"embed_title_template"`
	EmbedColor         int      `json:"embed_color"`
	RateLimiting       bool     `json:"rate_limiting"`
	RateLimitSeconds   int      `json:"rate_limit_seconds"`
	UseMentions        bool     `json:"use_mentions"`
	DiscordMentions    string   `json:"discord_mentions"`
}

// DefaultSettings is what a fresh installation starts with.
func DefaultSettings() Settings {
	return Settings{
		NotifyOnAllURLs:    true,
		SpecificURLs:       []string{},
		IncludeIP:          true,
		IncludeReferrer:    true,
		IncludeUserAgent:   true,
		IncludeLocation:    true,
		IncludeBrowserOS:   true,
		WebhookUsername:    "ClickHook",
		MessageTemplate:    "🔗 Short URL **{keyword}** was clicked! Original URL: {longurl}",
		EmbedTitleTemplate: "URL Click: {keyword}",
		EmbedColor:         DefaultEmbedColor,
		RateLimiting:       true,
		RateLimitSeconds:   DefaultRateLimitSeconds,
	}
}

// Watches reports whether clicks on keyword should produce a notification.
func (s Settings) Watches(keyword string) bool {
	if s.NotifyOnAllURLs {
		return true
	}
	for _, k := range s.SpecificURLs {
		if k == keyword {
			return true
		}
	}
	return false
}

// IncludesBrowserOS reports whether parsed browser and OS labels belong in notifications.
// They are derived from the user agent, so both flags must be on.
func (s Settings) IncludesBrowserOS() bool {
	return s.IncludeBrowserOS && s.IncludeUserAgent
}

package service

import (
	"strings"
	"time"

	"github.com/sifan077/clickhook/internal/app/model"
)

const (
	recordTimeLayout = "2006-01-02 15:04:05"
	defaultFooter    = "ClickHook"
)

// PayloadBuilder turns click records into webhook payloads.
type PayloadBuilder struct {
	siteURL string
	footer  string
	now     func() time.Time
}

func NewPayloadBuilder(siteURL, footer string) *PayloadBuilder {
	if footer == "" {
		footer = defaultFooter
	}
	return &PayloadBuilder{
		siteURL: strings.TrimRight(siteURL, "/"),
		footer:  footer,
		now:     time.Now,
	}
}

// Build renders the templates against record and lays out the embed fields in a fixed order.
func (b *PayloadBuilder) Build(record *model.ClickRecord, settings model.Settings) model.Payload {
	fields := record.Fields()

	embed := model.Embed{
		Title:       RenderTemplate(settings.EmbedTitleTemplate, fields),
		Description: RenderTemplate(settings.MessageTemplate, fields),
		Color:       settings.EmbedColor,
		Timestamp:   b.now().UTC().Format(time.RFC3339),
		Fields: []model.EmbedField{
			{Name: "Short URL", Value: b.siteURL + "/" + record.Keyword(), Inline: true},
			{Name: "Destination", Value: record.LongURL(), Inline: true},
		},
		Footer: model.EmbedFooter{Text: b.footer},
	}

	appendField := func(enabled bool, name, field string, inline bool) {
		if !enabled {
			return
		}
		if v, ok := record.Get(field); ok {
			embed.Fields = append(embed.Fields, model.EmbedField{Name: name, Value: v, Inline: inline})
		}
	}

	appendField(settings.IncludeReferrer, "Referrer", model.FieldReferrer, true)
	appendField(settings.IncludeLocation, "Location", model.FieldLocation, true)
	appendField(settings.IncludeIP, "IP Address", model.FieldIP, true)
	pair := settings.IncludesBrowserOS() && record.Has(model.FieldBrowser) && record.Has(model.FieldOS)
	appendField(pair, "Browser", model.FieldBrowser, true)
	appendField(pair, "Operating System", model.FieldOS, true)
	appendField(settings.IncludeUserAgent, "User Agent", model.FieldUserAgent, false)

	return model.Payload{
		Username:  settings.WebhookUsername,
		AvatarURL: settings.WebhookAvatar,
		Content:   mentionContent(settings),
		Embeds:    []model.Embed{embed},
	}
}

// BuildTest is the fixed payload sent by the admin "send test message" action.
func (b *PayloadBuilder) BuildTest(settings model.Settings) model.Payload {
	now := b.now()
	content := "Test message from " + b.footer
	return model.Payload{
		Username:  settings.WebhookUsername,
		AvatarURL: settings.WebhookAvatar,
		Content:   &content,
		Embeds: []model.Embed{{
			Title:       b.footer + " Test",
			Description: "This is a test message to verify your webhook is configured correctly.",
			Color:       settings.EmbedColor,
			Timestamp:   now.UTC().Format(time.RFC3339),
			Fields: []model.EmbedField{
				{Name: "Status", Value: "✅ Webhook is working!", Inline: true},
				{Name: "Timestamp", Value: now.Format(recordTimeLayout), Inline: true},
			},
			Footer: model.EmbedFooter{Text: b.footer},
		}},
	}
}

func mentionContent(settings model.Settings) *string {
	if !settings.UseMentions || settings.DiscordMentions == "" {
		return nil
	}
	content := settings.DiscordMentions
	return &content
}

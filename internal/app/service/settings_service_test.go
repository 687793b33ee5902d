package service

import (
	"context"
	"testing"

	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_GetPersistsDefaults(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	svc := NewSettingsService(s, nil)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), got)

	_, err = s.Get(ctx, model.SettingsKey)
	require.NoError(t, err, "defaults are written back on first read")
}

func TestSettingsService_GetFillsMissingFields(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, model.SettingsKey, []byte(`{"webhook_url":"https://example.com/hook","include_ip":false}`)))
	svc := NewSettingsService(s, nil)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", got.WebhookURL)
	assert.False(t, got.IncludeIP)
	assert.True(t, got.IncludeReferrer)
	assert.Equal(t, model.DefaultRateLimitSeconds, got.RateLimitSeconds)
	assert.Equal(t, model.DefaultEmbedColor, got.EmbedColor)
	assert.NotNil(t, got.SpecificURLs)
}

func TestSettingsService_GetRestoresCorruptRecord(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, model.SettingsKey, []byte(`garbage`)))
	svc := NewSettingsService(s, nil)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), got)

	var stored model.Settings
	require.NoError(t, store.GetJSON(ctx, s, model.SettingsKey, &stored))
	assert.Equal(t, model.DefaultSettings(), stored)
}

func TestSettingsService_Update(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(store.NewMemory(), nil)

	saved, err := svc.Update(ctx, SettingsInput{
		WebhookURL:       "  https://discord.com/api/webhooks/1/abc  ",
		SpecificURLs:     " promo, ,sale ,",
		EmbedColor:       "#FF0000",
		RateLimiting:     true,
		RateLimitSeconds: 0,
		IncludeIP:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", saved.WebhookURL)
	assert.Equal(t, []string{"promo", "sale"}, saved.SpecificURLs)
	assert.Equal(t, 0xFF0000, saved.EmbedColor)
	assert.Equal(t, model.DefaultRateLimitSeconds, saved.RateLimitSeconds)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#7289DA", model.DefaultEmbedColor},
		{"#7289da", model.DefaultEmbedColor},
		{"#00ff00", 0x00FF00},
		{" #000000 ", 0},
		{"#FFF", model.DefaultEmbedColor},
		{"FF0000", model.DefaultEmbedColor},
		{"#GG0000", model.DefaultEmbedColor},
		{"", model.DefaultEmbedColor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseHexColor(tt.in), tt.in)
	}
}

func TestFormatHexColor(t *testing.T) {
	assert.Equal(t, "#7289da", FormatHexColor(model.DefaultEmbedColor))
	assert.Equal(t, "#000000", FormatHexColor(0))
	assert.Equal(t, "#7289da", FormatHexColor(-1))
	assert.Equal(t, "#7289da", FormatHexColor(model.MaxEmbedColor+1))
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/repository"
	"github.com/sifan077/clickhook/internal/app/service"
	"github.com/sifan077/clickhook/internal/app/store"
	"github.com/sifan077/clickhook/internal/infra/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinkService struct {
	links   map[string]*model.Link
	created []service.CreateLinkInput
}

func newFakeLinkService(links ...*model.Link) *fakeLinkService {
	f := &fakeLinkService{links: map[string]*model.Link{}}
	for _, l := range links {
		f.links[l.Code] = l
	}
	return f
}

func (f *fakeLinkService) CreateLink(_ context.Context, in service.CreateLinkInput) (*model.Link, error) {
	if _, ok := f.links[in.Code]; ok {
		return nil, repository.ErrLinkExists
	}
	f.created = append(f.created, in)
	link := &model.Link{Code: in.Code, URL: in.URL, Title: in.Title, CreatedAt: time.Now()}
	f.links[in.Code] = link
	return link, nil
}

func (f *fakeLinkService) GetLink(_ context.Context, code string) (*model.Link, error) {
	if l, ok := f.links[code]; ok {
		return l, nil
	}
	return nil, repository.ErrLinkNotFound
}

func (f *fakeLinkService) ListLinks(context.Context, int, int) ([]model.Link, error) {
	out := make([]model.Link, 0, len(f.links))
	for _, l := range f.links {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeLinkService) UpdateLink(_ context.Context, code string, in service.UpdateLinkInput) (*model.Link, error) {
	l, ok := f.links[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	if in.Title != nil {
		l.Title = *in.Title
	}
	return l, nil
}

func (f *fakeLinkService) Resolve(ctx context.Context, code string) (*model.Link, error) {
	l, err := f.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if l.Disabled {
		return nil, service.ErrLinkGone
	}
	return l, nil
}

type recordingSink struct {
	mu      sync.Mutex
	created []model.LinkCreatedEvent
	clicked []model.LinkClickedEvent
}

func (r *recordingSink) OnLinkCreated(_ context.Context, ev model.LinkCreatedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, ev)
}

func (r *recordingSink) OnLinkClicked(_ context.Context, ev model.LinkClickedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicked = append(r.clicked, ev)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestRedirectHandler(t *testing.T) {
	links := newFakeLinkService(
		&model.Link{Code: "abc", URL: "https://example.com/landing"},
		&model.Link{Code: "off", URL: "https://example.com", Disabled: true},
	)
	sink := &recordingSink{}

	app := fiber.New()
	NewRedirectHandler(RedirectDeps{Links: links, Events: sink, CountryHeader: "CF-IPCountry"}).Register(app)

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	req.Header.Set("Referer", "https://news.example")
	req.Header.Set("User-Agent", "curl/8.4.0")
	req.Header.Set("CF-IPCountry", "NL")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/landing", resp.Header.Get("Location"))

	require.Len(t, sink.clicked, 1)
	ev := sink.clicked[0]
	assert.Equal(t, "abc", model.NormalizeKeyword(ev.Keyword))
	assert.Equal(t, "https://example.com/landing", model.NormalizeURL(ev.URL))
	assert.Equal(t, "https://news.example", ev.Visitor.Referrer)
	assert.Equal(t, "curl/8.4.0", ev.Visitor.UserAgent)
	assert.Equal(t, "NL", ev.Visitor.Country)
	assert.NotEmpty(t, ev.ID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "short link not found", decodeBody(t, resp)["error"])

	req = httptest.NewRequest(http.MethodGet, "/off", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	assert.Len(t, sink.clicked, 1, "unresolvable links report no click")
}

func TestAPIHandler_Links(t *testing.T) {
	links := newFakeLinkService(&model.Link{Code: "taken", URL: "https://example.com"})
	app := fiber.New()
	NewAPIHandler(APIDeps{LinkService: links}).Register(app.Group("/api"))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/links", `{"code":"promo","url":"https://example.com/sale","title":"Sale"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "promo", body["code"])
	assert.Equal(t, "Sale", body["title"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/links", `{"code":"taken","url":"https://example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/links", `{"url":"ftp://example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "url must be a valid URL", decodeBody(t, resp)["error"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/links", `{}`))
	require.NoError(t, err)
	assert.Equal(t, "url is required", decodeBody(t, resp)["error"])

	resp, err = app.Test(jsonRequest(http.MethodPatch, "/api/links/promo", `{"title":"Big sale"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Big sale", decodeBody(t, resp)["title"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/links/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/links?limit=500", nil))
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.EqualValues(t, 20, body["limit"])
	assert.EqualValues(t, 2, body["count"])
}

func TestHooksHandler(t *testing.T) {
	sink := &recordingSink{}
	app := fiber.New()
	NewHooksHandler(nil, sink).Register(app.Group("/api"))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/hooks/link-created", `{"keyword":"promo","url":"https://example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, sink.created, 1)
	assert.Equal(t, "promo", sink.created[0].Keyword)
	assert.NotEmpty(t, sink.created[0].ID)
	assert.False(t, sink.created[0].OccurredAt.IsZero())

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/hooks/link-created", `{"url":"https://example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/hooks/link-clicked", `{
		"keyword": {"shorturl": "https://sho.rt/foo", "clicks": 12},
		"url": ["https://example.com/a", "https://example.com/b"],
		"visitor": {"ip": "203.0.113.9"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, sink.clicked, 1)
	assert.Equal(t, "foo", model.NormalizeKeyword(sink.clicked[0].Keyword))
	assert.Equal(t, "https://example.com/a", model.NormalizeURL(sink.clicked[0].URL))

	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/hooks/link-clicked", `{"keyword":`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type fakeTester struct{ err error }

func (f fakeTester) SendTest(context.Context) error { return f.err }

func TestSettingsHandler(t *testing.T) {
	settings := service.NewSettingsService(store.NewMemory(), nil)
	app := fiber.New()
	NewSettingsHandler(nil, settings, fakeTester{}).Register(app.Group("/api"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/notifier/settings", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "#7289da", body["embed_color"])
	assert.Equal(t, true, body["notify_on_all_urls"])

	resp, err = app.Test(jsonRequest(http.MethodPut, "/api/notifier/settings", `{
		"webhook_url": "https://discord.com/api/webhooks/1/abc",
		"specific_urls": "promo, sale",
		"embed_color": "#00FF00",
		"rate_limiting": true,
		"rate_limit_seconds": 0
	}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "promo, sale", body["specific_urls"])
	assert.Equal(t, "#00ff00", body["embed_color"])
	assert.EqualValues(t, 60, body["rate_limit_seconds"])

	stored, err := settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"promo", "sale"}, stored.SpecificURLs)
	assert.False(t, stored.NotifyOnAllURLs)

	resp, err = app.Test(jsonRequest(http.MethodPut, "/api/notifier/settings", `{"webhook_url":"not a url"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "webhook_url must be a valid URL", decodeBody(t, resp)["error"])
}

func TestSettingsHandler_SendTest(t *testing.T) {
	settings := service.NewSettingsService(store.NewMemory(), nil)

	app := fiber.New()
	NewSettingsHandler(nil, settings, fakeTester{}).Register(app.Group("/api"))
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/notifier/test", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["success"])

	failures := []struct {
		name string
		err  error
		want string
	}{
		{"no webhook", service.ErrNoWebhook, "No webhook URL provided."},
		{"invalid url", fmt.Errorf("%w: %s", webhook.ErrInvalidURL, "nope"), "Invalid webhook URL."},
		{"non-2xx answer", &webhook.StatusError{Status: 401, Body: []byte("unauthorized")}, "HTTP error: 401 - unauthorized"},
		{"transport error", errors.New("dial tcp: connection refused"), "Request error: dial tcp: connection refused"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			NewSettingsHandler(nil, settings, fakeTester{err: tt.err}).Register(app.Group("/api"))
			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/notifier/test", nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["message"])
		})
	}
}

func TestHealthHandler(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	broken := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	app := fiber.New()
	NewHealthHandler(nil, map[string]Pinger{"postgres": healthy}).Register(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	app = fiber.New()
	NewHealthHandler(nil, map[string]Pinger{"postgres": healthy, "redis": broken}).Register(app)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	body := decodeBody(t, resp)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "connection refused", checks["redis"])
}

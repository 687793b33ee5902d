package service

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/store"
	"go.uber.org/zap"
)

// ErrNoWebhook is returned by SendTest when no webhook URL is configured.
var ErrNoWebhook = errors.New("notifier: no webhook URL configured")

// EventSink receives link lifecycle events from the host. Implementations never fail the caller.
type EventSink interface {
	OnLinkCreated(ctx context.Context, ev model.LinkCreatedEvent)
	OnLinkClicked(ctx context.Context, ev model.LinkClickedEvent)
}

// Dispatcher delivers payloads to a webhook.
type Dispatcher interface {
	Send(ctx context.Context, webhookURL string, payload any) bool
	SendTest(ctx context.Context, webhookURL string, payload any) error
}

// NotifierDeps groups the collaborators of a Notifier.
type NotifierDeps struct {
	Logger     *zap.Logger
	Store      store.Store
	Settings   *SettingsService
	Limiter    *RateLimiter
	Builder    *PayloadBuilder
	Dispatcher Dispatcher
}

// Notifier turns link events into webhook notifications.
type Notifier struct {
	logger     *zap.Logger
	store      store.Store
	settings   *SettingsService
	limiter    *RateLimiter
	builder    *PayloadBuilder
	dispatcher Dispatcher
	now        func() time.Time
}

var _ EventSink = (*Notifier)(nil)

func NewNotifier(deps NotifierDeps) *Notifier {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		logger:     logger,
		store:      deps.Store,
		settings:   deps.Settings,
		limiter:    deps.Limiter,
		builder:    deps.Builder,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// OnLinkCreated remembers the keyword of the newest link so the next click can use it.
// Only one hint is kept; a second creation before a click overwrites the first.
func (n *Notifier) OnLinkCreated(ctx context.Context, ev model.LinkCreatedEvent) {
	if ev.Keyword == "" {
		return
	}
	if err := n.store.Set(ctx, model.PendingHintKey, []byte(ev.Keyword)); err != nil {
		n.logger.Warn("failed to store keyword hint", zap.String("keyword", ev.Keyword), zap.Error(err))
		return
	}
	keywordHintsTotal.WithLabelValues("stored").Inc()
	n.logger.Debug("captured keyword at creation", zap.String("keyword", ev.Keyword))
}

// OnLinkClicked runs the notification pipeline for one click. Every early exit is silent
// towards the host; the visitor's redirect must not depend on it.
func (n *Notifier) OnLinkClicked(ctx context.Context, ev model.LinkClickedEvent) {
	rawKeyword := n.reconcileKeyword(ctx, ev.Keyword)
	keyword := model.NormalizeKeyword(rawKeyword)
	longURL := model.NormalizeURL(ev.URL)

	log := n.logger.With(zap.String("keyword", keyword), zap.String("event_id", ev.ID))
	if rawKeyword.IsStructured() || ev.URL.IsStructured() {
		log.Debug("normalized structured click input",
			zap.String("raw_keyword", rawKeyword.String()),
			zap.String("raw_url", ev.URL.String()),
			zap.String("longurl", longURL),
		)
	}

	settings, err := n.settings.Get(ctx)
	if err != nil {
		notificationsTotal.WithLabelValues(outcomeError).Inc()
		log.Error("failed to load notifier settings", zap.Error(err))
		return
	}

	if !settings.Watches(keyword) {
		notificationsTotal.WithLabelValues(outcomeFiltered).Inc()
		log.Debug("keyword not watched, skipping notification")
		return
	}

	if settings.WebhookURL == "" {
		notificationsTotal.WithLabelValues(outcomeNoWebhook).Inc()
		log.Debug("no webhook configured, skipping notification")
		return
	}

	if settings.RateLimiting {
		suppressed, err := n.limiter.ShouldSuppress(ctx, keyword, settings.RateLimitSeconds)
		if err != nil {
			log.Warn("rate limiter unavailable, notifying anyway", zap.Error(err))
		}
		if suppressed {
			notificationsTotal.WithLabelValues(outcomeRateLimited).Inc()
			log.Debug("notification rate limited", zap.Int("window_seconds", settings.RateLimitSeconds))
			return
		}
	}

	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = n.now()
	}
	record := BuildClickRecord(keyword, longURL, occurred, ev.Visitor, settings)
	payload := n.builder.Build(record, settings)

	if !n.dispatcher.Send(ctx, settings.WebhookURL, payload) {
		notificationsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Warn("click notification not delivered")
		return
	}
	notificationsTotal.WithLabelValues(outcomeSent).Inc()
	log.Debug("click notification sent")
}

// SendTest posts the fixed test message to the configured webhook.
func (n *Notifier) SendTest(ctx context.Context) error {
	settings, err := n.settings.Get(ctx)
	if err != nil {
		return err
	}
	if settings.WebhookURL == "" {
		n.logger.Warn("webhook test failed", zap.Error(ErrNoWebhook))
		return ErrNoWebhook
	}

	n.logger.Info("testing webhook", zap.String("webhook_url", settings.WebhookURL))
	if err := n.dispatcher.SendTest(ctx, settings.WebhookURL, n.builder.BuildTest(settings)); err != nil {
		n.logger.Warn("webhook test failed", zap.Error(err))
		return err
	}
	n.logger.Info("webhook test successful")
	return nil
}

// reconcileKeyword prefers the keyword captured at creation time and consumes it.
func (n *Notifier) reconcileKeyword(ctx context.Context, raw model.EventValue) model.EventValue {
	hint, err := n.store.Get(ctx, model.PendingHintKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			n.logger.Warn("failed to read keyword hint", zap.Error(err))
		}
		return raw
	}
	if len(hint) == 0 {
		return raw
	}

	if err := n.store.Delete(ctx, model.PendingHintKey); err != nil {
		n.logger.Warn("failed to clear keyword hint", zap.Error(err))
	}
	keywordHintsTotal.WithLabelValues("consumed").Inc()
	n.logger.Debug("using keyword captured at creation",
		zap.String("hint", string(hint)),
		zap.String("click_keyword", raw.String()),
	)
	return model.Scalar(string(hint))
}

// BuildClickRecord assembles the record for one click. Optional fields follow the include
// flags; empty lookups become "Unknown".
func BuildClickRecord(keyword, longURL string, at time.Time, v model.Visitor, s model.Settings) *model.ClickRecord {
	record := model.NewClickRecord(keyword, longURL, at.Format(recordTimeLayout))

	if s.IncludeIP {
		record.Set(model.FieldIP, orUnknown(v.IP))
	}
	if s.IncludeReferrer {
		record.Set(model.FieldReferrer, orUnknown(v.Referrer))
	}
	userAgent := orUnknown(v.UserAgent)
	if s.IncludeUserAgent {
		record.Set(model.FieldUserAgent, userAgent)
	}
	if s.IncludeLocation {
		record.Set(model.FieldLocation, orUnknown(v.Country))
	}
	if s.IncludesBrowserOS() && userAgent != model.Unknown {
		info := ClassifyUserAgent(userAgent)
		record.Set(model.FieldBrowser, info.Browser)
		record.Set(model.FieldOS, info.OS)
	}
	return record
}

func orUnknown(s string) string {
	if s == "" {
		return model.Unknown
	}
	return s
}

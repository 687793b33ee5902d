// Package webhook delivers JSON payloads to chat webhooks without ever failing the caller.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sifan077/clickhook/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNoURL      = errors.New("webhook: no URL provided")
	ErrInvalidURL = errors.New("webhook: URL is missing or malformed")
	ErrThrottled  = errors.New("webhook: send budget exhausted")
)

// StatusError reports a webhook answer outside 2xx.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook: http status %d: %s", e.Status, e.Body)
}

const (
	defaultAsyncTimeout = time.Second
	defaultSyncTimeout  = 5 * time.Second
	defaultTestTimeout  = 10 * time.Second
)

// Dispatcher validates, encodes and posts payloads. The delivery strategy is fixed at construction.
type Dispatcher struct {
	logger       *zap.Logger
	transport    Transport
	async        bool
	asyncTimeout time.Duration
	syncTimeout  time.Duration
	testTimeout  time.Duration
	limiter      *rate.Limiter
}

// New builds a dispatcher for cfg. The async capability is probed once here.
func New(cfg config.DispatchConfig, transport Transport, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		logger:       logger,
		transport:    transport,
		async:        DetectAsync(cfg.Mode, os.Getenv),
		asyncTimeout: orDefault(cfg.AsyncTimeout, defaultAsyncTimeout),
		syncTimeout:  orDefault(cfg.SyncTimeout, defaultSyncTimeout),
		testTimeout:  orDefault(cfg.TestTimeout, defaultTestTimeout),
	}
	if cfg.MaxPerMinute > 0 {
		d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxPerMinute)), cfg.MaxPerMinute)
	}
	logger.Info("webhook dispatcher ready",
		zap.Bool("async", d.async),
		zap.Duration("async_timeout", d.asyncTimeout),
		zap.Duration("sync_timeout", d.syncTimeout),
		zap.Int("max_per_minute", cfg.MaxPerMinute),
	)
	return d
}

// Async reports whether the fire-and-forget path is in use.
func (d *Dispatcher) Async() bool { return d.async }

// serverlessEnv marks runtimes that freeze the process once the response is written,
// which would strand a background request.
var serverlessEnv = []string{
	"AWS_LAMBDA_FUNCTION_NAME",
	"VERCEL",
	"FUNCTION_TARGET",
	"K_SERVICE",
}

// DetectAsync decides whether fire-and-forget delivery can be used.
func DetectAsync(mode string, getenv func(string) string) bool {
	switch mode {
	case config.DispatchSync:
		return false
	case config.DispatchAsync:
		return true
	}
	for _, key := range serverlessEnv {
		if getenv(key) != "" {
			return false
		}
	}
	return true
}

// ValidURL reports whether raw is an absolute http(s) URL with a host.
func ValidURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Send delivers payload and reports success. Failures are logged, never returned.
func (d *Dispatcher) Send(ctx context.Context, webhookURL string, payload any) bool {
	if !ValidURL(webhookURL) {
		d.logger.Debug("refusing to send to invalid webhook URL", zap.String("webhook_url", webhookURL))
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("failed to encode webhook payload", zap.Error(err))
		return false
	}

	if d.limiter != nil && !d.limiter.Allow() {
		deliveriesTotal.WithLabelValues(pathNone, resultThrottled).Inc()
		d.logger.Warn("webhook send dropped", zap.Error(ErrThrottled))
		return false
	}

	if d.async {
		status, err := d.transport.PostAsync(webhookURL, body, d.asyncTimeout)
		switch {
		case err != nil:
			deliveriesTotal.WithLabelValues(pathAsync, resultError).Inc()
			d.logger.Debug("async webhook send could not start, falling back to blocking", zap.Error(err))
		case status == 0:
			// written, but the webhook did not answer within the async deadline
			deliveriesTotal.WithLabelValues(pathAsync, resultUnconfirmed).Inc()
			return true
		case status < 200 || status >= 300:
			deliveriesTotal.WithLabelValues(pathAsync, resultHTTPError).Inc()
			d.logger.Warn("webhook returned non-2xx status", zap.Int("status", status), zap.String("path", pathAsync))
			return false
		default:
			deliveriesTotal.WithLabelValues(pathAsync, resultOK).Inc()
			return true
		}
	}

	return d.sendBlocking(ctx, webhookURL, body, d.syncTimeout) == nil
}

// SendTest always blocks, with the longer test deadline. Non-2xx answers come back as *StatusError.
func (d *Dispatcher) SendTest(ctx context.Context, webhookURL string, payload any) error {
	if strings.TrimSpace(webhookURL) == "" {
		return ErrNoURL
	}
	if !ValidURL(webhookURL) {
		return fmt.Errorf("%w: %s", ErrInvalidURL, webhookURL)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: encode payload: %w", err)
	}

	return d.sendBlocking(ctx, webhookURL, body, d.testTimeout)
}

func (d *Dispatcher) sendBlocking(ctx context.Context, webhookURL string, body []byte, timeout time.Duration) error {
	start := time.Now()
	status, resp, err := d.transport.Post(ctx, webhookURL, body, timeout)
	deliveryDuration.WithLabelValues(pathBlocking).Observe(time.Since(start).Seconds())

	if err != nil {
		deliveriesTotal.WithLabelValues(pathBlocking, resultError).Inc()
		d.logger.Warn("webhook request failed", zap.Error(err), zap.Int("status", status))
		return fmt.Errorf("webhook: request: %w", err)
	}
	if status < 200 || status >= 300 {
		deliveriesTotal.WithLabelValues(pathBlocking, resultHTTPError).Inc()
		d.logger.Warn("webhook returned non-2xx status",
			zap.Int("status", status),
			zap.ByteString("response", truncate(resp, 512)),
		)
		return &StatusError{Status: status, Body: resp}
	}
	deliveriesTotal.WithLabelValues(pathBlocking, resultOK).Inc()
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

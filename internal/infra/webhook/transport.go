package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Transport performs webhook POSTs.
type Transport interface {
	// PostAsync sends a POST bounded by timeout and waits at most that long for the status line.
	// It returns the status, or 0 when the request was written but no answer came in time.
	// An error means the request could not be written. The response body is discarded.
	PostAsync(url string, body []byte, timeout time.Duration) (status int, err error)
	// Post blocks until the response arrives or timeout elapses.
	Post(ctx context.Context, url string, body []byte, timeout time.Duration) (status int, respBody []byte, err error)
}

// HTTPTransport sends the blocking path through fiber's fasthttp agent and the short-deadline
// path through net/http, whose client trace reports when the request was written.
type HTTPTransport struct {
	tlsConfig *tls.Config
	async     *http.Client
}

// NewHTTPTransport verifies TLS peers and host names. tlsConfig may be nil.
func NewHTTPTransport(tlsConfig *tls.Config) *HTTPTransport {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tlsConfig
	return &HTTPTransport{
		tlsConfig: tlsConfig,
		async: &http.Client{
			Transport: base,
			// a redirect is a failed delivery, same as on the blocking path
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func (t *HTTPTransport) PostAsync(url string, body []byte, timeout time.Duration) (int, error) {
	// Detached from the caller: the visitor's request may finish before the webhook answers.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	var written atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				written.Store(true)
			}
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		cancel()
		return 0, err
	}
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := t.async.Do(req)
	if err != nil {
		timedOut := ctx.Err() != nil
		cancel()
		if timedOut && written.Load() {
			return 0, nil
		}
		return 0, err
	}

	go func() {
		defer cancel()
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return resp.StatusCode, nil
}

func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte, timeout time.Duration) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	agent := fiber.Post(url)
	agent.TLSConfig(t.tlsConfig)
	agent.ContentType(fiber.MIMEApplicationJSON)
	agent.Body(body)
	agent.Timeout(timeout)

	if err := agent.Parse(); err != nil {
		return 0, nil, err
	}

	status, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return status, resp, errors.Join(errs...)
	}
	return status, resp, nil
}

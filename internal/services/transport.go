package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/songbridge/internal/shared"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
	userAgent      = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
)

// transport is the HTTP plumbing shared by every adapter.
//
// It is the single place where transport errors, HTTP statuses and decode failures are turned into a
// classified [shared.ProviderError].
type transport struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
	headers  map[string]string
	logger   *log.Logger
}

func newTransport(provider string, opts Options, headers map[string]string) *transport {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	h := map[string]string{"User-Agent": userAgent}
	for k, v := range headers {
		h[k] = v
	}
	if opts.Cookie != "" {
		h["Cookie"] = opts.Cookie
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &transport{
		provider: provider,
		client:   client,
		limiter:  limiter,
		headers:  h,
		logger:   logger.With("provider", provider),
	}
}

// do sends req after waiting for the rate limiter. Non-2xx responses are classified and closed.
func (t *transport) do(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, shared.FromTransport(t.provider, op, err)
	}

	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("request failed", "op", op, "url", req.URL.Redacted(), "error", err)
		return nil, shared.FromTransport(t.provider, op, err)
	}
	t.logger.Debug("request", "op", op, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, shared.FromStatus(t.provider, op, resp.StatusCode)
	}
	return resp, nil
}

func (t *transport) get(ctx context.Context, op, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, shared.NewProviderError(t.provider, op, shared.KindRejected, fmt.Errorf("failed to create request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return t.read(ctx, op, req)
}

func (t *transport) post(ctx context.Context, op, rawURL, contentType string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, shared.NewProviderError(t.provider, op, shared.KindRejected, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return t.read(ctx, op, req)
}

func (t *transport) read(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	resp, err := t.do(ctx, op, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, shared.FromTransport(t.provider, op, err)
	}
	return body, nil
}

// getJSON fetches rawURL and decodes the body into out.
func (t *transport) getJSON(ctx context.Context, op, rawURL string, out any, headers map[string]string) error {
	body, err := t.get(ctx, op, rawURL, headers)
	if err != nil {
		return err
	}
	return t.decode(op, body, out)
}

// postJSON marshals in, posts it and decodes the response into out.
func (t *transport) postJSON(ctx context.Context, op, rawURL string, in, out any, headers map[string]string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return shared.NewProviderError(t.provider, op, shared.KindRejected, fmt.Errorf("failed to marshal request: %w", err))
	}
	body, err := t.post(ctx, op, rawURL, "application/json", payload, headers)
	if err != nil {
		return err
	}
	return t.decode(op, body, out)
}

func (t *transport) decode(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return t.parseError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// location issues a GET without following redirects and returns the Location header.
func (t *transport) location(ctx context.Context, op, rawURL string, headers map[string]string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, shared.NewProviderError(t.provider, op, shared.KindRejected, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	noFollow := *t.client
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	nt := *t
	nt.client = &noFollow

	resp, err := nt.do(ctx, op, req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.Header.Get("Location"), resp.StatusCode, nil
}

func (t *transport) parseError(op string, err error) error {
	return shared.NewProviderError(t.provider, op, shared.KindParse, err)
}

func (t *transport) notPlayable(op, reason string) error {
	return shared.NewProviderError(t.provider, op, shared.KindNotPlayable, fmt.Errorf("%s", reason))
}

func (t *transport) rejected(op string, err error) error {
	return shared.NewProviderError(t.provider, op, shared.KindRejected, err)
}

// Package gemini is the HTTP client for the Generative Language API. One
// call per generation, keyed by whichever credential the caller holds (a
// pooled secret or the user's own key).
package gemini

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"svgforge-go/internal/config"
	"svgforge-go/internal/monitoring"
	"svgforge-go/internal/monitoring/tracing"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialTimeout           = 10 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 120 * time.Second
)

// Request is a single generateContent call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	// Images are optional inline PNG attachments, base64-encoded.
	Images []string
	// Temperature <= 0 leaves the model default in place.
	Temperature float64
}

// Client talks to the Generative Language API.
type Client struct {
	cfg *config.UpstreamConfig
	cli *http.Client
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func New(cfg *config.UpstreamConfig) *Client {
	tr := &http.Transport{
		Proxy: getProxyFunc(cfg.ProxyURL),
		DialContext: (&net.Dialer{
			Timeout:   durationOrDefault(cfg.DialTimeoutSec, defaultDialTimeout),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   durationOrDefault(cfg.TLSHandshakeTimeoutSec, defaultTLSHandshakeTimeout),
		ResponseHeaderTimeout: durationOrDefault(cfg.ResponseHeaderTimeoutSec, defaultResponseHeaderTimeout),
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{cfg: cfg, cli: &http.Client{Transport: tr, Timeout: 0}}
}

// getProxyFunc returns appropriate proxy function based on configuration
func getProxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL != "" {
		if parsedURL, err := url.Parse(proxyURL); err == nil {
			return http.ProxyURL(parsedURL)
		}
	}
	return http.ProxyFromEnvironment
}

// Generate runs one generateContent call with apiKey and returns the text of
// the first candidate.
func (c *Client) Generate(ctx context.Context, apiKey string, req Request) (string, error) {
	payload, err := buildPayload(req)
	if err != nil {
		return "", fmt.Errorf("build payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Model)

	ctx, span := tracing.StartSpan(ctx, "upstream/gemini", "Gemini.Generate",
		trace.WithAttributes(
			attribute.String("http.method", http.MethodPost),
			attribute.String("gemini.model", c.cfg.Model),
		))
	defer span.End()

	body, status, retries, err := c.postWithRetry(ctx, endpoint, apiKey, payload)
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Int("upstream.retry_total", retries),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if status != http.StatusOK {
		span.SetStatus(codes.Error, fmt.Sprintf("http_status=%d", status))
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = string(body)
		}
		return "", fmt.Errorf("upstream returned status %d: %s", status, truncate(msg, 300))
	}
	span.SetStatus(codes.Ok, "")

	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text").String()
	if text == "" {
		reason := gjson.GetBytes(body, "candidates.0.finishReason").String()
		return "", fmt.Errorf("upstream returned no text (finishReason=%q)", reason)
	}
	return text, nil
}

func buildPayload(req Request) ([]byte, error) {
	body := []byte(`{}`)
	var err error

	if req.SystemPrompt != "" {
		body, err = sjson.SetBytes(body, "systemInstruction.parts.0.text", req.SystemPrompt)
		if err != nil {
			return nil, err
		}
	}
	body, err = sjson.SetBytes(body, "contents.0.role", "user")
	if err != nil {
		return nil, err
	}
	body, err = sjson.SetBytes(body, "contents.0.parts.0.text", req.UserPrompt)
	if err != nil {
		return nil, err
	}
	for i, img := range req.Images {
		prefix := fmt.Sprintf("contents.0.parts.%d.inlineData", i+1)
		if body, err = sjson.SetBytes(body, prefix+".mimeType", "image/png"); err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, prefix+".data", img); err != nil {
			return nil, err
		}
	}
	if req.Temperature > 0 {
		body, err = sjson.SetBytes(body, "generationConfig.temperature", req.Temperature)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (c *Client) postWithRetry(ctx context.Context, endpoint, apiKey string, payload []byte) ([]byte, int, int, error) {
	maxRetries := c.cfg.RetryMax
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	lastStatus := 0
	for attempt := 0; ; attempt++ {
		start := time.Now()
		body, status, retryAfter, err := c.doOnce(ctx, endpoint, apiKey, payload)
		monitoring.UpstreamRequestDuration.WithLabelValues(statusClass(status)).Observe(time.Since(start).Seconds())
		monitoring.UpstreamRequestsTotal.WithLabelValues(statusClass(status)).Inc()

		retry, delay := shouldRetry(status, err, attempt)
		if !retry || attempt >= maxRetries {
			return body, status, attempt, err
		}
		// The server's Retry-After wins over our own backoff.
		if d, ok := parseRetryAfter(retryAfter); ok {
			delay = d
		}
		lastErr = err
		lastStatus = status

		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return nil, lastStatus, attempt, lastErr
		case <-time.After(delay):
		}
	}
}

func (c *Client) doOnce(ctx context.Context, endpoint, apiKey string, payload []byte) ([]byte, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	defer resp.Body.Close()

	retryAfter := resp.Header.Get("Retry-After")
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, resp.StatusCode, retryAfter, fmt.Errorf("read upstream body: %w", err)
	}
	return body, resp.StatusCode, retryAfter, nil
}

func statusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", code/100)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

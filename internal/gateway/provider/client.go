package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"daybot/internal/logger"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	maxBackoff        = 8 * time.Second
)

// ErrEmptyResponse is returned when the backend answered without any text.
var ErrEmptyResponse = errors.New("provider: empty response")

// httpClient posts JSON bodies and retries 429/5xx with Retry-After support.
type httpClient struct {
	client     *http.Client
	maxRetries int
	headers    map[string]string
	sleep      func(ctx context.Context, d time.Duration) error
}

func newHTTPClient(timeout time.Duration, headers map[string]string) *httpClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &httpClient{
		client:     &http.Client{Timeout: timeout},
		maxRetries: defaultMaxRetries,
		headers:    headers,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *httpClient) postJSON(ctx context.Context, url string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode/100 == 2 {
			return raw, nil
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, errorMessage(raw, resp.Status))
		if !retryable(resp.StatusCode) || attempt == c.maxRetries {
			break
		}
		if err := c.sleep(ctx, retryWait(resp.Header.Get("Retry-After"), attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *httpClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("status=%d: %s", resp.StatusCode, errorMessage(raw, resp.Status))
	}
	return raw, nil
}

func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryWait honours Retry-After seconds, else backs off 0.8s, 1.6s, 3.2s up to 8s.
func retryWait(header string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	wait := (800 * time.Millisecond) << attempt
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}

// errorMessage pulls the provider error text out of either {"error":{"message"}}
// or {"error":"..."} bodies.
func errorMessage(raw []byte, fallback string) string {
	res := gjson.GetBytes(raw, "error.message")
	if !res.Exists() {
		res = gjson.GetBytes(raw, "error")
	}
	msg := strings.TrimSpace(res.String())
	if msg == "" {
		return fallback
	}
	return msg
}

func trimBase(url, suffix string) string {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	return strings.TrimSuffix(url, suffix)
}

func finish(id, symbol string, raw []byte, path string) (string, error) {
	logger.LogLLMResponse(id, symbol, string(raw))
	text := strings.TrimSpace(gjson.GetBytes(raw, path).String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Package discord is a minimal client for the parts of the Discord
// REST and gateway APIs the bot consumes: channel/message upkeep,
// reaction markers, member role changes, history reads, and the
// websocket event stream.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://discord.com/api/v10"

var (
	// ErrNotFound maps HTTP 404 responses (deleted message, unknown
	// channel) so callers can distinguish "gone" from delivery failure.
	ErrNotFound = errors.New("discord: not found")
)

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func New(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
	}
}

// HTTPClient exposes the underlying transport so attachment downloads
// share one session with the REST calls.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

type apiError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// doJSON performs one authenticated API call, retrying on rate limits
// and transient server errors. A nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	if c == nil || c.http == nil {
		return fmt.Errorf("discord client is not initialized")
	}
	if c.token == "" {
		return fmt.Errorf("discord token is required")
	}

	var bodyRaw []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal discord payload: %w", err)
		}
		bodyRaw = raw
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var body io.Reader
		if bodyRaw != nil {
			body = bytes.NewReader(bodyRaw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		if bodyRaw != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		status := 0
		headers := http.Header{}
		if err != nil {
			lastErr = err
		} else {
			status = resp.StatusCode
			headers = resp.Header
			respRaw, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = readErr
			case status == http.StatusNotFound:
				return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
			case status >= 200 && status < 300:
				if out == nil || len(bytes.TrimSpace(respRaw)) == 0 {
					return nil
				}
				if err := json.Unmarshal(respRaw, out); err != nil {
					return fmt.Errorf("decode discord response %s %s: %w", method, path, err)
				}
				return nil
			default:
				var ae apiError
				_ = json.Unmarshal(respRaw, &ae)
				if strings.TrimSpace(ae.Message) != "" {
					lastErr = fmt.Errorf("discord %s %s http %d: %s (code %d)", method, path, status, ae.Message, ae.Code)
				} else {
					lastErr = fmt.Errorf("discord %s %s http %d", method, path, status)
				}
			}
		}

		if attempt >= maxAttempts {
			break
		}
		if status == 0 {
			status = http.StatusBadGateway
		}
		wait, retryable := retryDelay(status, headers, attempt)
		if !retryable {
			break
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

func retryDelay(status int, headers http.Header, attempt int) (time.Duration, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := strings.TrimSpace(headers.Get("Retry-After"))
		if retryAfter == "" {
			return 1 * time.Second, true
		}
		secs, err := strconv.ParseFloat(retryAfter, 64)
		if err != nil || secs <= 0 {
			return 1 * time.Second, true
		}
		return time.Duration(secs * float64(time.Second)), true
	case status >= 500 && status <= 599:
		switch attempt {
		case 1:
			return 300 * time.Millisecond, true
		case 2:
			return 1 * time.Second, true
		default:
			return 2 * time.Second, true
		}
	default:
		return 0, false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

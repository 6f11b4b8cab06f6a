// Package feed fetches raw JSON payloads published by ingestion sources.
package feed

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stayhub/internal/adapters/observability"
	"stayhub/internal/domain"
)

const maxAttempts = 4

type Client struct {
	hc *http.Client
	rl *rate.Limiter
}

// New builds a client whose timeout bounds one whole download, body included.
// Payload size is not capped.
func New(timeout time.Duration, rps int) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		hc: &http.Client{Timeout: timeout},
		rl: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

var (
	errUnsupportedType = errors.New("unsupported source type")
	errNotJSON         = errors.New("payload is neither a JSON object nor an array")
)

// Fetch downloads src and splits the payload into items: a bare object is one
// item, an array yields its elements. Every failure is a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, src domain.Source) ([]json.RawMessage, error) {
	fail := func(status int, err error) error {
		return &domain.FetchError{Source: src.Name, URL: src.URL, StatusCode: status, Err: err}
	}
	if src.Type != "" && !strings.EqualFold(src.Type, "json") {
		return nil, fail(0, fmt.Errorf("%w: %q", errUnsupportedType, src.Type))
	}

	start := time.Now()
	body, status, err := c.get(ctx, src.URL)
	observability.ObserveExternal(src.Name, "fetch", status, time.Since(start))
	if err != nil {
		return nil, fail(status, err)
	}
	items, err := splitItems(body)
	if err != nil {
		return nil, fail(status, err)
	}
	return items, nil
}

func splitItems(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errNotJSON
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return items, nil
	case '{':
		var one json.RawMessage
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		return []json.RawMessage{one}, nil
	default:
		return nil, errNotJSON
	}
}

// get performs a GET with client-side rate limiting and retries.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, 0, err
	}

	var lastErr error
	lastStatus := 0
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "stayhub-ingestor/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			// network error, timeout or context canceled
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			// a blown download timeout aborts this source instead of retrying
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, 0, err
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, 0, lastErr
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			b, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
			}
			return b, resp.StatusCode, nil

		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusInternalServerError,
			resp.StatusCode == http.StatusBadGateway, resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode == http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, lastStatus, ctx.Err()
			}
			return nil, lastStatus, lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, resp.StatusCode, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return nil, lastStatus, lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff: 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

// Package truckmate is a client for the TruckMate REST API.
package truckmate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
	"github.com/smartgistics/fleetmate-sub000/internal/odata"
)

// Driver is the registry name of this backend.
const Driver = "truckmate"

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "FleetMate/dev"
	defaultMaxRetry  = 3
	defaultRetryBase = 250 * time.Millisecond
	maxRetryWait     = 30 * time.Second
	maxErrorBody     = 64 << 10
)

// Client talks to one TruckMate instance.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	ua      string

	maxRetries int
	retryBase  time.Duration
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Open is the backend.Factory of this driver.
func Open(cfg backend.Config) (backend.Backend, error) {
	return New(cfg), nil
}

// New creates a client. A missing base URL is not an error here: every
// call of the returned client fails with backend.ErrNotConfigured.
func New(cfg backend.Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetry
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     cfg.APIKey,
		ua:         cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		limiter:    rate.NewLimiter(limit, burst),
		log:        cfg.Logger.With().Str("component", "truckmate").Logger(),
	}
}

// Name implements backend.Backend.
func (c *Client) Name() string { return Driver }

// Configured reports whether the client has a base URL.
func (c *Client) Configured() bool { return c.baseURL != "" }

// Query encodes list params as TruckMate query parameters.
func Query(p listview.Params) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	if p.Filter != "" {
		q.Set("$filter", p.Filter)
	}
	if p.OrderBy != "" {
		q.Set("$orderBy", p.OrderBy)
	}
	if len(p.Select) > 0 {
		q.Set("$select", odata.JoinList(p.Select))
	}
	if len(p.Expand) > 0 {
		q.Set("$expand", odata.JoinList(p.Expand))
	}
	return q
}

// List implements backend.Backend. Items are read from the entity's
// collection key and the total from "count".
func (c *Client) List(ctx context.Context, e model.Entity, p listview.Params) (backend.RawPage, error) {
	body, err := c.do(ctx, http.MethodGet, e.Path, Query(p), nil)
	if err != nil {
		return backend.RawPage{}, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return backend.RawPage{}, fmt.Errorf("failed to decode %s response: %w", e.Name, err)
	}

	page := backend.RawPage{Items: []json.RawMessage{}}
	if raw, ok := envelope[e.Collection]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return backend.RawPage{}, fmt.Errorf("failed to decode %s items: %w", e.Name, err)
		}
	}
	if raw, ok := envelope["count"]; ok {
		if err := json.Unmarshal(raw, &page.Total); err != nil {
			return backend.RawPage{}, fmt.Errorf("failed to decode %s count: %w", e.Name, err)
		}
	} else {
		page.Total = p.Offset + len(page.Items)
	}
	return page, nil
}

// Get implements backend.Backend.
func (c *Client) Get(ctx context.Context, e model.Entity, id string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, e.Path+"/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Create implements backend.Backend. TruckMate takes and returns arrays
// under the collection key; the first returned record is the result.
func (c *Client) Create(ctx context.Context, e model.Entity, payload json.RawMessage) (json.RawMessage, error) {
	if !e.Creatable {
		return nil, backend.ErrUnsupported
	}
	reqBody, err := json.Marshal(map[string][]json.RawMessage{e.Collection: {payload}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", e.Name, err)
	}

	body, err := c.do(ctx, http.MethodPost, e.Path, nil, reqBody)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity) {
			return nil, apiErr.validation()
		}
		return nil, err
	}

	var envelope map[string][]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		if items := envelope[e.Collection]; len(items) > 0 {
			return items[0], nil
		}
	}
	return json.RawMessage(body), nil
}

// Ping implements backend.Backend with the cheapest list call available.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/clients", url.Values{"limit": {"1"}, "$select": {"clientId"}}, nil)
	return err
}

// Close implements backend.Backend.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do issues one logical request with throttling and retries. Transport
// errors, 429 and 5xx responses are retried; Retry-After overrides the
// computed backoff.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	if !c.Configured() {
		return nil, backend.ErrNotConfigured
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	hint := &retryAfterBackOff{BackOff: c.newBackOff()}
	policy := backoff.WithContext(backoff.WithMaxRetries(hint, uint64(c.maxRetries)), ctx)

	var out []byte
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.ua)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("truckmate request failed: %w", err)
		}
		defer resp.Body.Close()

		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("latency", time.Since(start)).
			Msg("truckmate http response")

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}
			return nil
		}

		apiErr := decodeAPIError(resp)
		if !retryable(resp.StatusCode) {
			return backoff.Permanent(apiErr)
		}
		hint.next = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return apiErr
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Int("attempt", attempt).Str("path", path).Msg("truckmate request retrying")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase
	b.MaxInterval = maxRetryWait
	b.MaxElapsedTime = 0
	return b
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryAfterBackOff lets a server supplied delay replace the next computed
// interval once.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	computed := b.BackOff.NextBackOff()
	if computed == backoff.Stop {
		return backoff.Stop
	}
	if b.next > 0 {
		d := b.next
		b.next = 0
		return d
	}
	return computed
}

// parseRetryAfter reads a Retry-After value in seconds or as an HTTP date.
// Zero means no usable hint.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = t.Sub(now)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxRetryWait)
}

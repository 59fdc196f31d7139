// Package tariffapi is the HTTP client for the box tariff endpoint
package tariffapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/platform/validate"
	"tariffsync/internal/services/tariffs/domain"
)

const (
	baseURLDefault   = "https://common-api.wildberries.ru/api/v1/tariffs/box"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "tariffsync"
	defaultMaxRetry  = 3
	defaultRetryBase = time.Second
	maxBody          = 8 << 20
)

// Options configures the Client
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration

	// retries cover transport errors, 429 and 5xx only
	MaxRetries int
	RetryBase  time.Duration
}

// Client fetches tariff snapshots, one request per call plus retries
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a Client with defaults for every zero option
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("tariffapi"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Fetch implements domain.SourcePort: GET ?date=yyyy-MM-dd for the calendar day of `day`
func (c *Client) Fetch(ctx context.Context, day time.Time) (domain.Snapshot, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return domain.Snapshot{}, perr.Wrapf(err, perr.ErrorCodeConfiguration, "tariff api url %q", c.opts.BaseURL)
	}
	qs := u.Query()
	qs.Set("date", day.Format("2006-01-02"))
	u.RawQuery = qs.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return domain.Snapshot{}, err
	}
	return decode(body)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeTransport, "tariff api fetch cancelled")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "tariff api new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if c.opts.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.opts.Token)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if !c.shouldRetry(attempts) || ctx.Err() != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeTransport, "tariff api request failed")
			}
			back := c.backoff(attempts)
			logger.C(ctx).Warn().Err(err).Dur("retry_in", back).Int("attempt", attempts).Msg("tariff api transport error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeTransport, "tariff api fetch cancelled")
			}
			attempts++
			continue
		}

		c.log.Debug().
			Str("url", target).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("tariff api response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
			_ = resp.Body.Close()
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeTransport, "tariff api read body failed")
			}
			return b, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp.Header)
			if wait <= 0 {
				wait = c.backoff(attempts)
			}
			tail := readTail(resp.Body)
			if !c.shouldRetry(attempts) {
				return nil, perr.Transportf("tariff api status %d body %s", resp.StatusCode, tail)
			}
			logger.C(ctx).Warn().Int("status", resp.StatusCode).Dur("retry_in", wait).Int("attempt", attempts).Msg("tariff api transient status retrying")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeTransport, "tariff api fetch cancelled")
			}
			attempts++
			continue
		default:
			tail := readTail(resp.Body)
			return nil, perr.Transportf("tariff api unexpected status %d body %s", resp.StatusCode, tail)
		}
	}
}

// decode parses and validates a response body into a Snapshot
func decode(body []byte) (domain.Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Snapshot{}, perr.Wrap(err, perr.ErrorCodeTransport, "tariff api invalid json")
	}
	if err := validate.Struct(env); err != nil {
		return domain.Snapshot{}, perr.Wrap(err, perr.ErrorCodeTransport, "tariff api payload rejected")
	}
	day, err := validate.ParseDate(env.Response.Data.DtTillMax)
	if err != nil {
		return domain.Snapshot{}, perr.Wrap(err, perr.ErrorCodeTransport, "tariff api dtTillMax")
	}
	return domain.Snapshot{DtTillMax: day, Items: env.Response.Data.WarehouseList}, nil
}

// sleepCtx waits d or until ctx ends, whichever comes first
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

func (c *Client) backoff(attempt int) time.Duration {
	ms := int64(c.opts.RetryBase/time.Millisecond) << uint(attempt)
	capMs := int64(time.Minute / time.Millisecond)
	if ms > capMs || ms <= 0 {
		ms = capMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) shouldRetry(attempt int) bool { return attempt < c.opts.MaxRetries }

func retryAfter(h http.Header) time.Duration {
	s := h.Get("Retry-After")
	if s == "" {
		s = h.Get("X-Ratelimit-Retry")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func readTail(rc io.ReadCloser) string {
	b, _ := io.ReadAll(io.LimitReader(rc, 2048))
	_ = rc.Close()
	return string(b)
}

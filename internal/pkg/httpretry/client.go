// Package httpretry retries provider API calls that fail with rate limits,
// 5xx responses or transport errors, using capped exponential backoff with
// full jitter.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/notify-engine/internal/pkg/logger"
)

var log = logger.Component("httpretry")

// HTTPDoer executes HTTP requests. *http.Client and *Client satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Policy bounds the retries of one request.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy is the policy of the SparkPost transport.
var DefaultPolicy = Policy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// backoff is full jitter over min(MaxDelay, BaseDelay*2^(attempt-1)), never
// below a tenth of BaseDelay.
func (p Policy) backoff(attempt int, jitter float64) time.Duration {
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}
	ceiling := p.BaseDelay << shift
	if ceiling <= 0 || ceiling > p.MaxDelay {
		ceiling = p.MaxDelay
	}
	d := time.Duration(jitter * float64(ceiling))
	if floor := p.BaseDelay / 10; d < floor {
		d = floor
	}
	return d
}

// Client wraps an HTTPDoer with retries. Request bodies must be replayable
// (http.NewRequest sets GetBody for the common reader types).
type Client struct {
	doer   HTTPDoer
	policy Policy
	jitter func() float64
}

// New wraps doer. A nil doer gets an http.Client with a 30s timeout.
func New(doer HTTPDoer, policy Policy) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{doer: doer, policy: policy.normalized(), jitter: rand.Float64}
}

// Do sends req, retrying 429/5xx responses and transport errors. Other
// responses and context cancellation return at once. When retries run out
// the last response is returned unread so the caller can report its body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return nil, err
			}
		}

		resp, err := c.doer.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
		case !isRetryableStatus(resp.StatusCode) || attempt == c.policy.MaxRetries:
			return resp, nil
		default:
			lastErr = fmt.Errorf("httpretry: %s returned %d", req.URL.Host, resp.StatusCode)
		}
		if attempt == c.policy.MaxRetries {
			return nil, lastErr
		}

		wait := c.policy.backoff(attempt+1, c.jitter())
		if resp != nil {
			if ra, ok := retryAfter(resp, c.policy.MaxDelay); ok {
				wait = ra
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		log.Warn("retrying request",
			"attempt", attempt+1, "max", c.policy.MaxRetries, "method", req.Method,
			"host", req.URL.Host, "path", req.URL.Path, "wait", wait, "error", lastErr)

		if err := sleep(ctx, wait); err != nil {
			return nil, lastErr
		}
	}
}

func rewind(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("httpretry: reset request body: %w", err)
	}
	req.Body = body
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter reads a Retry-After header given in seconds, capped at limit.
func retryAfter(resp *http.Response, limit time.Duration) (time.Duration, bool) {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > limit {
		d = limit
	}
	return d, true
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

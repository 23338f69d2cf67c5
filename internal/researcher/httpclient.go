package researcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Client wraps http.Client with a rate limiter (per spec's provider-side
// throttling) and an exponential-backoff retry around transient failures,
// shared by every concrete provider so none reimplements its own retry
// loop.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a Client allowing at most ratePerSecond requests/second
// with the given burst, and a 20s per-request timeout.
func NewClient(ratePerSecond float64, burst int) *Client {
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	if burst <= 0 {
		burst = 5
	}
	return &Client{
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Do executes req, retrying transient (5xx or network) failures with
// exponential backoff up to 3 attempts, honoring the rate limiter before
// every attempt including the first.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		r, err := c.http.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= 500 {
			body, _ := io.ReadAll(r.Body)
			r.Body.Close()
			return &httpStatusError{status: r.StatusCode, body: string(body)}
		}
		resp = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return "provider request failed with status " + http.StatusText(e.status) + ": " + e.body
}

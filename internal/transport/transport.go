// Package transport issues requests against the backend through a primary
// endpoint with a single fallback. It is the only component that knows where
// the backend lives.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrAllEndpointsFailed is the single outcome reported when both endpoints
// fail, whatever the mix of timeouts and error statuses. Per-attempt detail
// is logged, never returned.
var ErrAllEndpointsFailed = fmt.Errorf("could not reach the server: check connectivity or retry later")

// state drives the two-stage attempt sequence. The machine is linear: a
// failed primary attempt advances to fallback, a failed fallback attempt
// ends the call.
type state int

const (
	tryingPrimary state = iota
	tryingFallback
	done
)

// Response is the successful outcome of a Do call. The body is fully read
// before the attempt's deadline is released.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client tries the primary endpoint first and the fallback endpoint second,
// each under its own fresh deadline. Worst-case latency is 2 x timeout; the
// two attempts are never raced concurrently, so a working primary connection
// is never wasted.
type Client struct {
	primary    string
	fallback   string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a Client for the given base URLs. timeout bounds each attempt
// independently, not the call as a whole.
func New(primary, fallback string, timeout time.Duration) *Client {
	return &Client{
		primary:  strings.TrimRight(primary, "/"),
		fallback: strings.TrimRight(fallback, "/"),
		timeout:  timeout,
		// Per-attempt deadlines come from the request context.
		httpClient: &http.Client{Timeout: 0},
	}
}

// Do sends one logical request. rawQuery is appended as-is when non-empty;
// body, when non-nil, is JSON-encoded. Success is decided purely by status
// classification (2xx). Cancelling ctx aborts whichever attempt is in
// flight and returns the context error.
func (c *Client) Do(ctx context.Context, method, path, rawQuery string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		payload = data
	}

	url := path
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	for st := tryingPrimary; st != done; st++ {
		base := c.primary
		if st == tryingFallback {
			base = c.fallback
		}

		resp, err := c.attempt(ctx, method, base+url, payload)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Debug("endpoint attempt failed", "endpoint", base, "error", err)
	}

	return nil, ErrAllEndpointsFailed
}

func (c *Client) attempt(ctx context.Context, method, url string, payload []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

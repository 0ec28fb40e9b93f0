// Package api wraps the Tabbycat JSON-over-HTTPS API behind a rate-limited
// request client.
//
// All outbound traffic funnels through Client.Do, which owns the shared
// backoff state: when any in-flight call observes sustained throttling, the
// cool-down it computes is published so that every subsequent call (including
// concurrent ones) starts by waiting it out. A single success resets the
// shared state to zero.
//
// Collections are fetched with a single GET per resource; the importer works
// against whole entity sets, not pages.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RequestFactory builds a fresh request for one attempt. It is invoked once
// per attempt because request bodies are not reusable across retries.
type RequestFactory func() (*http.Request, error)

// RemoteError reports a non-2xx, non-429 response. These are never retried:
// the run aborts and the operator fixes the input.
type RemoteError struct {
	Method  string
	URL     string
	Status  int
	Body    string
	Payload string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Client issues authenticated requests against one Tabbycat instance.
//
// The zero value is not usable; construct with New.
type Client struct {
	httpClient *http.Client
	baseURL    string
	slug       string
	token      string
	logger     *zap.Logger

	// backoffUnit is the unit of the 429 backoff schedule. Production uses
	// one second; tests shrink it so retries run in milliseconds.
	backoffUnit time.Duration

	// cooldown is the shared backoff state in nanoseconds. It only grows
	// while calls are being throttled and resets to zero on any success.
	cooldown atomic.Int64
}

// New creates a client for the given Tabbycat base URL (scheme and host,
// no trailing slash), tournament slug and API token.
//
// If logger is nil, a no-op logger is used.
func New(baseURL, slug, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		slug:        slug,
		token:       token,
		logger:      logger,
		backoffUnit: time.Second,
	}
}

// SetBackoffUnit overrides the backoff time unit. Intended for tests.
func (c *Client) SetBackoffUnit(unit time.Duration) { c.backoffUnit = unit }

// SetHTTPClient overrides the underlying transport. Intended for tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// apiAddr returns the versioned API root.
func (c *Client) apiAddr() string { return c.baseURL + "/api/v1" }

// tournamentURL builds BASE/api/v1/tournaments/{slug}/{resource...}.
func (c *Client) tournamentURL(parts ...string) string {
	return c.apiAddr() + "/tournaments/" + c.slug + "/" + strings.Join(parts, "/")
}

// Do executes a request with 429 backoff and shared cool-down handling.
//
// Behavior:
//   - If the shared cool-down is non-zero, sleep it off before the first
//     attempt.
//   - 2xx: reset the shared cool-down and return the response. The caller
//     owns the body.
//   - 429: wait 0.5 units, doubling on each further 429. Once the computed
//     wait reaches 0.95 units, the rounded wait is published to the shared
//     state. There is no retry cap; a persistently throttling server stalls
//     the run rather than failing it.
//   - Any other status: the body is consumed, the failure is logged with the
//     request payload, and a *RemoteError is returned.
func (c *Client) Do(ctx context.Context, build RequestFactory) (*http.Response, error) {
	if d := time.Duration(c.cooldown.Load()); d > 0 {
		if err := sleepCtx(ctx, d); err != nil {
			return nil, err
		}
	}

	var wait time.Duration
	for {
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Token "+c.token)
		if req.Body != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("request to %s failed: %w", req.URL, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.cooldown.Store(0)
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if wait == 0 {
				wait = c.backoffUnit / 2
			}
			if wait >= time.Duration(0.95*float64(c.backoffUnit)) {
				c.cooldown.Store(int64(wait.Round(c.backoffUnit)))
			}
			c.logger.Debug("rate limited, backing off",
				zap.String("url", req.URL.String()),
				zap.Duration("wait", wait))
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			wait *= 2
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		remoteErr := &RemoteError{
			Method:  req.Method,
			URL:     req.URL.String(),
			Status:  resp.StatusCode,
			Body:    string(body),
			Payload: requestPayload(req),
		}
		c.logger.Error("request rejected",
			zap.String("method", remoteErr.Method),
			zap.String("url", remoteErr.URL),
			zap.Int("status", remoteErr.Status),
			zap.String("body", remoteErr.Body),
			zap.String("payload", remoteErr.Payload))
		return nil, remoteErr
	}
}

// requestPayload re-reads the request body for diagnostics. GetBody is set
// for every request built from a byte buffer, which covers all our writes.
func requestPayload(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	rc, err := req.GetBody()
	if err != nil {
		return ""
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return ""
	}
	return string(b)
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

// getJSON GETs url and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	resp, err := c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	})
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// sendJSON issues method (POST/PUT/PATCH) with a JSON payload and decodes
// the response into out when out is non-nil.
func (c *Client) sendJSON(ctx context.Context, method, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", url, err)
	}
	resp, err := c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequest(method, url, bytes.NewReader(body))
	})
	if err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil
	}
	return c.decode(resp, out)
}

// deleteResource DELETEs the resource at url.
func (c *Client) deleteResource(ctx context.Context, url string) error {
	resp, err := c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodDelete, url, nil)
	})
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// decode reads and unmarshals a response body. Decode failures are fatal to
// the run, so the raw body is logged for diagnosis.
func (c *Client) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("failed to decode API response",
			zap.String("url", resp.Request.URL.String()),
			zap.Error(err),
			zap.String("body", string(raw)))
		return fmt.Errorf("failed to decode response from %s: %w", resp.Request.URL, err)
	}
	return nil
}

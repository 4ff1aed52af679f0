package cdp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
)

// errNoDebuggerURL marks an endpoint that answered but exposes no browser
// websocket. Polling it again does not help.
var errNoDebuggerURL = errors.New("did not report a websocket debugger url")

// versionInfo is the payload of GET /json/version.
type versionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// targetInfo is one entry of GET /json/list.
type targetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// endpointClient talks to the DevTools HTTP endpoint of a browser.
type endpointClient struct {
	base   string
	client *http.Client
}

func newEndpointClient(endpoint string, client *http.Client) *endpointClient {
	return &endpointClient{base: strings.TrimRight(endpoint, "/"), client: client}
}

func (c *endpointClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Version queries the endpoint. It fails fast when nothing is listening.
func (c *endpointClient) Version(ctx context.Context) (versionInfo, error) {
	var v versionInfo
	if err := c.do(ctx, http.MethodGet, "/json/version", &v); err != nil {
		return v, err
	}
	if v.WebSocketDebuggerURL == "" {
		return v, fmt.Errorf("endpoint %s %w", c.base, errNoDebuggerURL)
	}
	return v, nil
}

// Targets lists every debuggable target, pages and workers alike.
func (c *endpointClient) Targets(ctx context.Context) ([]targetInfo, error) {
	var targets []targetInfo
	if err := c.do(ctx, http.MethodGet, "/json/list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// NewTarget opens a new page. Current Chrome only accepts PUT here.
func (c *endpointClient) NewTarget(ctx context.Context, pageURL string) (targetInfo, error) {
	var t targetInfo
	err := c.do(ctx, http.MethodPut, "/json/new?"+url.QueryEscape(pageURL), &t)
	return t, err
}

// firstPage returns the first target of type "page".
func firstPage(targets []targetInfo) (targetInfo, bool) {
	for _, t := range targets {
		if t.Type == "page" {
			return t, true
		}
	}
	return targetInfo{}, false
}

// waitForEndpoint polls Version every interval until it succeeds or ctx is
// done. An endpoint without a debugger url stops the polling at once.
func waitForEndpoint(ctx context.Context, c *endpointClient, interval time.Duration) (versionInfo, error) {
	var (
		v       versionInfo
		lastErr error
	)
	attempt := func() error {
		got, err := c.Version(ctx)
		if errors.Is(err, errNoDebuggerURL) {
			return backoff.Permanent(err)
		}
		if err != nil {
			if ctx.Err() == nil {
				lastErr = err
			}
			return err
		}
		v = got
		return nil
	}

	if err := backoff.Retry(attempt, backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)); err != nil {
		if ctx.Err() != nil {
			return versionInfo{}, fmt.Errorf("debug endpoint %s not ready: %w (last error: %v)", c.base, ctx.Err(), lastErr)
		}
		return versionInfo{}, err
	}
	return v, nil
}

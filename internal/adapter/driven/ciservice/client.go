// Package ciservice implements the CIClient and Submitter ports against the
// firmware CI service's REST API.
package ciservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.CIClient  = (*Client)(nil)
	_ driven.Submitter = (*Client)(nil)
)

const defaultTimeout = 30 * time.Second

// Client talks to the CI service. Reads that are safe to cache (workflow
// lookups) go through an ETag cache transport; everything else uses the
// plain transport.
type Client struct {
	baseURL *url.URL
	plain   *http.Client
	cached  *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the API rooted at apiURL with the following
// transport stack for cacheable reads:
//  1. httpcache (ETag-based conditional request caching)
//  2. http.DefaultTransport
func NewClient(apiURL, token string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	return newClient(apiURL, token,
		&http.Client{Timeout: defaultTimeout},
		&http.Client{Timeout: defaultTimeout, Transport: cacheTransport},
	)
}

// NewClientWithHTTPClient creates a Client that sends every request through
// httpClient. This constructor is intended for testing, allowing injection of
// an httptest server client.
func NewClientWithHTTPClient(httpClient *http.Client, apiURL, token string) (*Client, error) {
	return newClient(apiURL, token, httpClient, httpClient)
}

func newClient(apiURL, token string, plain, cached *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(apiURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parsing API URL: %q is not absolute", apiURL)
	}

	return &Client{
		baseURL: u,
		plain:   plain,
		cached:  cached,
		token:   token,
	}, nil
}

// SetToken sets the API token used by subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// endpoint returns the absolute URL of the API path built from segments.
func (c *Client) endpoint(segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	u.Path = u.Path + "/" + strings.Join(escaped, "/")
	u.RawPath = ""
	return u.String()
}

// newJSONRequest builds a request carrying payload as a JSON body.
func (c *Client) newJSONRequest(ctx context.Context, method, endpoint string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
// Non-2xx answers become *HTTPError.
func (c *Client) do(httpClient *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.Header.Get(httpcache.XFromCache) != "" {
		slog.Debug("CI service response served from cache", "path", req.URL.Path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body from %s", driven.ErrMalformedPayload, req.URL.Path)
		}
		return fmt.Errorf("%w: decoding %s: %v", driven.ErrMalformedPayload, req.URL.Path, err)
	}
	return nil
}

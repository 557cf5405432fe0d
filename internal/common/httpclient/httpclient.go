// Package httpclient provides a small JSON-over-HTTP client for REST services. It joins
// request paths onto a configured server URL, attaches bearer authentication and request
// IDs, and turns error responses into HTTPError values while still exposing the status
// code of every completed exchange.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tansive/sensorthings/internal/common/logtrace"
	"github.com/tidwall/gjson"
)

// Configurator supplies the server location and credentials for a client.
type Configurator interface {
	GetServerURL() string
	GetAPIKey() string
}

// HTTPError is returned for responses with a status code of 400 or above.
type HTTPError struct {
	StatusCode int    // HTTP status code of the response
	Message    string // server supplied message, or the raw body
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Response is the outcome of a completed HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
	Location   string
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTPClient is a client bound to one server URL. It reuses a single http.Client and is
// not meant to be shared between goroutines that mutate its configuration.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
}

// ClientOptions tunes the underlying http.Client.
type ClientOptions struct {
	Timeout               time.Duration // zero means no client-side timeout
	DisableCertValidation bool          // skip TLS certificate verification
}

// NewClient creates a client for config using default options.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	return NewClientWithOptions(config, clientOpts)
}

// NewClientWithOptions creates a client for config with the given options.
func NewClientWithOptions(config Configurator, opts ClientOptions) *HTTPClient {
	httpClient := &http.Client{
		Timeout: opts.Timeout,
	}

	if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
	}
}

// RequestOptions describes a single request. Path is joined onto the server URL unless
// it is already an absolute URL, in which case it is used as is.
type RequestOptions struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Body        []byte
}

// ResolveURL returns the URL a request for p would be sent to. Path characters are kept
// as given so that OData style keys such as Things('a') survive unescaped.
func (c *HTTPClient) ResolveURL(p string) (string, error) {
	if isAbsoluteURL(p) {
		return p, nil
	}
	base := strings.TrimSpace(c.config.GetServerURL())
	if _, err := url.Parse(base); err != nil || base == "" {
		return "", fmt.Errorf("invalid server URL %q: %v", base, err)
	}
	if p == "" {
		return base, nil
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/"), nil
}

func isAbsoluteURL(p string) bool {
	u, err := url.Parse(p)
	return err == nil && u.IsAbs() && u.Host != ""
}

// DoRequest sends the request described by opts. A non-nil Response is returned for
// every exchange that completed, including error statuses, alongside an *HTTPError when
// the status is 400 or above. Transport failures return a nil Response.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) (*Response, error) {
	target, err := c.ResolveURL(opts.Path)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %v", err)
	}
	if len(opts.QueryParams) > 0 {
		q := u.Query()
		for k, v := range opts.QueryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		bodyReader = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey := c.config.GetAPIKey(); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if id := logtrace.RequestIdFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	r := &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Location:   resp.Header.Get("Location"),
	}
	if resp.StatusCode >= 400 {
		return r, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}
	return r, nil
}

// errorMessage pulls a readable message out of an error body. SensorThings servers
// differ in where they put it, so a few common shapes are tried before falling back to
// the raw body.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, p := range []string{"error.message", "error", "message"} {
			if r := gjson.GetBytes(body, p); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// CreateResource POSTs data to resourcePath.
func (c *HTTPClient) CreateResource(ctx context.Context, resourcePath string, data []byte) (*Response, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   resourcePath,
		Body:   data,
	})
}

// UpdateResource PATCHes resourcePath with data.
func (c *HTTPClient) UpdateResource(ctx context.Context, resourcePath string, data []byte) (*Response, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method: http.MethodPatch,
		Path:   resourcePath,
		Body:   data,
	})
}

// DeleteResource DELETEs resourcePath.
func (c *HTTPClient) DeleteResource(ctx context.Context, resourcePath string) (*Response, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method: http.MethodDelete,
		Path:   resourcePath,
	})
}

// ListResources GETs resourcePath.
func (c *HTTPClient) ListResources(ctx context.Context, resourcePath string, queryParams map[string]string) (*Response, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        resourcePath,
		QueryParams: queryParams,
	})
}

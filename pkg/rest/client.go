// Package rest provides the request/response plumbing shared by every
// service client: URL resolution, default headers and query parameters,
// status checking, and body decoding.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/samvad-hq/tinyclients/pkg/httpclient"
)

// Version is reported in the default User-Agent.
const Version = "0.4.5"

const (
	HeaderAccept      = "Accept"
	HeaderContentType = "Content-Type"
	HeaderUserAgent   = "User-Agent"

	MIMEApplicationJSON = "application/json"
)

// ErrMissingConfig is wrapped by every construction-time validation failure.
var ErrMissingConfig = errors.New("missing required configuration")

// DefaultUserAgent is sent unless a client or call overrides it.
var DefaultUserAgent = "tinyclients/" + Version

// DefaultHeaders returns the header set used when Config.Header is nil.
func DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set(HeaderContentType, MIMEApplicationJSON)
	h.Set(HeaderAccept, MIMEApplicationJSON)
	h.Set(HeaderUserAgent, DefaultUserAgent)
	return h
}

// URLBuilder turns a call path into an absolute URL.
type URLBuilder func(base *url.URL, path string) (string, error)

// JoinURL resolves path as a URI reference against base. A base without a
// trailing slash loses its last segment, and an absolute path replaces the
// base path entirely.
func JoinURL(base *url.URL, path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// AppendURL joins base and path with exactly one slash between them.
func AppendURL(base *url.URL, path string) (string, error) {
	return strings.TrimRight(base.String(), "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// Config describes one client. It is copied on construction.
type Config struct {
	// Service names the backend in logs and errors.
	Service string
	BaseURL string
	// Header replaces DefaultHeaders when non-nil.
	Header http.Header
	// Query is merged into every call unless the call opts out.
	Query     url.Values
	BasicAuth *httpclient.BasicAuth
	// BuildURL defaults to JoinURL.
	BuildURL  URLBuilder
	Transport httpclient.Transport
	Logger    Logger
	// TokenGuarded turns 401 responses into *AuthError.
	TokenGuarded bool
}

// Client issues requests against a single base URL.
type Client struct {
	service      string
	base         *url.URL
	header       http.Header
	query        url.Values
	auth         *httpclient.BasicAuth
	buildURL     URLBuilder
	transport    httpclient.Transport
	log          Logger
	tokenGuarded bool
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: base url", ErrMissingConfig)
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: transport", ErrMissingConfig)
	}

	header := cfg.Header.Clone()
	if header == nil {
		header = DefaultHeaders()
	}
	buildURL := cfg.BuildURL
	if buildURL == nil {
		buildURL = JoinURL
	}

	var auth *httpclient.BasicAuth
	if cfg.BasicAuth != nil {
		cp := *cfg.BasicAuth
		auth = &cp
	}

	return &Client{
		service:      cfg.Service,
		base:         base,
		header:       header,
		query:        cloneValues(cfg.Query),
		auth:         auth,
		buildURL:     buildURL,
		transport:    cfg.Transport,
		log:          EnsureLogger(cfg.Logger),
		tokenGuarded: cfg.TokenGuarded,
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// Request sends method to path and decodes the response.
func (c *Client) Request(ctx context.Context, method, path string, opts ...Option) (*Result, error) {
	co, err := newCallOptions(opts)
	if err != nil {
		return nil, err
	}
	target, err := c.buildURL(c.base, path)
	if err != nil {
		return nil, err
	}

	header := c.header.Clone()
	for k, vs := range co.header {
		header[k] = vs
	}

	query := url.Values{}
	if !co.noDefaultQuery {
		for k, vs := range c.query {
			query[k] = append([]string(nil), vs...)
		}
	}
	for k, vs := range co.query {
		query[k] = vs
	}

	auth := c.auth
	if co.auth != nil {
		auth = co.auth
	}

	req := &httpclient.Request{
		Method:    method,
		URL:       target,
		Header:    header,
		Query:     query,
		Body:      co.body,
		JSON:      co.json,
		Form:      co.form,
		Files:     co.files,
		BasicAuth: auth,
		Timeout:   co.timeout,
	}

	c.log.DebugObj("rest request", "rest_request", map[string]any{
		"service": c.service,
		"method":  method,
		"url":     target,
	})

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		c.log.WarnObj("rest transport failed", "rest_transport_error", map[string]any{
			"service": c.service,
			"method":  method,
			"url":     target,
			"error":   err.Error(),
		})
		return nil, err
	}

	if co.raw {
		return &Result{Raw: resp.Body, Response: resp}, nil
	}

	if !resp.OK() {
		httpErr := &HTTPError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: resp.Body}
		c.log.DebugObj("rest response rejected", "rest_response", map[string]any{
			"service": c.service,
			"url":     target,
			"status":  resp.StatusCode,
		})
		if c.tokenGuarded && resp.StatusCode == http.StatusUnauthorized {
			return nil, &AuthError{
				Service:    c.service,
				Reason:     "request rejected",
				StatusCode: resp.StatusCode,
				Err:        httpErr,
			}
		}
		return nil, httpErr
	}

	return decode(header, resp)
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...Option) (*Result, error) {
	return c.Request(ctx, http.MethodGet, path, opts...)
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, path string, opts ...Option) (*Result, error) {
	return c.Request(ctx, http.MethodPost, path, opts...)
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, path string, opts ...Option) (*Result, error) {
	return c.Request(ctx, http.MethodPut, path, opts...)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...Option) (*Result, error) {
	return c.Request(ctx, http.MethodDelete, path, opts...)
}

// decode follows the negotiated Accept header, not the response Content-Type:
// some backends mislabel their JSON responses.
func decode(header http.Header, resp *httpclient.Response) (*Result, error) {
	res := &Result{Raw: resp.Body}
	if !acceptsJSON(header) {
		return res, nil
	}
	res.JSON = true
	if len(resp.Body) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(resp.Body, &res.Value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return res, nil
}

func acceptsJSON(header http.Header) bool {
	accept := header.Get(HeaderAccept)
	if accept == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(accept)
	if err != nil {
		return false
	}
	return mediaType == MIMEApplicationJSON
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

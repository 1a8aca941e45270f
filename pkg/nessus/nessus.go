// Package nessus is a client for the Nessus scanner REST API using API key authentication.
package nessus

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samvad-hq/tinyclients/pkg/httpclient"
	"github.com/samvad-hq/tinyclients/pkg/rest"
)

const (
	ServiceName = "nessus"

	HeaderAPIKeys = "X-ApiKeys"

	endpointScans  = "scans"
	endpointScan   = "scans/%s"
	endpointLaunch = "scans/%s/launch"
)

// Config holds the settings for one Nessus scanner.
type Config struct {
	BaseURL   string
	AccessKey string
	SecretKey string
}

// Validate fails on any missing field.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		missing = append(missing, "api key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "api secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("nessus: %w: %s", rest.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Client talks to a Nessus scanner.
type Client struct {
	api *rest.Client
}

// New validates cfg and builds a Client.
func New(cfg Config, transport httpclient.Transport, log rest.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set(rest.HeaderContentType, rest.MIMEApplicationJSON)
	header.Set(rest.HeaderAccept, rest.MIMEApplicationJSON)
	header.Set(HeaderAPIKeys, fmt.Sprintf("accessKey=%s; secretKey=%s", cfg.AccessKey, cfg.SecretKey))
	header.Set(rest.HeaderUserAgent, "tinyclients (nessus)")

	api, err := rest.New(rest.Config{
		Service:   ServiceName,
		BaseURL:   cfg.BaseURL,
		Header:    header,
		Transport: transport,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("nessus: %w", err)
	}
	return &Client{api: api}, nil
}

// API exposes the underlying REST client.
func (c *Client) API() *rest.Client { return c.api }

// Submit creates a scan from data, usually {"uuid": ..., "settings": {...}}.
func (c *Client) Submit(ctx context.Context, data any, opts ...rest.Option) (*rest.Result, error) {
	return c.api.Post(ctx, endpointScans, withJSON(data, opts)...)
}

// SubmitURL creates a scan whose targets are URLs. Nessus takes targets in the
// scan settings, so this is the same call as Submit.
func (c *Client) SubmitURL(ctx context.Context, data any, opts ...rest.Option) (*rest.Result, error) {
	return c.api.Post(ctx, endpointScans, withJSON(data, opts)...)
}

// Scans lists scans and folders.
func (c *Client) Scans(ctx context.Context, opts ...rest.Option) (*rest.Result, error) {
	return c.api.Get(ctx, endpointScans, opts...)
}

// Launch starts a previously created scan.
func (c *Client) Launch(ctx context.Context, scanID string, opts ...rest.Option) (*rest.Result, error) {
	return c.api.Post(ctx, fmt.Sprintf(endpointLaunch, url.PathEscape(scanID)), opts...)
}

// Status returns the scan details document; its "info.status" field carries the state.
func (c *Client) Status(ctx context.Context, scanID string, opts ...rest.Option) (*rest.Result, error) {
	return c.api.Get(ctx, fmt.Sprintf(endpointScan, url.PathEscape(scanID)), opts...)
}

// Results returns the hosts, vulnerabilities and history of a scan.
func (c *Client) Results(ctx context.Context, scanID string, opts ...rest.Option) (*rest.Result, error) {
	return c.api.Get(ctx, fmt.Sprintf(endpointScan, url.PathEscape(scanID)), opts...)
}

// ScanState extracts info.status from a Status result.
func ScanState(res *rest.Result) string {
	info, _ := res.Map()["info"].(map[string]any)
	state, _ := info["status"].(string)
	return state
}

func withJSON(data any, opts []rest.Option) []rest.Option {
	return append([]rest.Option{rest.WithJSON(data)}, opts...)
}

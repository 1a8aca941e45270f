// Package vxstream is a client for the VxStream Sandbox (Hybrid Analysis) API v1.
//
// The API is split into a "system" and an "api" resource tree. Each is served
// by its own lightweight rest.Client built on access.
package vxstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/samvad-hq/tinyclients/pkg/httpclient"
	"github.com/samvad-hq/tinyclients/pkg/rest"
)

const (
	ServiceName = "vxstream"

	facadeSystem = "system"
	facadeAPI    = "api"

	// DefaultEnvironmentID selects the sandbox environment when callers do not.
	DefaultEnvironmentID = 1

	// FieldAnalyzeURL is the submiturl form field holding the target URL.
	FieldAnalyzeURL = "analyzeurl"
)

// DefaultParams are sent as query parameters on every call unless overridden.
type DefaultParams struct {
	Type          string `url:"type"`
	EnvironmentID int    `url:"environmentId"`
}

// Config holds the settings for one VxStream installation.
type Config struct {
	BaseURL string
	APIKey  string
	Secret  string
}

// Validate fails on any missing field.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if c.Secret == "" {
		missing = append(missing, "api secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("vxstream: %w: %s", rest.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// File is a sample to upload.
type File struct {
	Name   string
	Reader io.Reader
}

// Client talks to a VxStream installation.
type Client struct {
	base      *url.URL
	cfg       Config
	query     url.Values
	transport httpclient.Transport
	log       rest.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config, transport httpclient.Transport, log rest.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("vxstream: parse base url: %w", err)
	}
	params, err := query.Values(DefaultParams{Type: "json", EnvironmentID: DefaultEnvironmentID})
	if err != nil {
		return nil, fmt.Errorf("vxstream: encode default params: %w", err)
	}
	c := &Client{
		base:      base,
		cfg:       cfg,
		query:     params,
		transport: transport,
		log:       log,
	}
	// Fail fast on anything the facades would reject later.
	if _, err := c.facade(facadeAPI); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) facade(name string) (*rest.Client, error) {
	ref, _ := url.Parse(name)
	header := http.Header{}
	header.Set(rest.HeaderContentType, rest.MIMEApplicationJSON)
	header.Set(rest.HeaderAccept, rest.MIMEApplicationJSON)
	header.Set(rest.HeaderUserAgent, "tinyclients (vxstream)")

	api, err := rest.New(rest.Config{
		Service:   ServiceName + "/" + name,
		BaseURL:   c.base.ResolveReference(ref).String(),
		Header:    header,
		Query:     c.query,
		BasicAuth: &httpclient.BasicAuth{Username: c.cfg.APIKey, Password: c.cfg.Secret},
		BuildURL:  rest.AppendURL,
		Transport: c.transport,
		Logger:    c.log,
	})
	if err != nil {
		return nil, fmt.Errorf("vxstream: %w", err)
	}
	return api, nil
}

// System returns the facade for the system resource tree.
func (c *Client) System() (*rest.Client, error) { return c.facade(facadeSystem) }

// API returns the facade for the api resource tree.
func (c *Client) API() (*rest.Client, error) { return c.facade(facadeAPI) }

// State reports the sandbox backend state.
func (c *Client) State(ctx context.Context, opts ...rest.Option) (*rest.Result, error) {
	sys, err := c.System()
	if err != nil {
		return nil, err
	}
	return sys.Get(ctx, "state", opts...)
}

// Stats reports submission statistics.
func (c *Client) Stats(ctx context.Context, opts ...rest.Option) (*rest.Result, error) {
	sys, err := c.System()
	if err != nil {
		return nil, err
	}
	return sys.Get(ctx, "stats", opts...)
}

// Submit uploads sample with the given form fields.
func (c *Client) Submit(ctx context.Context, sample File, data url.Values, opts ...rest.Option) (*rest.Result, error) {
	api, err := c.API()
	if err != nil {
		return nil, err
	}
	callOpts := formOptions(data)
	callOpts = append(callOpts, rest.WithFile("file", sample.Name, sample.Reader))
	return api.Post(ctx, "submit", append(callOpts, opts...)...)
}

// SubmitURL submits a URL for analysis; data carries the URL field and any
// submission options.
func (c *Client) SubmitURL(ctx context.Context, data url.Values, opts ...rest.Option) (*rest.Result, error) {
	api, err := c.API()
	if err != nil {
		return nil, err
	}
	return api.Post(ctx, "submiturl", append(formOptions(data), opts...)...)
}

// Status returns the analysis state of the sample with the given SHA256.
func (c *Client) Status(ctx context.Context, sha256 string, opts ...rest.Option) (*rest.Result, error) {
	api, err := c.API()
	if err != nil {
		return nil, err
	}
	return api.Get(ctx, "state/"+url.PathEscape(sha256), opts...)
}

// Results returns the analysis report of the sample with the given SHA256.
func (c *Client) Results(ctx context.Context, sha256 string, opts ...rest.Option) (*rest.Result, error) {
	api, err := c.API()
	if err != nil {
		return nil, err
	}
	return api.Get(ctx, "result/"+url.PathEscape(sha256), opts...)
}

func formOptions(data url.Values) []rest.Option {
	var opts []rest.Option
	for k, vs := range data {
		for _, v := range vs {
			opts = append(opts, rest.WithForm(k, v))
		}
	}
	return opts
}

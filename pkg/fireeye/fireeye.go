// Package fireeye is a client for the FireEye AX Web Services API.
//
// Every operation needs a live API token. Tokens are cached per session in a
// session.Store and refreshed once on rejection, see rest.WithReauth.
package fireeye

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/tinyclients/pkg/httpclient"
	"github.com/samvad-hq/tinyclients/pkg/rest"
	"github.com/samvad-hq/tinyclients/pkg/session"
)

// ServiceName keys the token cache and labels logs.
const ServiceName = "fireeye"

const (
	APIPath = "/wsapis/v2.0.0"

	HeaderAPIToken = "X-FeApi-Token"

	EndpointAuthLogin          = "/auth/login"
	EndpointAuthLogout         = "/auth/logout"
	EndpointConfig             = "/config"
	EndpointSubmissions        = "/submissions"
	EndpointSubmissionsURL     = EndpointSubmissions + "/url"
	EndpointSubmissionsStatus  = EndpointSubmissions + "/status/%s"
	EndpointSubmissionsResults = EndpointSubmissions + "/results/%s"

	// LoginTimeout tolerates slow authentication backends.
	LoginTimeout = 2 * time.Minute
)

// Config holds the settings for one FireEye appliance.
type Config struct {
	BaseURL  string
	Username string
	Secret   string
}

// Validate fails on any missing field.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if c.Secret == "" {
		missing = append(missing, "api secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("fireeye: %w: %s", rest.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// File is one sample for Submit. Readers that implement io.Seeker are
// rewound before every attempt.
type File struct {
	Name   string
	Reader io.Reader
}

// Client talks to a FireEye appliance.
type Client struct {
	api      *rest.Client
	username string
	secret   string
	log      rest.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config, transport httpclient.Transport, log rest.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set(rest.HeaderAccept, rest.MIMEApplicationJSON)
	header.Set(rest.HeaderUserAgent, "tinyclients (fireeye)")

	api, err := rest.New(rest.Config{
		Service:      ServiceName,
		BaseURL:      cfg.BaseURL,
		Header:       header,
		BuildURL:     buildURL,
		Transport:    transport,
		Logger:       log,
		TokenGuarded: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fireeye: %w", err)
	}
	return &Client{
		api:      api,
		username: cfg.Username,
		secret:   cfg.Secret,
		log:      rest.EnsureLogger(log),
	}, nil
}

// buildURL prefixes the API version path; the endpoint path replaces any
// path on the base URL.
func buildURL(base *url.URL, endpoint string) (string, error) {
	return rest.JoinURL(base, APIPath+endpoint)
}

// API exposes the underlying REST client.
func (c *Client) API() *rest.Client { return c.api }

// AuthToken logs in with the configured credentials and returns the token
// carried in the X-FeApi-Token response header.
func (c *Client) AuthToken(ctx context.Context) (string, error) {
	res, err := c.api.Post(ctx, EndpointAuthLogin,
		rest.RawResponse(),
		rest.WithTimeout(LoginTimeout),
		rest.WithBasicAuth(c.username, c.secret),
	)
	if err != nil {
		return "", err
	}
	resp := res.Response
	if !resp.OK() {
		return "", &rest.AuthError{
			Service:    ServiceName,
			Reason:     "failed to authenticate with given credentials",
			StatusCode: resp.StatusCode,
		}
	}
	token := resp.Header.Get(HeaderAPIToken)
	if token == "" {
		return "", &rest.AuthError{
			Service: ServiceName,
			Reason:  "no api token in the response header",
		}
	}
	c.log.DebugObj("fireeye login succeeded", "fireeye_auth", map[string]any{
		"username": c.username,
	})
	return token, nil
}

// guarded runs one operation through the re-authentication cycle. The token
// header is appended last so it overrides any caller-supplied value.
func (c *Client) guarded(ctx context.Context, store session.Store, call func(ctx context.Context, opts ...rest.Option) (*rest.Result, error), opts []rest.Option) (*rest.Result, error) {
	ra := rest.Reauth{
		Service: ServiceName,
		Store:   store,
		Login:   c.AuthToken,
		Logger:  c.log,
	}
	return rest.WithReauth(ctx, ra, func(ctx context.Context, token string) (*rest.Result, error) {
		callOpts := append([]rest.Option(nil), opts...)
		if token != "" {
			callOpts = append(callOpts, rest.WithHeader(HeaderAPIToken, token))
		}
		return call(ctx, callOpts...)
	})
}

// Config returns the appliance configuration, including guest images and profiles.
func (c *Client) Config(ctx context.Context, store session.Store, opts ...rest.Option) (*rest.Result, error) {
	return c.guarded(ctx, store, func(ctx context.Context, o ...rest.Option) (*rest.Result, error) {
		return c.api.Get(ctx, EndpointConfig, o...)
	}, opts)
}

// Submit uploads files for analysis. options is sent as the JSON-encoded
// "options" form field.
func (c *Client) Submit(ctx context.Context, store session.Store, options any, files []File, opts ...rest.Option) (*rest.Result, error) {
	encoded, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encode submission options: %w", err)
	}
	return c.guarded(ctx, store, func(ctx context.Context, o ...rest.Option) (*rest.Result, error) {
		// A rejected attempt has already consumed the streams.
		if err := rewind(files); err != nil {
			return nil, err
		}
		callOpts := []rest.Option{rest.WithForm("options", string(encoded))}
		for _, f := range files {
			callOpts = append(callOpts, rest.WithFile("file", f.Name, f.Reader))
		}
		return c.api.Post(ctx, EndpointSubmissions, append(callOpts, o...)...)
	}, opts)
}

// SubmitURL submits URLs for analysis.
func (c *Client) SubmitURL(ctx context.Context, store session.Store, options any, opts ...rest.Option) (*rest.Result, error) {
	return c.guarded(ctx, store, func(ctx context.Context, o ...rest.Option) (*rest.Result, error) {
		return c.api.Post(ctx, EndpointSubmissionsURL, append([]rest.Option{rest.WithJSON(options)}, o...)...)
	}, opts)
}

// Status returns the processing state of a submission.
func (c *Client) Status(ctx context.Context, store session.Store, submissionID string, opts ...rest.Option) (*rest.Result, error) {
	endpoint := fmt.Sprintf(EndpointSubmissionsStatus, url.PathEscape(submissionID))
	return c.guarded(ctx, store, func(ctx context.Context, o ...rest.Option) (*rest.Result, error) {
		return c.api.Get(ctx, endpoint, o...)
	}, opts)
}

// Results returns the analysis results of a completed submission.
func (c *Client) Results(ctx context.Context, store session.Store, submissionID string, opts ...rest.Option) (*rest.Result, error) {
	endpoint := fmt.Sprintf(EndpointSubmissionsResults, url.PathEscape(submissionID))
	return c.guarded(ctx, store, func(ctx context.Context, o ...rest.Option) (*rest.Result, error) {
		return c.api.Get(ctx, endpoint, o...)
	}, opts)
}

// Logout invalidates the cached token, if any, and drops it from store.
func (c *Client) Logout(ctx context.Context, store session.Store, opts ...rest.Option) error {
	if store == nil {
		return nil
	}
	token, found, err := store.Token(ServiceName)
	if err != nil {
		return fmt.Errorf("read cached token: %w", err)
	}
	if !found {
		return nil
	}
	callOpts := append(append([]rest.Option(nil), opts...), rest.WithHeader(HeaderAPIToken, token))
	_, err = c.api.Post(ctx, EndpointAuthLogout, callOpts...)
	if clearErr := store.ClearToken(ServiceName); clearErr != nil && err == nil {
		err = fmt.Errorf("clear cached token: %w", clearErr)
	}
	if rest.IsUnauthorized(err) {
		return nil
	}
	return err
}

func rewind(files []File) error {
	for _, f := range files {
		seeker, ok := f.Reader.(io.Seeker)
		if !ok {
			continue
		}
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("inspect %s stream position: %w", f.Name, err)
		}
		if pos > 0 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind %s: %w", f.Name, err)
			}
		}
	}
	return nil
}

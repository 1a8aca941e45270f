package rest

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/samvad-hq/tinyclients/pkg/httpclient"
)

// Option adjusts a single call. Options are applied in order, so later
// options override earlier ones.
type Option func(*callOptions) error

type callOptions struct {
	header         http.Header
	query          url.Values
	noDefaultQuery bool
	body           []byte
	json           any
	form           url.Values
	files          []httpclient.File
	auth           *httpclient.BasicAuth
	timeout        time.Duration
	raw            bool
}

func newCallOptions(opts []Option) (*callOptions, error) {
	co := &callOptions{
		header: http.Header{},
		query:  url.Values{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(co); err != nil {
			return nil, err
		}
	}
	return co, nil
}

// WithHeader sets a request header, replacing any default with the same name.
func WithHeader(key, value string) Option {
	return func(co *callOptions) error {
		co.header.Set(key, value)
		return nil
	}
}

// WithHeaders sets every header in h.
func WithHeaders(h map[string]string) Option {
	return func(co *callOptions) error {
		for k, v := range h {
			co.header.Set(k, v)
		}
		return nil
	}
}

// WithQuery sets query parameter key to value.
func WithQuery(key, value string) Option {
	return func(co *callOptions) error {
		co.query.Set(key, value)
		return nil
	}
}

// WithQueryParams encodes a struct tagged with `url:"..."` into query parameters.
func WithQueryParams(v any) Option {
	return func(co *callOptions) error {
		vals, err := query.Values(v)
		if err != nil {
			return fmt.Errorf("encode query params: %w", err)
		}
		for k, vs := range vals {
			co.query[k] = vs
		}
		return nil
	}
}

// WithoutDefaultQuery drops the client's default query parameters for this call.
func WithoutDefaultQuery() Option {
	return func(co *callOptions) error {
		co.noDefaultQuery = true
		return nil
	}
}

// WithJSON sends v marshalled as the JSON request body.
func WithJSON(v any) Option {
	return func(co *callOptions) error {
		co.json = v
		return nil
	}
}

// WithBody sends b unchanged as the request body.
func WithBody(b []byte) Option {
	return func(co *callOptions) error {
		co.body = b
		return nil
	}
}

// WithForm sets a form field. Combined with WithFile it becomes a multipart field.
func WithForm(key, value string) Option {
	return func(co *callOptions) error {
		if co.form == nil {
			co.form = url.Values{}
		}
		co.form.Add(key, value)
		return nil
	}
}

// WithFile adds a multipart file part.
func WithFile(field, name string, r io.Reader) Option {
	return func(co *callOptions) error {
		co.files = append(co.files, httpclient.File{Field: field, Name: name, Reader: r})
		return nil
	}
}

// WithBasicAuth sends transport-level credentials for this call.
func WithBasicAuth(username, password string) Option {
	return func(co *callOptions) error {
		co.auth = &httpclient.BasicAuth{Username: username, Password: password}
		return nil
	}
}

// WithTimeout bounds the call, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(co *callOptions) error {
		co.timeout = d
		return nil
	}
}

// RawResponse skips status checking and decoding and returns the response envelope.
func RawResponse() Option {
	return func(co *callOptions) error {
		co.raw = true
		return nil
	}
}

package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BasicAuth carries transport-level credentials sent as an Authorization header.
type BasicAuth struct {
	Username string
	Password string
}

// File is a single multipart upload part.
type File struct {
	Field  string
	Name   string
	Reader io.Reader
}

// Request describes one outgoing HTTP call.
//
// At most one of Body, JSON, or Form/Files should be set. When Files is not
// empty the request is sent as multipart/form-data and Form values become
// plain fields of the same multipart body.
type Request struct {
	Method    string
	URL       string
	Header    http.Header
	Query     url.Values
	Body      []byte
	JSON      any
	Form      url.Values
	Files     []File
	BasicAuth *BasicAuth
	Timeout   time.Duration
}

// Response is the fully read HTTP response envelope.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport abstracts HTTP calls so callers can inject mocks or different transports.
// Connection-level failures are reported through the error return; HTTP error
// statuses are not errors at this layer.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req).
func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

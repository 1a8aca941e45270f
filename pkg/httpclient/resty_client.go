package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
)

// RestyClient adapts resty.Client to the httpclient.Transport interface.
type RestyClient struct {
	client         *resty.Client
	defaultTimeout time.Duration
}

// NewRestyClient creates a new RestyClient. defaultTimeout bounds requests
// that carry no Timeout of their own; a request Timeout replaces it, longer
// or shorter. Zero leaves calls bounded only by their context.
//
// The underlying http.Client has no timeout, so it never caps a request
// deadline.
func NewRestyClient(defaultTimeout time.Duration) *RestyClient {
	return &RestyClient{client: resty.New(), defaultTimeout: defaultTimeout}
}

// Do executes req and returns the fully read response.
func (r *RestyClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rr := r.client.R().SetContext(ctx)

	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	multipart := len(req.Files) > 0
	if multipart || len(req.Form) > 0 {
		// resty writes its own multipart or urlencoded content type.
		header.Del(headerContentType)
	}
	if req.JSON != nil && header.Get(headerContentType) == "" {
		header.Set(headerContentType, mimeJSON)
	}
	if len(header) > 0 {
		rr.SetHeaderMultiValues(header)
	}
	if len(req.Query) > 0 {
		rr.SetQueryParamsFromValues(req.Query)
	}
	if req.BasicAuth != nil {
		rr.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}

	switch {
	case multipart:
		for _, f := range req.Files {
			rr.SetFileReader(f.Field, f.Name, f.Reader)
		}
		if len(req.Form) > 0 {
			rr.SetFormDataFromValues(req.Form)
		}
	case len(req.Form) > 0:
		rr.SetFormDataFromValues(req.Form)
	case req.JSON != nil:
		rr.SetBody(req.JSON)
	case req.Body != nil:
		rr.SetBody(req.Body)
	}

	resp, err := rr.Execute(strings.ToUpper(req.Method), req.URL)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

package rest

import (
	"encoding/json"
	"fmt"

	"github.com/samvad-hq/tinyclients/pkg/httpclient"
)

// Result is the outcome of a successful call.
//
// Value holds the decoded JSON document when JSON was negotiated, and JSON
// reports that it was; a JSON null leaves Value nil with JSON set. Raw always
// holds the response body bytes. Response is only set in raw response mode.
type Result struct {
	Value    any
	JSON     bool
	Raw      []byte
	Response *httpclient.Response
}

// IsJSON reports whether the result should be served as a JSON document.
func (r *Result) IsJSON() bool {
	return r != nil && (r.JSON || r.Value != nil)
}

// Decode unmarshals the raw body into v.
func (r *Result) Decode(v any) error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrDecode)
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// Map returns Value as a JSON object, or nil when it is not one.
func (r *Result) Map() map[string]any {
	if r == nil {
		return nil
	}
	m, _ := r.Value.(map[string]any)
	return m
}

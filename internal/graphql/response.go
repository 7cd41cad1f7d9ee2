package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrInvalidResponse is returned when the server answers with a body that is not a JSON object.
var ErrInvalidResponse = errors.New("invalid graphql response")

// Response is the decoded body of a GraphQL response.
type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []Error         `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`

	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

// Location points at the part of the query an Error refers to.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error is a single entry of the errors array.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e Error) Error() string {
	return e.Message
}

// Err joins the GraphQL errors of the response, or returns nil if there are none.
func (r *Response) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// DecodeData unmarshals the data member into v.
func (r *Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: no data", ErrInvalidResponse)
	}
	return json.Unmarshal(r.Data, v)
}

// decodeResponse reads the whole body regardless of status.
func decodeResponse(resp *http.Response) (*Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &Response{StatusCode: resp.StatusCode}
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		return nil, fmt.Errorf("%w: status %d: body is not a JSON object", ErrInvalidResponse, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("%w: status %d: %w", ErrInvalidResponse, resp.StatusCode, err)
	}
	return out, nil
}

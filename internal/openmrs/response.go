package openmrs

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is a successful backend response.
type Response struct {
	StatusCode int             `json:"status"`
	Header     http.Header     `json:"-"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Results unmarshals the "results" member of a list response into v.
func (r *Response) Results(v any) error {
	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := r.Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Results) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Results, v); err != nil {
		return fmt.Errorf("failed to decode results: %w", err)
	}
	return nil
}

// HTTPError is returned for a non-2xx backend response. Body holds the raw
// response so the backend's error message reaches the caller.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openmrs: %s %s: status code %d body %s", e.Method, e.Path, e.StatusCode, string(e.Body))
}

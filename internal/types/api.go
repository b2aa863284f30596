package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Request validation limits.
const (
	MaxURLLength = 8192
)

// RenderRequest is one item of a render batch. It is immutable once
// accepted: created at the caller boundary and passed by reference into a
// page worker, never mutated.
type RenderRequest struct {
	URL string `json:"url"`
}

// Validate checks a single render request.
func (r *RenderRequest) Validate() error {
	if r.URL == "" {
		return ErrURLRequired
	}
	if len(r.URL) > MaxURLLength {
		return fmt.Errorf("%w: exceeds maximum length of %d", ErrInvalidURL, MaxURLLength)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, scheme)
	}
	return nil
}

// RenderResult is the outcome for one batch item. Data is the sanitized
// HTML on success or the empty string on failure. Its position in the
// output slice matches the position of its request in the input slice.
//
// OK distinguishes "failed" from "legitimately empty" internally (logs,
// metrics); the wire shape deliberately carries only data.
type RenderResult struct {
	Data string `json:"data"`
	OK   bool   `json:"-"`
}

// BatchRequest is the legacy wrapped request shape. Newer clients post a
// bare JSON array of RenderRequest; older ones wrap it in an object.
type BatchRequest struct {
	URLs []RenderRequest `json:"urls"`
}

// DecodeBatch decodes a request body into an ordered list of render
// requests, accepting both the bare-array and the legacy wrapped shape.
// A body that is neither is rejected with ErrInvalidBatch; an empty list
// with ErrEmptyBatch. No browser work happens before this succeeds.
func DecodeBatch(body []byte) ([]RenderRequest, error) {
	var reqs []RenderRequest
	if err := json.Unmarshal(body, &reqs); err != nil {
		var wrapped BatchRequest
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.URLs == nil {
			return nil, ErrInvalidBatch
		}
		reqs = wrapped.URLs
	}
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return reqs, nil
}

// BatchResponse is the envelope for the render endpoint.
type BatchResponse struct {
	OK      bool           `json:"ok"`
	Results []RenderResult `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// HealthResponse is the liveness check payload. It must respond quickly
// and independently of browser state.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Session string `json:"session,omitempty"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

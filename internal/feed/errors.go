package feed

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable is matched by every error the client returns when the
// feed could not be reached or answered with a non-success status.
var ErrUpstreamUnavailable = errors.New("feed unavailable")

// APIError is a non-success HTTP response from the feed.
type APIError struct {
	Status   int
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("feed %s: %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("feed %s: status %d", e.Endpoint, e.Status)
}

func (e *APIError) Unwrap() error {
	return ErrUpstreamUnavailable
}

// RateLimited reports whether the feed rejected the call for exceeding its
// request rate.
func (e *APIError) RateLimited() bool {
	return e != nil && e.Status == 429
}

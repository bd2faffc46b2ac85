package remote

import (
	"errors"
	"fmt"
)

// ErrNoCredential is returned when no token is stored.
var ErrNoCredential = errors.New("GitHub PAT not configured. Run `prquick token set` to set it up.")

// APIError is a non-success answer from the remote API: an HTTP status
// outside 2xx, or a GraphQL response carrying errors[].
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// newAPIError picks the remote's own message when it sent one.
func newAPIError(status int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("GitHub API error: %d", status)
	}
	return &APIError{Status: status, Message: message}
}

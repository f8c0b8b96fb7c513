package sdk

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("expomatch api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether the error wraps a 404 API error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

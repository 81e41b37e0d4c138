package reviewapi

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse indicates a 2xx response whose body is not an analysis result.
var ErrMalformedResponse = errors.New("malformed analysis response")

// ServiceError is returned when the review service answers with a non-2xx status.
type ServiceError struct {
	StatusCode int
	Detail     string
}

func (e *ServiceError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("review service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("review service returned status %d: %s", e.StatusCode, e.Detail)
}

// TransportError is returned when no response was received from the review service.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("review service %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

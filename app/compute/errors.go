package compute

import (
	"fmt"
	"net/http"
)

// TransportError means the request never produced a response: connection
// failure, timeout, or cancellation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError means the service answered and reported a failure, either
// through the status code or a {"status":"error"} body.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s: service error (%d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: service error: %s", e.Op, e.Message)
}

// DecodeError means the response body was not what the operation promises.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

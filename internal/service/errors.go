package service

import "fmt"

// Error handling principles:
// 1. Service methods return domain sentinel errors for expected conditions
// 2. Failures are wrapped in ServiceError to record where they happened
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps the domain taxonomy to HTTP status codes

// ServiceError records the service and operation in which an error occurred.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
	}
	return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Op, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err with the service and operation names.
func NewServiceError(service, op string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Err:     err,
	}
}

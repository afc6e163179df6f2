package embedding

import "fmt"

// ServiceError reports a failed request to the embedding service. Callers can
// match it with errors.As and inspect the HTTP status.
type ServiceError struct {
	// StatusCode is the HTTP status of the response, or 0 when the request
	// never produced one (transport failure, malformed response).
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding service: status %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("embedding service: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("embedding service: %s", e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

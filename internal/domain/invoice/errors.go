package invoice

import "fmt"

// TransportError means the processor could not be reached or the exchange broke off.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("processor transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx answer from the processor.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("error creating invoice (HTTP %d): %s", e.StatusCode, e.Message)
}

// InvalidResponseError is a 2xx answer that cannot be used: unparsable body or no checkout link.
type InvalidResponseError struct {
	Reason string
	Err    error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid processor response: %s: %v", e.Reason, e.Err)
	}
	return "invalid processor response: " + e.Reason
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

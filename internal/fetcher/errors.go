package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransportError means the request was issued but no response came back
// (dial failure, reset, timeout, cancellation).
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the transport failure was a deadline or client timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// StatusError is a response that arrived with a non-success status, or a
// success status whose body reports a failure.
type StatusError struct {
	Service    string
	StatusCode int
	// Message is the server-provided reason, empty when the body had none.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
}

// Reason returns the server-provided message, falling back to one derived
// from the status code.
func (e *StatusError) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// DecodeError is a success response whose body could not be parsed.
type DecodeError struct {
	Service string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Service, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsSuccessStatus reports whether code is in the 2xx range.
func IsSuccessStatus(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

package outcome

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mailcheck/internal/fetcher"
)

// Kind is the category of a classified error.
type Kind int

const (
	// KindValidation is a local input check that failed before any request.
	KindValidation Kind = iota + 1
	// KindNetwork is a request that got no response.
	KindNetwork
	// KindServer is a response with a non-success status.
	KindServer
	// KindUnexpected is a malformed response or an unclassified failure.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "validation":
		*k = KindValidation
	case "network":
		*k = KindNetwork
	case "server":
		*k = KindServer
	case "unexpected":
		*k = KindUnexpected
	default:
		return eris.Errorf("outcome: unknown error kind %q", string(b))
	}
	return nil
}

// ClassifiedError is a failure normalized for display. Message is shown to the
// user verbatim.
type ClassifiedError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Validation returns a validation error with the given message.
func Validation(msg string) *ClassifiedError {
	return &ClassifiedError{Kind: KindValidation, Message: msg}
}

// Classify maps err from a call to service onto a ClassifiedError. Errors
// that are already classified pass through unchanged.
func Classify(service string, err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	var se *fetcher.StatusError
	if errors.As(err, &se) {
		return &ClassifiedError{Kind: KindServer, Message: se.Reason()}
	}

	var de *fetcher.DecodeError
	if errors.As(err, &de) {
		return &ClassifiedError{Kind: KindUnexpected, Message: unexpectedMessage(service)}
	}

	if isNetwork(err) {
		return &ClassifiedError{Kind: KindNetwork, Message: networkMessage(service)}
	}

	return &ClassifiedError{Kind: KindUnexpected, Message: unexpectedMessage(service)}
}

func isNetwork(err error) bool {
	var te *fetcher.TransportError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func networkMessage(service string) string {
	return service + ": service unreachable"
}

func unexpectedMessage(service string) string {
	return service + ": unexpected response"
}

// Package outcome models the lifecycle of a single asynchronous request as a
// tagged value and normalizes request failures into four error kinds.
package outcome

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Status is the tag of an Outcome.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StatusIdle
	case "pending":
		*s = StatusPending
	case "succeeded":
		*s = StatusSucceeded
	case "failed":
		*s = StatusFailed
	default:
		return eris.Errorf("outcome: unknown status %q", string(b))
	}
	return nil
}

// Outcome is one of Idle, Pending, Succeeded(value) or Failed(error). The
// zero value is Idle. Build values with the constructors so that the value
// and error are only ever set alongside their matching status.
type Outcome[T any] struct {
	status Status
	value  T
	err    *ClassifiedError
}

// Idle returns an outcome with no request issued.
func Idle[T any]() Outcome[T] {
	return Outcome[T]{}
}

// Pending returns an outcome for a request in flight.
func Pending[T any]() Outcome[T] {
	return Outcome[T]{status: StatusPending}
}

// Succeeded returns an outcome holding v.
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{status: StatusSucceeded, value: v}
}

// Failed returns an outcome holding err. A nil err is recorded as an
// unexpected error so a Failed outcome always carries one.
func Failed[T any](err *ClassifiedError) Outcome[T] {
	if err == nil {
		err = &ClassifiedError{Kind: KindUnexpected, Message: "unknown error"}
	}
	return Outcome[T]{status: StatusFailed, err: err}
}

// Status returns the tag.
func (o Outcome[T]) Status() Status { return o.status }

// IsIdle reports whether no request has been issued.
func (o Outcome[T]) IsIdle() bool { return o.status == StatusIdle }

// IsPending reports whether a request is in flight.
func (o Outcome[T]) IsPending() bool { return o.status == StatusPending }

// IsSucceeded reports whether the request produced a value.
func (o Outcome[T]) IsSucceeded() bool { return o.status == StatusSucceeded }

// IsFailed reports whether the request failed.
func (o Outcome[T]) IsFailed() bool { return o.status == StatusFailed }

// Value returns the value and true when Succeeded.
func (o Outcome[T]) Value() (T, bool) {
	return o.value, o.status == StatusSucceeded
}

// Err returns the classified error when Failed, nil otherwise.
func (o Outcome[T]) Err() *ClassifiedError {
	if o.status != StatusFailed {
		return nil
	}
	return o.err
}

type wireOutcome[T any] struct {
	Status Status           `json:"status"`
	Value  *T               `json:"value,omitempty"`
	Error  *ClassifiedError `json:"error,omitempty"`
}

// MarshalJSON encodes the outcome as {"status": ..., "value"|"error": ...}.
func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	w := wireOutcome[T]{Status: o.status}
	switch o.status {
	case StatusSucceeded:
		v := o.value
		w.Value = &v
	case StatusFailed:
		w.Error = o.err
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (o *Outcome[T]) UnmarshalJSON(b []byte) error {
	var w wireOutcome[T]
	if err := json.Unmarshal(b, &w); err != nil {
		return eris.Wrap(err, "outcome: unmarshal")
	}
	switch w.Status {
	case StatusSucceeded:
		var v T
		if w.Value != nil {
			v = *w.Value
		}
		*o = Succeeded(v)
	case StatusFailed:
		*o = Failed[T](w.Error)
	case StatusPending:
		*o = Pending[T]()
	default:
		*o = Idle[T]()
	}
	return nil
}

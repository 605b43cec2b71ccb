package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies why data acquisition failed.
type Kind int

const (
	// NetworkFailure covers timeouts, aborts and connection errors.
	NetworkFailure Kind = iota + 1
	// HTTPFailure is a response with a non-2xx status.
	HTTPFailure
	// ParseFailure is a malformed body or an unexpected document shape.
	ParseFailure
	// ConfigurationFailure is a missing or unusable setting, such as an empty URL.
	ConfigurationFailure
)

func (k Kind) String() string {
	switch k {
	case NetworkFailure:
		return "network"
	case HTTPFailure:
		return "http"
	case ParseFailure:
		return "parse"
	case ConfigurationFailure:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a single classified acquisition failure.
type Error struct {
	Kind   Kind
	URL    string
	Status int // set for HTTPFailure
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == HTTPFailure {
		return fmt.Sprintf("%s failure fetching %s: status %d", e.Kind, e.URL, e.Status)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failure fetching %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("%s failure fetching %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExhaustedError is returned once every attempt of a call has failed.
// It carries the last underlying error.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetching %s: giving up after %d attempt(s): %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// KindOf reports the Kind of the first *Error in err's chain, or 0 when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

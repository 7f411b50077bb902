package search

import "fmt"

// Kind classifies resolver failures. Suggestion-path failures are never
// surfaced and have no kind of their own.
type Kind int

const (
	KindTransport Kind = iota
	KindNotFound
	KindRegionRejected
)

// Error is a resolver failure carrying the message shown to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func notFoundError() *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: "Location not found. Please try a different city name.",
	}
}

func regionRejectedError(regionName string) *Error {
	return &Error{
		Kind:    KindRegionRejected,
		Message: fmt.Sprintf("Please search for locations in %s only.", regionName),
	}
}

func transportError(err error) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: err.Error(),
		Err:     err,
	}
}

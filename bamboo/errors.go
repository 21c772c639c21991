package bamboo

import (
	"fmt"
)

// RequestError is returned when the HTTP call to the Bamboo server could not
// be completed: connection refused, timeouts, or any other transport failure.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("error when requesting URL '%s': %s", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// UnknownError wraps failures that happened while handling a request but are
// not transport related, like an unreadable response body.
type UnknownError struct {
	URL string
	Err error
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown error when requesting URL '%s': %s", e.URL, e.Err)
}

func (e *UnknownError) Unwrap() error { return e.Err }

// DecodeError means the server answered but the body was not valid JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("error decoding JSON from '%s': %s", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

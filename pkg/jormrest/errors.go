package jormrest

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a client failure
type Kind int

const (
	// KindRequestFailed covers everything up to and including reading the response body
	KindRequestFailed Kind = iota + 1
	// KindDeserializationFailed means the body did not decode into the expected shape
	KindDeserializationFailed
)

func (k Kind) String() string {
	switch k {
	case KindRequestFailed:
		return "request failed"
	case KindDeserializationFailed:
		return "deserialization failed"
	default:
		return fmt.Sprintf("unknown kind %d", int(k))
	}
}

// Sentinel errors matching the two kinds, for use with errors.Is
var (
	ErrRequestFailed         = errors.New(KindRequestFailed.String())
	ErrDeserializationFailed = errors.New(KindDeserializationFailed.String())

	// ErrNullBody is the cause when the node answers with a bare JSON null
	ErrNullBody = errors.New("response body is null")
)

// Error is returned by every Client operation
type Error struct {
	kind  Kind
	url   string
	cause error
}

// Kind reports which of the two failure classes this is
func (e *Error) Kind() Kind {
	return e.kind
}

// URL is the request URL the failure belongs to
func (e *Error) URL() string {
	return e.url
}

// Cause returns the transport or decoder error
func (e *Error) Cause() error {
	return e.cause
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: GET %s: %v", e.kind, e.url, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches the kind sentinels as well as anything in the cause chain
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRequestFailed:
		return e.kind == KindRequestFailed
	case ErrDeserializationFailed:
		return e.kind == KindDeserializationFailed
	}
	return false
}

func requestFailed(url string, cause error) *Error {
	return &Error{kind: KindRequestFailed, url: url, cause: cause}
}

func deserializationFailed(url string, cause error) *Error {
	return &Error{kind: KindDeserializationFailed, url: url, cause: cause}
}

// StatusError is the cause of a KindRequestFailed error when strict status checking is on
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

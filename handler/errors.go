package handler

import (
	"errors"
	"fmt"

	"mini-reqres/message"
)

var (
	// ErrUnimplemented: no response handler registered for the request type.
	ErrUnimplemented = errors.New("handler: request type not registered")
	// ErrInvalidRequestType: the value does not match the type registered for the request type.
	ErrInvalidRequestType = errors.New("handler: invalid request value type")
	ErrTooManyPending     = errors.New("handler: too many pending requests")
	ErrClosed             = errors.New("handler: closed")
	// ErrMalformedPayload: an inbound payload could not be decoded. No response is sent.
	ErrMalformedPayload = errors.New("handler: malformed payload")
)

// AckError is returned from a DispatchFunc to answer the request with Code instead of
// running the business handler. Any other dispatch error drops the request silently.
type AckError struct {
	Code message.AckCode
	Err  error
}

func NewAckError(code message.AckCode, err error) *AckError {
	return &AckError{Code: code, Err: err}
}

func (e *AckError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("handler: answered with %s", e.Code)
	}
	return fmt.Sprintf("handler: answered with %s: %v", e.Code, e.Err)
}

func (e *AckError) Unwrap() error { return e.Err }

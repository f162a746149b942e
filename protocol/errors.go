package protocol

import "fmt"

// ErrorCode is a stable code for wire-level failures, suitable for logging and metrics.
type ErrorCode uint16

const (
	ErrCodeUnknown        ErrorCode = 0
	ErrCodeInvalidVersion ErrorCode = 1001
	ErrCodeFrameTooLarge  ErrorCode = 1002
	ErrCodeBadFrame       ErrorCode = 1003
)

// ProtocolError is the only error type returned by the decoders in this package.
type ProtocolError struct {
	Code ErrorCode
	Msg  string
}

func (e *ProtocolError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("protocol error (%d)", e.Code)
	}
	return fmt.Sprintf("protocol error (%d): %s", e.Code, e.Msg)
}

func newError(code ErrorCode, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err is a *ProtocolError and returns it.
func IsProtocolError(err error) (*ProtocolError, bool) {
	if err == nil {
		return nil, false
	}
	pe, ok := err.(*ProtocolError)
	return pe, ok
}

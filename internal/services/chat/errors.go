package chat

import (
	"errors"
	"fmt"
)

// Code classifies a pipeline failure
type Code string

const (
	CodeBadRequest       Code = "BAD_REQUEST"
	CodeRateLimited      Code = "RATE_LIMIT_EXCEEDED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeInvalidContext   Code = "INVALID_CONTEXT_DATA"
	CodeModelUnavailable Code = "MODEL_UNAVAILABLE"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Error is a classified pipeline failure. Reason is a short machine-readable
// tag; Err carries the underlying cause when one exists.
type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("chat: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("chat: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the classification from an error chain, defaulting to
// CodeInternal for anything unclassified.
func CodeOf(err error) Code {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return CodeInternal
}

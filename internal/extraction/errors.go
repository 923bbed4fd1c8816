package extraction

import (
	"errors"
	"fmt"
)

// Kind classifies why a receipt could not be read.
type Kind string

const (
	KindUnreachable     Kind = "unreachable"
	KindTimeout         Kind = "timeout"
	KindInvalidResponse Kind = "invalid_response"
	KindDecode          Kind = "decode_error"
)

// Error is returned by Client.Extract for every failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("extraction %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an extraction error, or "" for other errors.
func KindOf(err error) Kind {
	var extErr *Error
	if errors.As(err, &extErr) {
		return extErr.Kind
	}
	return ""
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

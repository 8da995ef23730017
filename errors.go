package ar

import (
	"errors"
	"fmt"
)

var (
	ErrBadMagic      = errors.New("ar: bad magic")
	ErrBadHeaderEnd  = errors.New("ar: bad header end")
	ErrBadSize       = errors.New("ar: bad size field")
	ErrFieldTooLong  = errors.New("ar: field too long")
	ErrNegativeField = errors.New("ar: negative numeric field")
	ErrMissingSize   = errors.New("ar: size must be set for streaming content")
	ErrContentSize   = errors.New("ar: content length does not match size")
)

// FieldError reports a header value that cannot be written to its field.
// Err is ErrFieldTooLong unless set.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %s, value=%q", e.Unwrap(), e.Field, e.Value)
}

func (e *FieldError) Unwrap() error {
	if e.Err == nil {
		return ErrFieldTooLong
	}
	return e.Err
}

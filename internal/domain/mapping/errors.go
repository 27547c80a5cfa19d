package mapping

import (
	"errors"
	"fmt"
)

// Sentinel kinds for mapping errors. Every kind wraps ErrMapping.
var (
	ErrMapping           = errors.New("map record")
	ErrUnknownPID        = fmt.Errorf("%w: unknown pid code", ErrMapping)
	ErrNotInSchema       = fmt.Errorf("%w: signal not in schema", ErrMapping)
	ErrNullValue         = fmt.Errorf("%w: null value", ErrMapping)
	ErrShortPositional   = fmt.Errorf("%w: positional pids too short", ErrMapping)
	ErrMissingTimestamp  = fmt.Errorf("%w: missing relative timestamp", ErrMapping)
	ErrUnsupportedRecord = fmt.Errorf("%w: record not accepted by schema", ErrMapping)
	ErrDuplicateSignal   = fmt.Errorf("%w: signal already set by another field", ErrMapping)
	ErrNotNumeric        = fmt.Errorf("%w: value is not a number", ErrMapping)
	ErrTimestampRange    = fmt.Errorf("%w: timestamp out of range", ErrMapping)
)

// FieldError reports one dropped field. The rest of the record is kept.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func dropped(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

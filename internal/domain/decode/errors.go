package decode

import (
	"errors"
	"fmt"
)

// Sentinel kinds for decode errors.
var (
	ErrDecode = errors.New("decode frame")
)

func fieldTypeError(field, want string) error {
	return fmt.Errorf("%w: field %q must be %s", ErrDecode, field, want)
}

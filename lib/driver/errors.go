package driver

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrUnsupported is returned by operations a driver does not advertise.
	ErrUnsupported = errors.New("operation not supported by driver")
	// ErrDisposed is returned by drivers that are used after Dispose.
	ErrDisposed = errors.New("driver is disposed")
)

// UnsupportedError returns an error wrapping ErrUnsupported for op on the named driver.
func UnsupportedError(name string, op Feature) error {
	return fmt.Errorf("%s: %s: %w", name, op, ErrUnsupported)
}

// JoinErrors aggregates the non nil errors into one, or returns nil.
func JoinErrors(errs ...error) error {
	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

package encode

import (
	"errors"
	"fmt"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// EmptyInputError is returned when there are no records to encode. Callers
// should show a message instead of producing an empty document.
type EmptyInputError struct {
	Format Format
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s: no messages to encode", e.Format)
}

// RenderingEnvironmentError is returned when text cannot be measured or
// drawn, e.g. because the configured font cannot be loaded.
type RenderingEnvironmentError struct {
	Err error
}

func (e *RenderingEnvironmentError) Error() string {
	return fmt.Sprintf("rendering environment unavailable: %v", e.Err)
}

func (e *RenderingEnvironmentError) Unwrap() error {
	return e.Err
}

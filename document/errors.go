package document

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or unusable field in an assembly request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("document: missing field %q", e.Field)
	}
	return fmt.Sprintf("document: %s: %s", e.Field, e.Reason)
}

// RenderError reports a layout failure. Section is the index of the block being placed,
// or -1 when the failure happened while writing the output.
type RenderError struct {
	Section int
	Err     error
}

func (e *RenderError) Error() string {
	if e.Section < 0 {
		return fmt.Sprintf("document: render output: %v", e.Err)
	}
	return fmt.Sprintf("document: render section %d: %v", e.Section, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}

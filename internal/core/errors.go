package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoResults      = errors.New("no results from image classification")
	ErrAdapterFailure = errors.New("classifier failure")
	ErrMissingImage   = errors.New("no image selected")
	ErrStaleResult    = errors.New("classification superseded by a newer image selection")
	ErrInvalidReading = errors.New("invalid reading")
	ErrInvalidVector  = errors.New("invalid feature vector")
)

// AdapterFailureError carries the classifier's own message so it can be shown
// to the user verbatim.
type AdapterFailureError struct {
	Message string
	err     error
}

func NewAdapterFailure(err error) *AdapterFailureError {
	return &AdapterFailureError{Message: err.Error(), err: err}
}

func (e *AdapterFailureError) Error() string {
	return e.Message
}

func (e *AdapterFailureError) Unwrap() error {
	return e.err
}

func (e *AdapterFailureError) Is(target error) bool {
	return target == ErrAdapterFailure
}

type invalidReadingError struct {
	field string
	text  string
}

func (e *invalidReadingError) Error() string {
	return fmt.Sprintf("invalid reading: %s %q is not a number", e.field, e.text)
}

func (e *invalidReadingError) Is(target error) bool {
	return target == ErrInvalidReading
}

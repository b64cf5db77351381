package service

import "errors"

var (
	// ErrMalformedInput is returned for uploads that cannot be decoded or
	// are not readable PDFs.
	ErrMalformedInput = errors.New("malformed input")
	// ErrTooLarge is returned when the decoded upload exceeds the limit.
	ErrTooLarge = errors.New("upload too large")
)

// parseError reports a malformed upload as "failed to parse PDF: <reason>".
type parseError struct {
	reason error
}

func malformed(reason error) error {
	return &parseError{reason: reason}
}

func (e *parseError) Error() string {
	return "failed to parse PDF: " + e.reason.Error()
}

func (e *parseError) Is(target error) bool {
	return target == ErrMalformedInput
}

func (e *parseError) Unwrap() error {
	return e.reason
}

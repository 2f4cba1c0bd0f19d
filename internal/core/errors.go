package core

import "errors"

// Error taxonomy shared by the pipelines and the API layer.
// Wrap with fmt.Errorf("%w: ...") and inspect with errors.Is.
var (
	// ErrValidation marks missing or malformed request input. No external calls are made.
	ErrValidation = errors.New("validation error")

	// ErrInsufficientCredits rejects a scan before any metered call.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrExtraction marks a document that cannot be read as text.
	ErrExtraction = errors.New("extraction error")

	// ErrRateLimited is transient provider backpressure (HTTP 429 / quota exhausted).
	ErrRateLimited = errors.New("rate limited")

	// ErrProvider is any other, non-retriable, upstream failure.
	ErrProvider = errors.New("provider error")

	// ErrEmptyResult is a zero-length embedding for a non-empty input.
	ErrEmptyResult = errors.New("empty embedding result")

	// ErrParse marks model output that is not in the expected structured shape.
	ErrParse = errors.New("parse error")

	// ErrConfig marks invalid configuration, e.g. chunk overlap >= chunk size.
	ErrConfig = errors.New("configuration error")

	// ErrNotFound is returned by stores when a record does not exist for the caller.
	ErrNotFound = errors.New("not found")
)

package documents

import "errors"

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("document was modified concurrently")
	ErrInvalidState  = errors.New("document is not in a valid state for this operation")
	ErrEnqueueFailed = errors.New("failed to enqueue processing job")
)

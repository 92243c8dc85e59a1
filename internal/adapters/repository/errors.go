package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrUnavailable = errors.New("storage unavailable")
	ErrClosed      = errors.New("store closed")
)

package api

import (
	"errors"
	"net/http"

	"github.com/okian/runboard/internal/domain/ratelimit"
	"github.com/okian/runboard/internal/domain/validate"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("invalid JSON body")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Messages returned to clients in place of internal detail.
const (
	msgRateLimited = "Too many submissions, try again later"
	msgBadJSON     = "Invalid JSON body"
	msgSaveFailed  = "Failed to save"
	msgLoadFailed  = "Failed to load"
	msgNotAllowed  = "Method not allowed"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// submitError maps a submission failure to a status and client message.
// Anything else, storage failures included, is a generic 500.
func submitError(err error) (int, string) {
	var fe *validate.FieldError
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.As(err, &fe):
		return http.StatusBadRequest, fe.Error()
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, msgBadJSON
	default:
		return http.StatusInternalServerError, msgSaveFailed
	}
}

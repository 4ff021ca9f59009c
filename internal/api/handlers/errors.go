package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/statvalue/statvalue-companion/internal/api/response"
	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/session"
)

// StatusFor maps a domain error to an HTTP status.
func StatusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case session.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &apiErr):
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return http.StatusNotFound
		case apiErr.StatusCode == http.StatusUnauthorized:
			return http.StatusUnauthorized
		case apiErr.Type == backend.ErrTypeInvalidParams || apiErr.StatusCode == http.StatusBadRequest:
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError writes err with the status StatusFor assigns it.
func writeError(w http.ResponseWriter, err error) {
	response.Error(w, StatusFor(err), err)
}

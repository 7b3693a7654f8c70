package handler

import (
	"errors"
	"net/http"

	"cubby/internal/domain"
	"cubby/internal/httputil"
)

// respondDomainError maps domain errors to HTTP status codes.
// Unknown errors become opaque 500s so internals never leak to clients.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrPermissionDenied):
		httputil.RespondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "resource not found")
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

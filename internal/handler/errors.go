package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"chatrelay/internal/domain"
	"chatrelay/internal/httputil"
)

// handleError maps a domain error to the failure envelope. Expected
// failures surface their message; anything unrecognized is logged and
// hidden behind a generic 500.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), domain.Code(err), httpErr.Error(), r.URL.Path)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, domain.Code(err), "resource not found", r.URL.Path)
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, domain.Code(err), err.Error(), r.URL.Path)
	default:
		logger.Error("request failed",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method,
		)
		httputil.RespondError(w, http.StatusInternalServerError,
			"INTERNAL_SERVER_ERROR", "internal server error", r.URL.Path)
	}
}

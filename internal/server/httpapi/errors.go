package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/dekinai/internal/common"
)

// writeError maps service errors to status codes. Only 500s are logged;
// their detail stays out of the response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		http.Error(w, "File is too large.", http.StatusRequestEntityTooLarge)
	case errors.Is(err, common.ErrorBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, common.ErrorUnauthorized):
		http.Error(w, "Unauthorized.", http.StatusUnauthorized)
	case errors.Is(err, common.ErrorNotFound):
		http.Error(w, "File not found.", http.StatusNotFound)
	default:
		s.logger.Error(r.Context(), "request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
	}
}

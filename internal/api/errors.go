package api

import (
	"errors"
	"net/http"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
	"github.com/cutlist/cutlist-agent/internal/edl"
	"github.com/cutlist/cutlist-agent/internal/session"
)

// writeServiceError maps a session or clip list error onto a response.
// ErrReadOnly is checked before ErrPrecondition, which it wraps.
func writeServiceError(w http.ResponseWriter, err error) {
	var lineErr *edl.LineError
	var destErr *session.DestError

	switch {
	case errors.As(err, &lineErr):
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "MALFORMED_EDL",
			Line:  lineErr.Line,
		})
	case errors.Is(err, edl.ErrEncoding):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EDL_ENCODING")
	case errors.Is(err, cliplist.ErrInvalidRange):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_RANGE")
	case errors.Is(err, cliplist.ErrReadOnly):
		WriteError(w, http.StatusConflict, "a save is in progress for this session", "SESSION_BUSY")
	case errors.Is(err, cliplist.ErrPrecondition), errors.Is(err, session.ErrJobNotRunning):
		WriteError(w, http.StatusConflict, err.Error(), "INVALID_STATE")
	case errors.Is(err, session.ErrMediaMissing):
		WriteError(w, http.StatusConflict, err.Error(), "MEDIA_MISSING")
	case errors.Is(err, session.ErrInvalidMedia):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_MEDIA")
	case session.IsNotFound(err):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.As(err, &destErr):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

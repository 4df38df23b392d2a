package httpx

import (
	"errors"
	"net/http"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// RespondError maps the core error taxonomy to HTTP responses using RFC7807.
// Messages for NotFound/Conflict/BadRequest name the offending ids or fields;
// everything else collapses to an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

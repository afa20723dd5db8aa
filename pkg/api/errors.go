package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/contacts"
	"github.com/platinummonkey/rolodex/pkg/httputil"
	"github.com/platinummonkey/rolodex/pkg/observability"
	"github.com/platinummonkey/rolodex/pkg/session"
	"github.com/platinummonkey/rolodex/pkg/storage"
)

// writeError maps an error to its HTTP status. Unknown errors are logged and
// answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	var validationErr *contacts.ValidationError
	var sessionErr *session.Error

	switch {
	case errors.As(err, &validationErr):
		httputil.WriteValidationError(w, validationErr.Error())
	case errors.As(err, &sessionErr):
		writeSessionError(w, sessionErr)
	case errors.Is(err, storage.ErrConflict):
		httputil.WriteConflict(w, "Record already exists")
	default:
		observability.LoggerFromContext(r.Context(), logger).
			WithError(err).
			Error("Request failed")
		httputil.WriteInternalError(w)
	}
}

func writeSessionError(w http.ResponseWriter, err *session.Error) {
	switch {
	case errors.Is(err, session.ErrConflict):
		httputil.WriteConflict(w, err.Message)
	case errors.Is(err, session.ErrUnauthorized):
		httputil.WriteUnauthorized(w, err.Message)
	case errors.Is(err, session.ErrBadRequest):
		httputil.WriteBadRequest(w, err.Message)
	case errors.Is(err, session.ErrUnprocessableToken):
		httputil.WriteValidationError(w, err.Message)
	case errors.Is(err, session.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Message)
	default:
		httputil.WriteInternalError(w)
	}
}

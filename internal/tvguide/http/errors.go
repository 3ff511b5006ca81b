package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/slogx"
)

// writeServiceError maps a service error onto its response. Anything
// unrecognised is logged and answered with 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	var input *service.InputError
	switch {
	case errors.As(err, &input):
		authsdk.ErrInvalidRequest.WithDescription(input.Error()).WriteError(w)
	case errors.Is(err, service.ErrMalformedInput):
		authsdk.ErrInvalidRequest.WriteError(w)

	case errors.Is(err, service.ErrDuplicateUsername):
		authsdk.ErrUsernameTaken.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+Realm+`"`)
		authsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+Realm+`", error="invalid_token"`)
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrForbidden):
		authsdk.ErrInsufficientRole.WriteError(w)

	case errors.Is(err, service.ErrChannelNotFound):
		authsdk.ErrNotFound.WithDescription("channel not found").WriteError(w)
	case errors.Is(err, service.ErrProgramNotFound):
		authsdk.ErrNotFound.WithDescription("program not found").WriteError(w)
	case errors.Is(err, service.ErrChannelExists):
		authsdk.ErrConflict.WithDescription("a channel with that name already exists").WriteError(w)

	case errors.Is(err, service.ErrBootstrapDisabled):
		authsdk.ErrNotFound.WithDescription("bootstrap endpoint is not enabled").WriteError(w)
	case errors.Is(err, service.ErrBootstrapUnauthorized):
		authsdk.ErrUnauthorized.WithDescription("invalid bootstrap token").WriteError(w)
	case errors.Is(err, service.ErrBootstrapAlready):
		authsdk.ErrConflict.WithDescription("system already bootstrapped").WriteError(w)

	case errors.Is(err, service.ErrDirectoryUnavailable):
		log.Error("directory unavailable", slog.Any("error", err))
		authsdk.ErrTemporarilyUnavailable.WriteError(w)
	default:
		log.Error("unhandled service error", slog.Any("error", err))
		authsdk.ErrServerError.WriteError(w)
	}
}

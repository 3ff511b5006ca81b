package http

import (
	"net/http"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
	"github.com/aussiebroadwan/tvguide/pkg/slogx"
)

// BootstrapTokenHeader carries the one-time setup token.
const BootstrapTokenHeader = "X-Bootstrap-Token"

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP handles the bootstrap endpoint for initial system setup.
//
//	@Summary		Create or promote the first admin
//	@Description	Creates the first admin account, or promotes an existing account after checking its password.
//	@Description	Only available when a bootstrap token is configured and no admin exists yet.
//	@Tags			Bootstrap
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string						true	"Bootstrap token"
//	@Param			request				body		authsdk.BootstrapRequest	true	"Admin credentials"
//	@Success		201					{object}	authsdk.UserResponse		"The admin account"
//	@Failure		400					{object}	authsdk.ErrorResponse		"Invalid request body or validation failed"
//	@Failure		401					{object}	authsdk.ErrorResponse		"Missing or invalid bootstrap token, or wrong password for an existing account"
//	@Failure		404					{object}	authsdk.ErrorResponse		"Bootstrap not enabled"
//	@Failure		409					{object}	authsdk.ErrorResponse		"An admin already exists"
//	@Router			/bootstrap [post].
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	if !h.BootstrapService.Enabled() {
		authsdk.ErrNotFound.WithDescription("bootstrap endpoint is not enabled").WriteError(w)
		return
	}

	token := r.Header.Get(BootstrapTokenHeader)
	if token == "" {
		authsdk.ErrUnauthorized.WithDescription("bootstrap token is required in " + BootstrapTokenHeader).WriteError(w)
		return
	}

	if !isContentType(r, "application/json") {
		authsdk.ErrInvalidRequest.WithDescription("content type must be application/json").WriteError(w)
		return
	}
	var req authsdk.BootstrapRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	u, err := h.BootstrapService.Bootstrap(r.Context(), token, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	l.Info("bootstrap complete", "user_id", u.ID, "username", u.Username)
	httpx.WriteJSON(w, http.StatusCreated, userResponse(u))
}

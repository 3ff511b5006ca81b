package http

import (
	"net/http"

	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
)

type UserInfoHandler struct{}

// ServeHTTP returns the account bound to the bearer token.
//
//	@Summary		Get the current user
//	@Description	Returns the account the access token was issued to. The password hash is never included.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse	"id, username, role"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid or expired access token"
//	@Failure		503	{object}	authsdk.ErrorResponse	"User directory unavailable"
//	@Router			/users/me [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u, ok := callerFrom(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse(u))
}

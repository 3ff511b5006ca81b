package http

import (
	"net/http"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
)

// RegisterHandler serves POST /auth/register.
type RegisterHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP godoc
//
//	@Summary		Register an account
//	@Description	Creates a new account. The role defaults to the configured default role.
//	@Description	Requesting the admin role needs an admin bearer token unless open role registration is enabled.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.RegisterRequest	true	"username, password, optional role"
//	@Success		201		{object}	authsdk.UserResponse	"id, username, role"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body or field validation failed"
//	@Failure		401		{object}	authsdk.ErrorResponse	"A bearer token was sent but is invalid"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Admin role requested without admin privileges"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Username already taken"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Too many requests"
//	@Failure		503		{object}	authsdk.ErrorResponse	"User directory unavailable"
//	@Router			/auth/register [post].
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !isContentType(r, "application/json") {
		authsdk.ErrInvalidRequest.WithDescription("content type must be application/json").WriteError(w)
		return
	}

	var req authsdk.RegisterRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	var caller *domain.User
	if u, ok := callerFrom(r.Context()); ok {
		caller = &u
	}

	u, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	}, caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/users/me")
	httpx.WriteJSON(w, http.StatusCreated, userResponse(u))
}

package http

import (
	"net/http"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
)

// TokenHandler serves POST /auth/token. It takes the OAuth2 password grant
// form, or the same fields as JSON.
type TokenHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP godoc
//
//	@Summary		Exchange credentials for an access token
//	@Description	Verifies username and password and issues a bearer token.
//	@Description	Unknown usernames and wrong passwords produce the same response.
//	@Tags			Auth
//	@Accept			application/x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Param			grant_type	formData	string					false	"Grant type"	Enums(password)
//	@Param			username	formData	string					true	"Username"
//	@Param			password	formData	string					true	"Password"
//	@Success		200			{object}	authsdk.TokenResponse	"access_token, token_type, expires_in"
//	@Failure		400			{object}	authsdk.ErrorResponse	"Malformed request or unsupported grant type"
//	@Failure		401			{object}	authsdk.ErrorResponse	"Invalid credentials"
//	@Failure		429			{object}	authsdk.ErrorResponse	"Too many requests"
//	@Failure		503			{object}	authsdk.ErrorResponse	"User directory unavailable"
//	@Header			200			{string}	Cache-Control			"no-store"
//	@Header			200			{string}	Pragma					"no-cache"
//	@Router			/auth/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TokenRequest

	switch {
	case r.Header.Get("Content-Type") != "" && isContentType(r, "application/json"):
		if err := decodeJSONBody(w, r, &req); err != nil {
			authsdk.ErrInvalidBody.WriteError(w)
			return
		}
	case isContentType(r, "application/x-www-form-urlencoded"):
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			authsdk.ErrInvalidRequest.WithDescription("malformed form body").WriteError(w)
			return
		}
		req.GrantType = r.PostForm.Get("grant_type")
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	default:
		authsdk.ErrInvalidRequest.WithDescription("unsupported content type").WriteError(w)
		return
	}

	if req.GrantType != "" && req.GrantType != "password" {
		authsdk.ErrUnsupportedGrantType.WriteError(w)
		return
	}

	tok, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken: tok.Token,
		TokenType:   tok.TokenType,
		ExpiresIn:   int(tok.ExpiresIn.Seconds()),
	})
}

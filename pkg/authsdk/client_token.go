package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// PasswordGrant exchanges a username and password for an access token.
func (c *SDKClient) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/token",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		"",
	)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Register creates an account anonymously.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	var u UserResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", nil, req, &u, http.StatusCreated); err != nil {
		return nil, err
	}
	return &u, nil
}

// Bootstrap creates the first administrator using the server's bootstrap token.
func (c *SDKClient) Bootstrap(ctx context.Context, token string, req BootstrapRequest) (*UserResponse, error) {
	var u UserResponse
	err := c.doJSON(ctx, http.MethodPost, "/bootstrap", "",
		map[string]string{"X-Bootstrap-Token": token},
		req, &u, http.StatusCreated,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

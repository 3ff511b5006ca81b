package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Session carries an access token for authenticated calls. Tokens cannot
// be refreshed; once Expired reports true, log in again.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	return &Session{
		client:      client,
		accessToken: tokenResp.AccessToken,
		expiresAt:   time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}
}

// AccessToken returns the raw bearer token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Expired reports whether the token's lifetime has run out locally.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !time.Now().Before(s.expiresAt)
}

func (s *Session) do(ctx context.Context, method, path string, in, out any, status int) error {
	return s.client.doJSON(ctx, method, path, s.AccessToken(), nil, in, out, status)
}

// Me returns the account the token belongs to.
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	var u UserResponse
	if err := s.do(ctx, http.MethodGet, "/users/me", nil, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// Register creates an account on behalf of the session's user. Admin
// sessions may grant the admin role.
func (s *Session) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	var u UserResponse
	if err := s.do(ctx, http.MethodPost, "/auth/register", req, &u, http.StatusCreated); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateChannel requires an admin session.
func (s *Session) CreateChannel(ctx context.Context, req ChannelRequest) (*ChannelResponse, error) {
	var out ChannelResponse
	if err := s.do(ctx, http.MethodPost, "/channels", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChannel requires an admin session. Programs on the channel go with it.
func (s *Session) DeleteChannel(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

// CreateProgram requires an admin session.
func (s *Session) CreateProgram(ctx context.Context, req ProgramRequest) (*ProgramResponse, error) {
	var out ProgramResponse
	if err := s.do(ctx, http.MethodPost, "/programs", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProgram requires an admin session.
func (s *Session) UpdateProgram(ctx context.Context, id string, req ProgramRequest) (*ProgramResponse, error) {
	var out ProgramResponse
	if err := s.do(ctx, http.MethodPut, "/programs/"+url.PathEscape(id), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProgram requires an admin session.
func (s *Session) DeleteProgram(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, "/programs/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

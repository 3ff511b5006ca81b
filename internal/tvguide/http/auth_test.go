package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	u := decodeBody[authsdk.UserResponse](t, rec)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "user", u.Role)
	require.NotEmpty(t, u.ID)
	require.NotContains(t, rec.Body.String(), "password")
	require.NotContains(t, rec.Body.String(), "argon2id")
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "longenough1")

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice",
		"password": "different99",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, authsdk.ErrorCodeUsernameTaken, errorCode(t, rec))
}

func TestRegister_MalformedInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     any
		inDetail string
	}{
		{"short password", map[string]string{"username": "bob", "password": "short"}, "password"},
		{"empty username", map[string]string{"username": "  ", "password": "longenough1"}, "username"},
		{"unknown role", map[string]string{"username": "bob", "password": "longenough1", "role": "root"}, "role"},
		{"unknown field", `{"username":"bob","password":"longenough1","admin":true}`, ""},
		{"not json", `username=bob`, ""},
		{"trailing data", `{"username":"bob","password":"longenough1"}{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/register", "", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decodeBody[httpx.ErrorBody](t, rec)
			require.Equal(t, authsdk.ErrorCodeInvalidRequest, body.Error)
			require.Contains(t, body.ErrorDescription, tt.inDetail)
		})
	}

	// nothing was stored
	_, err := env.store.Users().GetUserByUsername(t.Context(), "bob")
	require.Error(t, err)
}

func TestRegister_WrongContentType(t *testing.T) {
	env := newTestEnv(t)

	req := strings.NewReader(`{"username":"bob","password":"longenough1"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/register", req)
	r.Header.Set("Content-Type", "text/plain")
	rec := serve(env, r)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_AdminRole(t *testing.T) {
	env := newTestEnv(t)
	adminTok := env.adminToken(t, "root")
	env.register(t, "carol", "longenough1")
	userTok := env.login(t, "carol", "longenough1")

	body := map[string]string{"username": "dave", "password": "longenough1", "role": "admin"}

	t.Run("anonymous", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/register", "", body)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, authsdk.ErrorCodeInsufficientRole, errorCode(t, rec))
	})

	t.Run("as plain user", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/register", userTok, body)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad bearer token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/register", "garbage", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
	})

	t.Run("as admin", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/register", adminTok, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.Equal(t, "admin", decodeBody[authsdk.UserResponse](t, rec).Role)
	})
}

func TestToken_Form(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "longenough1")

	rec := env.postForm(t, "/auth/token", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"longenough1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	tok := decodeBody[authsdk.TokenResponse](t, rec)
	require.Equal(t, "bearer", tok.TokenType)
	require.InDelta(t, (30 * time.Minute).Seconds(), tok.ExpiresIn, 2)

	claims, err := env.tokens.Verify(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
}

func TestToken_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "longenough1")

	rec := env.do(t, http.MethodPost, "/auth/token", "", map[string]string{
		"username": "alice",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, decodeBody[authsdk.TokenResponse](t, rec).AccessToken)
}

func TestToken_InvalidCredentialsIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "longenough1")

	wrongPassword := env.postForm(t, "/auth/token", url.Values{
		"username": {"alice"},
		"password": {"wrongpassword"},
	})
	unknownUser := env.postForm(t, "/auth/token", url.Values{
		"username": {"nobody"},
		"password": {"wrongpassword"},
	})

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownUser} {
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, `Bearer realm="tvguide"`, rec.Header().Get("WWW-Authenticate"))
		require.Equal(t, authsdk.ErrorCodeInvalidGrant, errorCode(t, rec))
	}
	require.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestToken_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unsupported grant", func(t *testing.T) {
		rec := env.postForm(t, "/auth/token", url.Values{
			"grant_type": {"client_credentials"},
			"username":   {"alice"},
			"password":   {"longenough1"},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, authsdk.ErrorCodeUnsupportedGrantType, errorCode(t, rec))
	})

	t.Run("missing password", func(t *testing.T) {
		rec := env.postForm(t, "/auth/token", url.Values{"username": {"alice"}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, authsdk.ErrorCodeInvalidRequest, errorCode(t, rec))
	})

	t.Run("unsupported content type", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader("alice:longenough1"))
		r.Header.Set("Content-Type", "text/plain")
		rec := serve(env, r)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestToken_RateLimited(t *testing.T) {
	env := newTestEnv(t, withLimiters(Limiters{
		Strict: httpx.NewMemoryLimiter(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}),
	}))

	form := url.Values{"username": {"alice"}, "password": {"wrongpassword"}}
	for range 2 {
		require.Equal(t, http.StatusUnauthorized, env.postForm(t, "/auth/token", form).Code)
	}

	rec := env.postForm(t, "/auth/token", form)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, authsdk.ErrorCodeRateLimited, errorCode(t, rec))

	// a different username from the same address has its own bucket
	other := url.Values{"username": {"bob"}, "password": {"wrongpassword"}}
	require.Equal(t, http.StatusUnauthorized, env.postForm(t, "/auth/token", other).Code)
}

func TestToken_RateLimitKeys(t *testing.T) {
	strict := func() Limiters {
		return Limiters{
			Strict: httpx.NewMemoryLimiter(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}),
		}
	}
	guess := func(env *testEnv, remoteAddr, username, forwardedFor string) int {
		form := url.Values{"username": {username}, "password": {"wrongpassword"}}
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
		req.RemoteAddr = remoteAddr
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("forwarded for from an untrusted peer is ignored", func(t *testing.T) {
		env := newTestEnv(t, withLimiters(strict()))

		limited := 0
		for i := range 10 {
			if guess(env, "192.0.2.1:1234", "alice", fmt.Sprintf("203.0.113.%d", i)) == http.StatusTooManyRequests {
				limited++
			}
		}
		require.Equal(t, 8, limited)
	})

	t.Run("padded usernames share a bucket", func(t *testing.T) {
		env := newTestEnv(t, withLimiters(strict()))

		limited := 0
		for i := range 10 {
			username := strings.Repeat(" ", i) + "alice" + strings.Repeat(" ", i%3)
			if guess(env, "192.0.2.1:1234", username, "") == http.StatusTooManyRequests {
				limited++
			}
		}
		require.Equal(t, 8, limited)
	})

	t.Run("trusted proxy forwards the client address", func(t *testing.T) {
		trust, err := httpx.ParseTrustedProxies("10.0.0.0/8")
		require.NoError(t, err)
		limiters := strict()
		limiters.Proxies = trust
		env := newTestEnv(t, withLimiters(limiters))

		for range 2 {
			require.Equal(t, http.StatusUnauthorized, guess(env, "10.0.0.2:443", "alice", "203.0.113.1"))
		}
		require.Equal(t, http.StatusTooManyRequests, guess(env, "10.0.0.3:443", "alice", "203.0.113.1"))

		// a spoofed leftmost entry does not change the key
		require.Equal(t, http.StatusTooManyRequests, guess(env, "10.0.0.2:443", "alice", "198.51.100.9, 203.0.113.1"))

		// another client behind the same proxy has its own bucket
		require.Equal(t, http.StatusUnauthorized, guess(env, "10.0.0.2:443", "alice", "203.0.113.50"))
	})
}

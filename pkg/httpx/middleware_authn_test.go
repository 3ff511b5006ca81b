package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/tvguide/pkg/httpx"
	"github.com/aussiebroadwan/tvguide/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testPrincipal struct{ subject, role string }

func (p testPrincipal) Subject() string  { return p.subject }
func (p testPrincipal) RoleName() string { return p.role }

// newGate recognises a handful of fixed tokens.
func newGate(decisions *[]string) *httpx.Gate {
	return &httpx.Gate{
		Realm: "tvguide",
		Authenticator: httpx.AuthenticatorFunc(func(_ context.Context, token string) (httpx.Principal, error) {
			switch token {
			case "alice-token":
				return testPrincipal{"alice", "user"}, nil
			case "root-token":
				return testPrincipal{"root", "admin"}, nil
			case "expired-token":
				return nil, fmt.Errorf("%w: %w", httpx.ErrUnauthenticated, jwtx.ErrExpired)
			case "broken-backend":
				return nil, errors.New("connection refused")
			default:
				return nil, fmt.Errorf("%w: %w", httpx.ErrUnauthenticated, jwtx.ErrInvalidToken)
			}
		}),
		Observe: func(d string) {
			if decisions != nil {
				*decisions = append(*decisions, d)
			}
		},
	}
}

var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"subject": ""})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"subject": p.Subject()})
})

func do(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		present bool
	}{
		{"", "", false},
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			token, present := httpx.BearerToken(req)
			require.Equal(t, tt.token, token)
			require.Equal(t, tt.present, present)
		})
	}
}

func TestGate_RequireAuth(t *testing.T) {
	var decisions []string
	g := newGate(&decisions)
	h := g.RequireAuth()(whoami)

	t.Run("valid token", func(t *testing.T) {
		rec := do(h, "Bearer alice-token")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"subject":"alice"}`, rec.Body.String())
	})

	t.Run("missing token", func(t *testing.T) {
		rec := do(h, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, `Bearer realm="tvguide"`, rec.Header().Get("WWW-Authenticate"))
		require.Equal(t, "invalid_token", decodeError(t, rec).Error)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		rec := do(h, "Basic dXNlcjpwYXNz")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := do(h, "Bearer forged")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
		require.Equal(t, "invalid token", decodeError(t, rec).ErrorDescription)
	})

	t.Run("expired token", func(t *testing.T) {
		rec := do(h, "Bearer expired-token")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeError(t, rec)
		require.Equal(t, "invalid_token", body.Error)
		require.Equal(t, "token expired", body.ErrorDescription)
	})

	t.Run("backend failure is not a 401", func(t *testing.T) {
		rec := do(h, "Bearer broken-backend")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Empty(t, rec.Header().Get("WWW-Authenticate"))
		require.Equal(t, "temporarily_unavailable", decodeError(t, rec).Error)
	})

	require.Equal(t, []string{
		httpx.DecisionAuthenticated,
		httpx.DecisionUnauthenticated,
		httpx.DecisionUnauthenticated,
		httpx.DecisionUnauthenticated,
		httpx.DecisionUnauthenticated,
		httpx.DecisionUnavailable,
	}, decisions)
}

func TestGate_OptionalAuth(t *testing.T) {
	h := newGate(nil).OptionalAuth()(whoami)

	rec := do(h, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"subject":""}`, rec.Body.String())

	rec = do(h, "Bearer root-token")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"subject":"root"}`, rec.Body.String())

	// a bad token is still rejected
	rec = do(h, "Bearer forged")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGate_RequireRole(t *testing.T) {
	var decisions []string
	g := newGate(&decisions)
	h := httpx.Chain(whoami, g.RequireAuth(), g.RequireRole("admin"))

	rec := do(h, "Bearer root-token")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, "Bearer alice-token")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="insufficient_scope"`)
	require.Equal(t, "insufficient_role", decodeError(t, rec).Error)

	rec = do(h, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, []string{
		httpx.DecisionAuthenticated, httpx.DecisionAuthorized,
		httpx.DecisionAuthenticated, httpx.DecisionForbidden,
		httpx.DecisionUnauthenticated,
	}, decisions)

	// role check without a principal in context
	rec = do(g.RequireRole("admin")(whoami), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	do(httpx.Chain(okHandler, mw("a"), mw("b"), mw("c")), "")
	require.Equal(t, []string{"a", "b", "c"}, order)
}

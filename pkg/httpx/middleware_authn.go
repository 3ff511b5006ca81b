package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tvguide/pkg/jwtx"
	"github.com/aussiebroadwan/tvguide/pkg/slogx"
)

// ErrUnauthenticated must be in the chain of any Authenticator error that
// should answer 401. Every other error answers 503.
var ErrUnauthenticated = errors.New("httpx: unauthenticated")

// Authenticator maps a raw bearer token to the caller it identifies.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (Principal, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (Principal, error) {
	return f(ctx, token)
}

// Gate decisions passed to Gate.Observe.
const (
	DecisionAuthenticated   = "authenticated"
	DecisionUnauthenticated = "unauthenticated"
	DecisionUnavailable     = "unavailable"
	DecisionAuthorized      = "authorized"
	DecisionForbidden       = "forbidden"
)

// Gate guards handlers behind bearer authentication and role checks.
type Gate struct {
	Authenticator Authenticator

	// Realm is advertised in WWW-Authenticate challenges.
	Realm string

	// Observe, when set, is told about every decision the gate makes.
	Observe func(decision string)
}

// RequireAuth rejects requests without a valid bearer token.
func (g *Gate) RequireAuth() Middleware {
	return g.authenticate(false)
}

// OptionalAuth lets anonymous requests through but still rejects a bearer
// token that is present and bad.
func (g *Gate) OptionalAuth() Middleware {
	return g.authenticate(true)
}

func (g *Gate) authenticate(optional bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, present := BearerToken(r)
			if !present {
				if optional {
					next.ServeHTTP(w, r)
					return
				}
				g.observe(DecisionUnauthenticated)
				g.writeChallenge(w, "", "missing bearer token")
				return
			}

			p, err := g.Authenticator.Authenticate(ctx, raw)
			switch {
			case err == nil:
			case errors.Is(err, ErrUnauthenticated):
				g.observe(DecisionUnauthenticated)
				log.Info("bearer token rejected", slog.Any("reason", err))
				desc := "invalid token"
				if errors.Is(err, jwtx.ErrExpired) {
					desc = "token expired"
				}
				g.writeChallenge(w, "invalid_token", desc)
				return
			default:
				g.observe(DecisionUnavailable)
				log.Error("authentication backend failed", slog.Any("error", err))
				WriteError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "identity lookup failed, try again later")
				return
			}

			g.observe(DecisionAuthenticated)
			ctx = WithPrincipal(ctx, p)
			ctx = slogx.With(ctx, "user", p.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits callers holding any of roles. It must run after
// RequireAuth.
func (g *Gate) RequireRole(roles ...string) Middleware {
	want := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				g.observe(DecisionUnauthenticated)
				g.writeChallenge(w, "", "missing bearer token")
				return
			}
			if _, ok := want[p.RoleName()]; !ok {
				g.observe(DecisionForbidden)
				slogx.FromContext(r.Context()).Warn("role check failed",
					slog.String("role", p.RoleName()),
					slog.Any("required", roles),
				)
				w.Header().Set("WWW-Authenticate", g.challenge("insufficient_scope", "requires role "+strings.Join(roles, " or ")))
				WriteError(w, http.StatusForbidden, "insufficient_role", "requires role "+strings.Join(roles, " or "))
				return
			}
			g.observe(DecisionAuthorized)
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an Authorization header. present is
// false when the header is absent or uses another scheme.
func BearerToken(r *http.Request) (token string, present bool) {
	h := r.Header.Get("Authorization")
	scheme, rest, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func (g *Gate) observe(decision string) {
	if g.Observe != nil {
		g.Observe(decision)
	}
}

// RFC 6750-compliant error response for bearer auth.
func (g *Gate) writeChallenge(w http.ResponseWriter, errCode, desc string) {
	w.Header().Set("WWW-Authenticate", g.challenge(errCode, desc))
	code := errCode
	if code == "" {
		code = "invalid_token"
	}
	WriteError(w, http.StatusUnauthorized, code, desc)
}

func (g *Gate) challenge(errCode, desc string) string {
	var b strings.Builder
	b.WriteString("Bearer")
	sep := " "
	if g.Realm != "" {
		b.WriteString(` realm="` + g.Realm + `"`)
		sep = ", "
	}
	if errCode != "" {
		b.WriteString(sep + `error="` + errCode + `", error_description="` + desc + `"`)
	}
	return b.String()
}

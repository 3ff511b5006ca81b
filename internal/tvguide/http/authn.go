package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/service"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
)

// authenticate adapts IdentityService to httpx.Authenticator. The principal
// placed in the request context is always a domain.User.
func (r *Router) authenticate(ctx context.Context, token string) (httpx.Principal, error) {
	u, err := r.IdentityService.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			return nil, fmt.Errorf("%w: %w", httpx.ErrUnauthenticated, err)
		}
		return nil, err
	}
	return u, nil
}

// callerFrom returns the authenticated user, if the gate put one there.
func callerFrom(ctx context.Context) (domain.User, bool) {
	p, ok := httpx.PrincipalFrom(ctx)
	if !ok {
		return domain.User{}, false
	}
	u, ok := p.(domain.User)
	return u, ok
}

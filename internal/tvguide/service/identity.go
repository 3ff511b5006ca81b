package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
	"github.com/aussiebroadwan/tvguide/pkg/jwtx"
)

// IdentityService turns a bearer token back into the account it names.
type IdentityService struct {
	Store  store.Store
	Tokens jwtx.Verifier
}

// Authenticate verifies token and loads its subject from the directory.
// Bad, expired and orphaned tokens fail with ErrUnauthenticated; the jwtx
// cause stays in the chain so callers can tell expiry apart.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	return s.Lookup(ctx, claims.Subject)
}

// Lookup resolves a username. Unknown names fail with ErrUnauthenticated,
// since a caller only ever reaches this with a name taken from a token.
func (s *IdentityService) Lookup(ctx context.Context, username string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
		}
		return domain.User{}, unavailable(err)
	}
	u.PasswordHash = ""
	return u, nil
}

// Authorize checks that u holds one of roles. An empty roles list admits
// any authenticated user.
func Authorize(u domain.User, roles ...domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

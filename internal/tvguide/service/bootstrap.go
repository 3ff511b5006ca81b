package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
	"github.com/aussiebroadwan/tvguide/pkg/cryptox"
	"github.com/aussiebroadwan/tvguide/pkg/idx"
	"github.com/aussiebroadwan/tvguide/pkg/slogx"
)

// BootstrapService creates the first administrator. It is usable only while
// a bootstrap token is configured and no admin exists yet.
type BootstrapService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Token  string // Pre-configured bootstrap token
}

// Enabled reports whether a bootstrap token is configured.
func (s *BootstrapService) Enabled() bool { return s.Token != "" }

// IsBootstrapped reports whether at least one admin account exists.
func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	n, err := s.Store.Users().CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// Bootstrap creates username as an admin, or promotes it if it already
// exists and password matches.
func (s *BootstrapService) Bootstrap(ctx context.Context, token, username, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	if !s.Enabled() {
		return domain.User{}, ErrBootstrapDisabled
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		l.Warn("unauthorized bootstrap attempt")
		return domain.User{}, ErrBootstrapUnauthorized
	}

	username, err := NormalizeUsername(username)
	if err != nil {
		return domain.User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}

	var admin domain.User
	err = inTx(ctx, s.Store, func(tx store.Tx) error {
		if err := tx.LockAdmins(ctx); err != nil {
			return unavailable(err)
		}
		n, err := tx.Users().CountByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return unavailable(err)
		}
		if n > 0 {
			return ErrBootstrapAlready
		}

		existing, err := tx.Users().GetUserByUsername(ctx, username)
		switch {
		case err == nil:
			ok, verr := s.Hasher.Verify(password, existing.PasswordHash)
			if verr != nil || !ok {
				return ErrInvalidCredentials
			}
			if err := tx.Users().UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
				return unavailable(err)
			}
			existing.Role = domain.RoleAdmin
			admin = existing
			return nil

		case errors.Is(err, store.ErrNotFound):
			now := time.Now().UTC()
			admin = domain.User{
				ID:           idx.NewAt(now).String(),
				Username:     username,
				PasswordHash: hash,
				Role:         domain.RoleAdmin,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.Users().CreateUser(ctx, admin); err != nil {
				return unavailable(err)
			}
			return nil

		default:
			return unavailable(err)
		}
	})
	if err != nil {
		if errors.Is(err, ErrBootstrapAlready) {
			l.Warn("attempted bootstrap on already-bootstrapped system")
		}
		return domain.User{}, err
	}

	l.Info("successfully bootstrapped system", slog.String("admin_user_id", admin.ID))
	admin.PasswordHash = ""
	return admin, nil
}

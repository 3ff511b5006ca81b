package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
	"github.com/aussiebroadwan/tvguide/pkg/cryptox"
	"github.com/aussiebroadwan/tvguide/pkg/idx"
	"github.com/aussiebroadwan/tvguide/pkg/jwtx"
	"github.com/aussiebroadwan/tvguide/pkg/slogx"
)

// TokenIssuer mints access tokens for a subject.
type TokenIssuer interface {
	Issue(subject string) (string, jwtx.Claims, error)
}

// RegisterInput is the raw registration request. Role may be empty.
type RegisterInput struct {
	Username string
	Password string
	Role     string
}

// AuthService covers registration and password login.
type AuthService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Tokens TokenIssuer

	// DefaultRole is assigned when a registration names no role.
	DefaultRole domain.Role

	// OpenRoleRegistration lets anonymous callers self-register as admin.
	OpenRoleRegistration bool

	Metrics Metrics

	// dummyHash is verified against when a login names an unknown user.
	dummyHash string
}

var errAuthNotPrepared = errors.New("service: auth service not prepared")

// Prepare readies the service for logins. It must succeed before the
// service handles requests.
func (s *AuthService) Prepare() error {
	if s.Hasher == nil {
		return errors.New("service: auth service has no hasher")
	}
	h, err := s.Hasher.Hash(idx.New().String())
	if err != nil {
		return fmt.Errorf("service: prepare login digest: %w", err)
	}
	s.dummyHash = h
	return nil
}

// Register creates a new account. caller is the authenticated principal
// making the request, or nil for anonymous registration. The returned user
// never carries the password hash.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, caller *domain.User) (domain.User, error) {
	l := slogx.FromContext(ctx)
	m := metricsOrNoop(s.Metrics)

	u, err := s.register(ctx, in, caller)
	switch {
	case err == nil:
		m.AuthAttempt("register", OutcomeSuccess)
		l.Info("user registered", slog.String("user_id", u.ID), slog.String("role", u.Role.String()))
	case errors.Is(err, ErrMalformedInput):
		m.AuthAttempt("register", OutcomeMalformed)
	case errors.Is(err, ErrDuplicateUsername):
		m.AuthAttempt("register", OutcomeDuplicate)
		l.Info("registration rejected, username taken")
	case errors.Is(err, ErrForbidden):
		m.AuthAttempt("register", OutcomeForbidden)
		l.Warn("registration with elevated role denied")
	case errors.Is(err, ErrDirectoryUnavailable):
		m.AuthAttempt("register", OutcomeUnavailable)
		l.Error("registration failed, directory unavailable", slog.Any("error", err))
	default:
		m.AuthAttempt("register", OutcomeError)
		l.Error("registration failed", slog.Any("error", err))
	}
	return u, err
}

func (s *AuthService) register(ctx context.Context, in RegisterInput, caller *domain.User) (domain.User, error) {
	username, err := NormalizeUsername(in.Username)
	if err != nil {
		return domain.User{}, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return domain.User{}, err
	}
	role, err := s.resolveRole(in.Role, caller)
	if err != nil {
		return domain.User{}, err
	}

	_, err = s.Store.Users().GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return domain.User{}, ErrDuplicateUsername
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, unavailable(err)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		// Lost a race with a concurrent registration of the same name.
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicateUsername
		}
		return domain.User{}, unavailable(err)
	}

	u.PasswordHash = ""
	return u, nil
}

func (s *AuthService) resolveRole(raw string, caller *domain.User) (domain.Role, error) {
	if raw == "" {
		if s.DefaultRole == "" {
			return domain.RoleUser, nil
		}
		return s.DefaultRole, nil
	}
	role, err := domain.ParseRole(raw)
	if err != nil {
		return "", malformed("role", `must be "user" or "admin"`)
	}
	if role == domain.RoleAdmin && !s.OpenRoleRegistration && (caller == nil || !caller.IsAdmin()) {
		return "", ErrForbidden
	}
	return role, nil
}

// Login checks a username/password pair and issues an access token. Unknown
// usernames and wrong passwords both fail with ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.AccessToken, error) {
	l := slogx.FromContext(ctx)
	m := metricsOrNoop(s.Metrics)

	tok, err := s.login(ctx, username, password)
	switch {
	case err == nil:
		m.AuthAttempt("login", OutcomeSuccess)
	case errors.Is(err, ErrMalformedInput):
		m.AuthAttempt("login", OutcomeMalformed)
	case errors.Is(err, ErrInvalidCredentials):
		m.AuthAttempt("login", OutcomeInvalidCredentials)
		l.Info("login failed", slog.Any("reason", err))
	case errors.Is(err, ErrDirectoryUnavailable):
		m.AuthAttempt("login", OutcomeUnavailable)
		l.Error("login failed, directory unavailable", slog.Any("error", err))
	default:
		m.AuthAttempt("login", OutcomeError)
		l.Error("login failed", slog.Any("error", err))
	}
	return tok, err
}

func (s *AuthService) login(ctx context.Context, username, password string) (domain.AccessToken, error) {
	l := slogx.FromContext(ctx)

	username, err := NormalizeUsername(username)
	if err != nil {
		return domain.AccessToken{}, err
	}
	if password == "" {
		return domain.AccessToken{}, malformed("password", "is required")
	}
	if s.dummyHash == "" {
		return domain.AccessToken{}, errAuthNotPrepared
	}

	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same hashing work as a real check.
			_, _ = s.Hasher.Verify(password, s.dummyHash)
			return domain.AccessToken{}, ErrInvalidCredentials
		}
		return domain.AccessToken{}, unavailable(err)
	}

	ok, err := s.Hasher.Verify(password, u.PasswordHash)
	if err != nil {
		l.Error("stored password hash unreadable", slog.String("user_id", u.ID), slog.Any("error", err))
		return domain.AccessToken{}, ErrInvalidCredentials
	}
	if !ok {
		return domain.AccessToken{}, ErrInvalidCredentials
	}

	if s.Hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, password)
	}

	token, claims, err := s.Tokens.Issue(u.Subject())
	if err != nil {
		return domain.AccessToken{}, err
	}

	now := time.Now()
	return domain.AccessToken{
		Token:     token,
		TokenType: domain.TokenTypeBearer,
		ExpiresIn: claims.ExpiresIn(now),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// rehash upgrades a legacy digest after a successful login. Failure only
// costs us the upgrade, so it is logged and ignored.
func (s *AuthService) rehash(ctx context.Context, u domain.User, password string) {
	l := slogx.FromContext(ctx)

	hash, err := s.Hasher.Hash(password)
	if err == nil {
		err = s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash)
	}
	if err != nil {
		l.Warn("password rehash failed", slog.String("user_id", u.ID), slog.Any("error", err))
		return
	}
	l.Info("password hash upgraded", slog.String("user_id", u.ID))
}

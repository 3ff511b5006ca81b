package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/pkg/cryptox"
	"github.com/aussiebroadwan/tvguide/pkg/idx"
	"github.com/aussiebroadwan/tvguide/pkg/jwtx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	auth    *AuthService
	ident   *IdentityService
	tokens  *jwtx.HMAC
	metrics *fakeMetrics
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	st := newTestStore(t)
	tokens := newTestTokens(t)
	m := &fakeMetrics{}
	auth := &AuthService{
		Store:       st,
		Hasher:      cryptox.NewHasher("pepper", testParams),
		Tokens:      tokens,
		DefaultRole: domain.RoleUser,
		Metrics:     m,
	}
	require.NoError(t, auth.Prepare())
	return authFixture{
		auth:    auth,
		ident:   &IdentityService{Store: st, Tokens: tokens},
		tokens:  tokens,
		metrics: m,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	u, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Password: "s3cretpass"}, nil)
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, domain.RoleUser, u.Role)
	require.Empty(t, u.PasswordHash)
	_, err = idx.Parse(u.ID)
	require.NoError(t, err)
	require.Equal(t, recordedAttempt{"register", OutcomeSuccess}, f.metrics.last())

	stored, err := f.auth.Store.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
	require.NotContains(t, stored.PasswordHash, "s3cretpass")
}

func TestRegister_Duplicate(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Password: "s3cretpass"}, nil)
	require.NoError(t, err)
	before, err := f.auth.Store.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, RegisterInput{Username: "alice", Password: "different-pass"}, nil)
	require.ErrorIs(t, err, ErrDuplicateUsername)
	require.Equal(t, recordedAttempt{"register", OutcomeDuplicate}, f.metrics.last())

	// first registration is untouched
	after, err := f.auth.Store.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRegister_ConcurrentSameName(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.auth.Register(ctx, RegisterInput{Username: "racer", Password: "s3cretpass"}, nil)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrDuplicateUsername)
	}
	require.Equal(t, 1, ok)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"empty username", RegisterInput{Username: "", Password: "s3cretpass"}, "username"},
		{"blank username", RegisterInput{Username: "   ", Password: "s3cretpass"}, "username"},
		{"inner space", RegisterInput{Username: "al ice", Password: "s3cretpass"}, "username"},
		{"too long username", RegisterInput{Username: strings.Repeat("a", 65), Password: "s3cretpass"}, "username"},
		{"short password", RegisterInput{Username: "alice", Password: "short"}, "password"},
		{"long password", RegisterInput{Username: "alice", Password: strings.Repeat("p", 129)}, "password"},
		{"unknown role", RegisterInput{Username: "alice", Password: "s3cretpass", Role: "root"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Register(ctx, tt.in, nil)
			require.ErrorIs(t, err, ErrMalformedInput)

			var ie *InputError
			require.True(t, errors.As(err, &ie))
			require.Equal(t, tt.field, ie.Field)
		})
	}

	_, err := f.auth.Store.Users().GetUserByUsername(ctx, "alice")
	require.Error(t, err, "no user may be created by a rejected registration")
}

func TestRegister_TrimsUsername(t *testing.T) {
	f := newAuthFixture(t)
	u, err := f.auth.Register(context.Background(), RegisterInput{Username: "  alice ", Password: "s3cretpass"}, nil)
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
}

func TestRegister_AdminRole(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous is forbidden", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.auth.Register(ctx, RegisterInput{Username: "eve", Password: "s3cretpass", Role: "admin"}, nil)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("plain user is forbidden", func(t *testing.T) {
		f := newAuthFixture(t)
		caller := &domain.User{Username: "bob", Role: domain.RoleUser}
		_, err := f.auth.Register(ctx, RegisterInput{Username: "eve", Password: "s3cretpass", Role: "admin"}, caller)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin caller may grant admin", func(t *testing.T) {
		f := newAuthFixture(t)
		caller := &domain.User{Username: "root", Role: domain.RoleAdmin}
		u, err := f.auth.Register(ctx, RegisterInput{Username: "ops", Password: "s3cretpass", Role: "admin"}, caller)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, u.Role)
	})

	t.Run("open role registration", func(t *testing.T) {
		f := newAuthFixture(t)
		f.auth.OpenRoleRegistration = true
		u, err := f.auth.Register(ctx, RegisterInput{Username: "ops", Password: "s3cretpass", Role: "Admin"}, nil)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, u.Role)
	})

	t.Run("explicit user role", func(t *testing.T) {
		f := newAuthFixture(t)
		u, err := f.auth.Register(ctx, RegisterInput{Username: "bob", Password: "s3cretpass", Role: "user"}, nil)
		require.NoError(t, err)
		require.Equal(t, domain.RoleUser, u.Role)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Password: "s3cretpass"}, nil)
	require.NoError(t, err)

	tok, err := f.auth.Login(ctx, "alice", "s3cretpass")
	require.NoError(t, err)
	require.Equal(t, domain.TokenTypeBearer, tok.TokenType)
	require.NotEmpty(t, tok.Token)
	require.InDelta(t, (30 * time.Minute).Seconds(), tok.ExpiresIn.Seconds(), 2)

	claims, err := f.tokens.Verify(tok.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)

	u, err := f.ident.Authenticate(ctx, tok.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Empty(t, u.PasswordHash)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Password: "s3cretpass"}, nil)
	require.NoError(t, err)

	_, wrongPass := f.auth.Login(ctx, "alice", "wrongpass")
	_, unknownUser := f.auth.Login(ctx, "ghost", "s3cretpass")

	require.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	require.Equal(t, wrongPass.Error(), unknownUser.Error(), "both failures must be indistinguishable")
	require.Equal(t, recordedAttempt{"login", OutcomeInvalidCredentials}, f.metrics.last())
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Login(context.Background(), "", "s3cretpass")
	require.ErrorIs(t, err, ErrMalformedInput)

	_, err = f.auth.Login(context.Background(), "alice", "")
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestAuthService_Prepare(t *testing.T) {
	ctx := context.Background()

	t.Run("unprepared service refuses logins", func(t *testing.T) {
		auth := &AuthService{Store: newTestStore(t), Hasher: cryptox.NewHasher("pepper", testParams), Tokens: newTestTokens(t)}
		_, err := auth.Login(ctx, "ghost", "s3cretpass")
		require.ErrorIs(t, err, errAuthNotPrepared)
		require.NotErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("missing hasher", func(t *testing.T) {
		auth := &AuthService{Store: newTestStore(t)}
		require.Error(t, auth.Prepare())
	})

	t.Run("digest ready before first login", func(t *testing.T) {
		f := newAuthFixture(t)
		require.True(t, strings.HasPrefix(f.auth.dummyHash, "$argon2id$"))
		before := f.auth.dummyHash

		_, err := f.auth.Login(ctx, "ghost", "s3cretpass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.Equal(t, before, f.auth.dummyHash)
	})
}

func TestLogin_UpgradesLegacyBcrypt(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	// bcrypt digests never carried the pepper
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacypass"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, f.auth.Store.Users().CreateUser(ctx, domain.User{
		ID:           idx.New().String(),
		Username:     "oldtimer",
		PasswordHash: string(legacy),
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	_, err = f.auth.Login(ctx, "oldtimer", "legacypass")
	require.NoError(t, err)

	u, err := f.auth.Store.Users().GetUserByUsername(ctx, "oldtimer")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))

	// and the upgraded hash still works
	_, err = f.auth.Login(ctx, "oldtimer", "legacypass")
	require.NoError(t, err)
}

func TestDirectoryUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	require.NoError(t, f.auth.Store.Close())

	_, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Password: "s3cretpass"}, nil)
	require.ErrorIs(t, err, ErrDirectoryUnavailable)
	require.Equal(t, recordedAttempt{"register", OutcomeUnavailable}, f.metrics.last())

	_, err = f.auth.Login(ctx, "alice", "s3cretpass")
	require.ErrorIs(t, err, ErrDirectoryUnavailable)
	require.NotErrorIs(t, err, ErrInvalidCredentials)

	token, _, err := f.tokens.Issue("alice")
	require.NoError(t, err)
	_, err = f.ident.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrDirectoryUnavailable)
	require.NotErrorIs(t, err, ErrUnauthenticated)
}

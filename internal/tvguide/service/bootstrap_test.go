package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	newService := func(t *testing.T, token string) (*BootstrapService, *AuthService) {
		st := newTestStore(t)
		hasher := cryptox.NewHasher("pepper", testParams)
		auth := &AuthService{Store: st, Hasher: hasher, Tokens: newTestTokens(t), DefaultRole: domain.RoleUser}
		require.NoError(t, auth.Prepare())
		return &BootstrapService{Store: st, Hasher: hasher, Token: token}, auth
	}

	t.Run("disabled without token", func(t *testing.T) {
		b, _ := newService(t, "")
		require.False(t, b.Enabled())
		_, err := b.Bootstrap(ctx, "", "root", "s3cretpass")
		require.ErrorIs(t, err, ErrBootstrapDisabled)
	})

	t.Run("wrong token", func(t *testing.T) {
		b, _ := newService(t, "let-me-in")
		_, err := b.Bootstrap(ctx, "let-me-out", "root", "s3cretpass")
		require.ErrorIs(t, err, ErrBootstrapUnauthorized)
	})

	t.Run("creates admin once", func(t *testing.T) {
		b, auth := newService(t, "let-me-in")

		done, err := b.IsBootstrapped(ctx)
		require.NoError(t, err)
		require.False(t, done)

		admin, err := b.Bootstrap(ctx, "let-me-in", "root", "s3cretpass")
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, admin.Role)
		require.Empty(t, admin.PasswordHash)

		done, err = b.IsBootstrapped(ctx)
		require.NoError(t, err)
		require.True(t, done)

		_, err = auth.Login(ctx, "root", "s3cretpass")
		require.NoError(t, err)

		_, err = b.Bootstrap(ctx, "let-me-in", "second", "s3cretpass")
		require.ErrorIs(t, err, ErrBootstrapAlready)
	})

	t.Run("promotes existing account", func(t *testing.T) {
		b, auth := newService(t, "let-me-in")

		_, err := auth.Register(ctx, RegisterInput{Username: "alice", Password: "s3cretpass"}, nil)
		require.NoError(t, err)

		_, err = b.Bootstrap(ctx, "let-me-in", "alice", "wrong-password")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		admin, err := b.Bootstrap(ctx, "let-me-in", "alice", "s3cretpass")
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, admin.Role)

		u, err := auth.Store.Users().GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.True(t, u.IsAdmin())
	})

	t.Run("validates input", func(t *testing.T) {
		b, _ := newService(t, "let-me-in")
		_, err := b.Bootstrap(ctx, "let-me-in", "", "s3cretpass")
		require.ErrorIs(t, err, ErrMalformedInput)
		_, err = b.Bootstrap(ctx, "let-me-in", "root", "short")
		require.ErrorIs(t, err, ErrMalformedInput)
	})
}

func TestBootstrap_ConcurrentSingleAdmin(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	b := &BootstrapService{Store: st, Hasher: cryptox.NewHasher("pepper", testParams), Token: "let-me-in"}

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = b.Bootstrap(ctx, "let-me-in", fmt.Sprintf("root%d", i), "s3cretpass")
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrBootstrapAlready)
	}
	require.Equal(t, 1, ok)

	admins, err := st.Users().CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 1, admins)
}

func TestBootstrap_CommitFailure(t *testing.T) {
	b := &BootstrapService{
		Store:  commitFailStore{newTestStore(t)},
		Hasher: cryptox.NewHasher("pepper", testParams),
		Token:  "let-me-in",
	}
	_, err := b.Bootstrap(context.Background(), "let-me-in", "root", "s3cretpass")
	require.ErrorIs(t, err, ErrDirectoryUnavailable)
	require.ErrorIs(t, err, errCommit)
}

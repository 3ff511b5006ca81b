package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/tvguide/pkg/idx"
	"github.com/aussiebroadwan/tvguide/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewAccessClaims(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := jwtx.NewAccessClaims("alice", "tvguide", 30*time.Minute, now)

	require.Equal(t, "alice", c.Subject)
	require.Equal(t, "tvguide", c.Issuer)
	require.Equal(t, now, c.IssuedAt.Time)
	require.Equal(t, now, c.NotBefore.Time)
	require.Equal(t, now.Add(30*time.Minute), c.ExpiresAt.Time)

	// jti is a ULID minted at issue time
	id, err := idx.Parse(c.ID)
	require.NoError(t, err)
	require.WithinDuration(t, now, id.Time(), time.Millisecond)
}

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "tvguide",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("tvguide"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("other-service"), jwtx.ErrIssuer)
	})
}

func TestValidateSubject(t *testing.T) {
	require.NoError(t, (&jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"}}).ValidateSubject())
	require.ErrorIs(t, (&jwtx.Claims{}).ValidateSubject(), jwtx.ErrMissingSubject)
}

func TestExpiresIn(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	c := jwtx.NewAccessClaims("alice", "", time.Minute, now)
	require.Equal(t, time.Minute, c.ExpiresIn(now))
	require.Equal(t, time.Duration(0), c.ExpiresIn(now.Add(2*time.Minute)))
	require.Equal(t, time.Duration(0), (&jwtx.Claims{}).ExpiresIn(now))
}

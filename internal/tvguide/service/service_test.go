package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store/drivers/sqlite"
	"github.com/aussiebroadwan/tvguide/pkg/cryptox"
	"github.com/aussiebroadwan/tvguide/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testParams = cryptox.Argon2Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	KeyLength:   32,
	SaltLength:  16,
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations(context.Background()))
	return s
}

var errCommit = errors.New("commit: database is locked")

// commitFailStore reports a failed commit after fn succeeds.
type commitFailStore struct{ *sqlite.Store }

func (s commitFailStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := s.Store.WithTx(ctx, fn); err != nil {
		return err
	}
	return errCommit
}

func newTestTokens(t *testing.T) *jwtx.HMAC {
	t.Helper()
	h, err := jwtx.NewHMAC(jwtx.HMACConfig{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "tvguide",
		TTL:    30 * time.Minute,
	})
	require.NoError(t, err)
	return h
}

type recordedAttempt struct{ op, outcome string }

type fakeMetrics struct {
	mu       sync.Mutex
	attempts []recordedAttempt
	users    map[string]int
}

func (m *fakeMetrics) AuthAttempt(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, recordedAttempt{op, outcome})
}

func (m *fakeMetrics) DirectoryUsers(role string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[string]int{}
	}
	m.users[role] = n
}

func (m *fakeMetrics) last() recordedAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.attempts) == 0 {
		return recordedAttempt{}
	}
	return m.attempts[len(m.attempts)-1]
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewStoreFromDB(db), mock
}

var userCols = []string{"id", "username", "password_hash", "role", "created_at", "updated_at"}

func TestUsers_GetUserByUsername(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)SELECT id, username, password_hash, role, created_at, updated_at\s+FROM users\s+WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("01ID", "alice", "hash", "admin", now, now))

	u, err := s.Users().GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "01ID", u.ID)
	require.Equal(t, domain.RoleAdmin, u.Role)
	require.Equal(t, "hash", u.PasswordHash)
}

func TestUsers_GetUserByUsername_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM users`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.Users().GetUserByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsers_GetUserByUsername_DBError(t *testing.T) {
	s, mock := newMockStore(t)
	down := errors.New("connection refused")

	mock.ExpectQuery(`FROM users`).WithArgs("alice").WillReturnError(down)

	_, err := s.Users().GetUserByUsername(context.Background(), "alice")
	require.ErrorIs(t, err, down)
	require.NotErrorIs(t, err, store.ErrNotFound)
}

func TestUsers_CreateUser(t *testing.T) {
	insert := regexp.QuoteMeta(`INSERT INTO users (id, username, password_hash, role, created_at, updated_at)`)

	t.Run("success", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(insert).
			WithArgs("01ID", "alice", "hash", "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.Users().CreateUser(context.Background(), domain.User{
			ID: "01ID", Username: "alice", PasswordHash: "hash", Role: domain.RoleUser,
		})
		require.NoError(t, err)
	})

	t.Run("unique violation", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(insert).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

		err := s.Users().CreateUser(context.Background(), domain.User{
			ID: "01ID", Username: "alice", PasswordHash: "hash", Role: domain.RoleUser,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("other pg error", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(insert).WillReturnError(&pgconn.PgError{Code: "57P01"})

		err := s.Users().CreateUser(context.Background(), domain.User{ID: "01ID", Username: "alice"})
		require.Error(t, err)
		require.NotErrorIs(t, err, store.ErrAlreadyExists)
	})
}

func TestUsers_UpdateRole(t *testing.T) {
	s, mock := newMockStore(t)
	update := regexp.QuoteMeta(`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`)

	mock.ExpectExec(update).WithArgs("admin", sqlmock.AnyArg(), "01ID").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Users().UpdateRole(context.Background(), "01ID", domain.RoleAdmin))

	mock.ExpectExec(update).WithArgs("admin", sqlmock.AnyArg(), "nope").WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, s.Users().UpdateRole(context.Background(), "nope", domain.RoleAdmin), store.ErrNotFound)
}

func TestUsers_CountByRole(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users WHERE role = $1`)).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.Users().CountByRole(context.Background(), domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestPrograms_CreateProgram_ForeignKey(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO programs`)).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "programs_channel_id_fkey"})

	start := time.Now().UTC()
	err := s.Programs().CreateProgram(context.Background(), domain.Program{
		ID: "01P", ChannelID: "missing", Title: "News", StartTime: start, EndTime: start.Add(time.Hour),
	})
	require.ErrorIs(t, err, store.ErrInvalidReference)
}

func TestPrograms_ListPrograms(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	cols := []string{"id", "channel_id", "title", "description", "tags", "start_time", "end_time", "created_at", "updated_at"}
	mock.ExpectQuery(`(?s)FROM programs\s+WHERE channel_id = \$1 ORDER BY start_time, id`).
		WithArgs("01C").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("01P", "01C", "News", "", []byte(`["news"]`), start, start.Add(time.Hour), start, start))

	list, err := s.Programs().ListPrograms(context.Background(), store.ProgramFilter{ChannelID: "01C"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []string{"news"}, list[0].Tags)
	require.Equal(t, time.Hour, list[0].Duration())
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET role`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().UpdateRole(ctx, "01ID", domain.RoleAdmin)
	}))

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.WithTx(ctx, func(tx store.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestTx_LockAdmins(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(adminLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.LockAdmins(ctx)
	}))

	down := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnError(down)
	mock.ExpectRollback()

	err := s.WithTx(ctx, func(tx store.Tx) error { return tx.LockAdmins(ctx) })
	require.ErrorIs(t, err, down)
}

func TestApplyMigrations_UsesEmbeddedDir(t *testing.T) {
	s, _ := newMockStore(t)

	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, s.ApplyMigrations(context.Background()))
	require.Equal(t, ".", gotDir)
}
